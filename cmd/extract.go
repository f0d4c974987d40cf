package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/quote-cli/internal/ingest"
	"github.com/sells-group/quote-cli/internal/model"
)

var (
	extractJSON   bool
	extractFilter string
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Extract line items without consolidating or exporting",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initQuote(cfg)
		if err != nil {
			return err
		}
		return runExtract(cmd.Context(), env.Coordinator, args, extractFilter, extractJSON, cmd.OutOrStdout())
	},
}

func runExtract(ctx context.Context, coord *ingest.Coordinator, paths []string, filter string, asJSON bool, out io.Writer) error {
	uploads, err := readUploads(paths)
	if err != nil {
		return err
	}

	res, err := coord.Run(ctx, uploads)
	if err != nil && res == nil {
		return eris.Wrap(err, "extract")
	}
	items := model.FilterItems(res.Items, filter)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(map[string]any{
			"items":    items,
			"outcomes": res.OrderedOutcomes(),
		}); encErr != nil {
			return eris.Wrap(encErr, "encode items")
		}
		return err
	}

	formatOutcomes(out, res)
	if len(items) > 0 {
		_, _ = io.WriteString(out, "\n")
		formatItems(out, items)
	}
	return err
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print items and outcomes as JSON")
	extractCmd.Flags().StringVar(&extractFilter, "filter", "", "only show items whose code, name, description or location contain this text")
	rootCmd.AddCommand(extractCmd)
}

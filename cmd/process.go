package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/pipeline"
)

type processOptions struct {
	Output        string
	Format        string
	NoConsolidate bool
}

var processOpts processOptions

var processCmd = &cobra.Command{
	Use:   "process FILE...",
	Short: "Extract, consolidate and export a batch of specification files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initQuote(cfg)
		if err != nil {
			return err
		}
		return runProcess(cmd.Context(), env.Orchestrator, args, processOpts, cmd.OutOrStdout())
	},
}

// runProcess drives one run through every stage and writes the export to
// opts.Output.
func runProcess(ctx context.Context, orch *pipeline.Orchestrator, paths []string, opts processOptions, out io.Writer) error {
	uploads, err := readUploads(paths)
	if err != nil {
		return err
	}

	run := pipeline.NewRun()
	res, err := orch.Submit(ctx, run, uploads)
	if res != nil {
		formatOutcomes(out, res)
	}
	if err != nil {
		return eris.Wrap(err, "process: extract")
	}

	merged, err := orch.Consolidate(ctx, run, pipeline.ConsolidateOptions{PassThrough: opts.NoConsolidate})
	if err != nil {
		return eris.Wrap(err, "process: consolidate")
	}

	format := opts.Format
	if format == "" {
		format = cfg.Export.Format
	}
	path := opts.Output
	if path == "" {
		path = fmt.Sprintf("quote-%s.%s", time.Now().Format("2006-01-02"), format)
	}

	exp, err := exportTo(ctx, orch, run, path, format)
	if err != nil {
		return eris.Wrap(err, "process: export")
	}

	fmt.Fprintln(out)
	for _, s := range pipeline.Steps(run) {
		fmt.Fprintf(out, "[%s] %s\n", s.Status, s.Title)
	}
	fmt.Fprintf(out, "\n%d items from %d files, %d after consolidation (%d duplicate groups). Wrote %s (%d bytes).\n",
		len(res.Items), len(res.Order), len(merged.Items), merged.Merged(), exp.Path, exp.Bytes)

	zap.L().Info("process complete",
		zap.String("run_id", run.ID),
		zap.String("output", exp.Path),
		zap.Int("items", len(merged.Items)),
	)
	return nil
}

// exportTo writes the run's export to path, removing the file on failure.
func exportTo(ctx context.Context, orch *pipeline.Orchestrator, run *pipeline.Run, path, format string) (*model.ExportResult, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrExportFailure, "create %s: %v", path, err)
	}

	res, err := orch.Export(ctx, run, f, format)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrapf(model.ErrExportFailure, "close %s: %v", path, cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	res.Path = path
	return res, nil
}

func init() {
	processCmd.Flags().StringVarP(&processOpts.Output, "output", "o", "", "export file path (default quote-<date>.<format>)")
	processCmd.Flags().StringVar(&processOpts.Format, "format", "", "export format: xlsx or csv (default from config)")
	processCmd.Flags().BoolVar(&processOpts.NoConsolidate, "no-consolidate", false, "keep duplicate items as separate rows")
	rootCmd.AddCommand(processCmd)
}

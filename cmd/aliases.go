package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/quote-cli/internal/extract"
)

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Print the effective header alias table as YAML",
	Long:  "Prints the header aliases in the format accepted by extract.alias_file, after merging the configured file over the defaults.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initQuote(cfg)
		if err != nil {
			return err
		}
		return writeAliases(cmd.OutOrStdout(), env.Aliases)
	},
}

func writeAliases(w io.Writer, table *extract.AliasTable) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"aliases": table.Entries()}); err != nil {
		return eris.Wrap(err, "encode aliases")
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(aliasesCmd)
}

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

// readUploads loads each path into an upload named after its base name.
func readUploads(paths []string) ([]model.Upload, error) {
	uploads := make([]model.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", p)
		}
		uploads = append(uploads, model.Upload{Name: filepath.Base(p), Content: data})
	}
	return uploads, nil
}

// formatOutcomes prints one line per submitted file.
func formatOutcomes(w io.Writer, res *model.ExtractionResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tITEMS\tSKIPPED\tWARNINGS\tREASON")
	for _, o := range res.OrderedOutcomes() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			o.File, o.Status, o.Items, len(o.SkippedRows), len(o.Warnings), o.Reason)
	}
	_ = tw.Flush()
}

// formatItems prints a compact item table.
func formatItems(w io.Writer, items []model.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tCATEGORY\tNAME\tQTY\tUNIT\tH x W x D (in)\tSOURCE")
	for _, it := range items {
		dims := strings.Join([]string{dash(it.Dimensions.Height), dash(it.Dimensions.Width), dash(it.Dimensions.Depth)}, " x ")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			it.Code, it.Category, truncate(it.Name, 40), it.Quantity, it.Unit, dims, it.SourceFile)
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

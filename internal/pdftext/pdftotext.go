package pdftext

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText source. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Pages writes the PDF to a temp file, runs pdftotext -layout on it and
// splits stdout on form feeds.
func (p *PdfToText) Pages(ctx context.Context, content []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "quote-*.pdf")
	if err != nil {
		return nil, eris.Wrap(err, "pdftext: create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, eris.Wrap(err, "pdftext: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return nil, eris.Wrap(err, "pdftext: close temp file")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", tmp.Name(), "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "pdftext: pdftotext failed: %s", stderr.String())
	}

	return splitPages(stdout.String()), nil
}

func splitPages(out string) []string {
	pages := strings.Split(out, "\f")
	// pdftotext terminates the last page with a form feed.
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages
}

// Package pdftext turns PDF bytes into per-page text.
package pdftext

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/config"
)

// Source extracts the text of each page of a PDF, in page order.
type Source interface {
	Pages(ctx context.Context, content []byte) ([]string, error)
}

// NewSource creates a Source based on config.
func NewSource(cfg config.PDFConfig) (Source, error) {
	switch cfg.Provider {
	case "pdfcpu", "":
		return NewPdfcpu(), nil
	case "pdftotext":
		return NewPdfToText(cfg.PdfToTextPath), nil
	default:
		return nil, eris.Errorf("pdftext: unknown provider %q", cfg.Provider)
	}
}

package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

// PageSource returns the text of each page of a PDF.
type PageSource interface {
	Pages(ctx context.Context, content []byte) ([]string, error)
}

// ImageSource is implemented by page sources that can tell which pages
// carry pictures.
type ImageSource interface {
	PageImages(ctx context.Context, content []byte) ([]bool, error)
}

// PDF extracts drafts from the text layer of PDF specification sheets.
// Blocks may continue across page breaks.
type PDF struct {
	aliases *AliasTable
	pages   PageSource
}

// Extract implements Extractor.
func (p *PDF) Extract(ctx context.Context, up model.Upload) (<-chan Event, <-chan error) {
	return stream(ctx, func(emit func(Event) bool) error {
		if p.pages == nil {
			return eris.New("pdf: no text source configured")
		}
		pages, err := p.pages.Pages(ctx, up.Content)
		if err != nil {
			return eris.Wrapf(err, "pdf: read %s", up.Name)
		}

		images := p.images(ctx, up.Content)

		blocks := newBlockReader(p.aliases, up.Name, emit)
		for i, page := range pages {
			blocks.name = fmt.Sprintf("%s p%d", up.Name, i+1)
			for _, line := range strings.Split(page, "\n") {
				if !blocks.line(line) {
					return nil
				}
			}
			// A picture belongs to the block open at the end of its page.
			if i < len(images) && images[i] {
				blocks.markImage()
			}
		}
		blocks.close()
		return nil
	})
}

// images returns per-page picture flags. A source without image support, or
// a failed scan, leaves every page unflagged.
func (p *PDF) images(ctx context.Context, content []byte) []bool {
	src, ok := p.pages.(ImageSource)
	if !ok {
		return nil
	}
	images, err := src.PageImages(ctx, content)
	if err != nil {
		return nil
	}
	return images
}

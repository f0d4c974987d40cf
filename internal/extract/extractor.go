// Package extract turns one uploaded file into a lazy stream of raw item
// drafts. One extractor exists per declared file kind; dispatch is by kind,
// never by sniffing content.
package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

// Event is one element of an extractor's output stream. Exactly one of the
// fields is set.
type Event struct {
	// Draft is an item draft extracted from one fragment.
	Draft *model.Draft
	// Skipped describes a fragment that was passed over (non-fatal).
	Skipped string
	// Header carries document-level fields (project, contact) that apply
	// to every item of the file.
	Header map[string]string
}

// Extractor produces drafts for one file. Both channels are closed when
// extraction completes; a value on the error channel is terminal for the
// file only.
type Extractor interface {
	Extract(ctx context.Context, up model.Upload) (<-chan Event, <-chan error)
}

// stream runs fn in a goroutine and adapts its emit calls to the channel
// pair returned by Extractor.Extract. emit returns false once ctx is done;
// fn should stop then.
func stream(ctx context.Context, fn func(emit func(Event) bool) error) (<-chan Event, <-chan error) {
	evCh := make(chan Event, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)

		emit := func(ev Event) bool {
			select {
			case evCh <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if err := fn(emit); err != nil {
			errCh <- err
			return
		}
		if ctx.Err() != nil {
			errCh <- eris.Wrap(ctx.Err(), "extract: context cancelled")
		}
	}()

	return evCh, errCh
}

// Registry maps each supported kind to its extractor.
type Registry struct {
	byKind map[model.Kind]Extractor
}

// NewRegistry wires the standard extractors around the given alias table
// and PDF text source.
func NewRegistry(aliases *AliasTable, pdf PageSource) *Registry {
	sheet := &Spreadsheet{aliases: aliases}
	word := &Word{aliases: aliases}
	return &Registry{byKind: map[model.Kind]Extractor{
		model.KindXLSX: sheet,
		model.KindXLS:  sheet,
		model.KindCSV:  &Delimited{aliases: aliases},
		model.KindDOCX: word,
		model.KindDOC:  word,
		model.KindPDF:  &PDF{aliases: aliases, pages: pdf},
	}}
}

// Register replaces the extractor for a kind.
func (r *Registry) Register(kind model.Kind, ex Extractor) {
	r.byKind[kind] = ex
}

// For returns the extractor for kind, failing with model.ErrUnsupportedFormat
// when none is registered.
func (r *Registry) For(kind model.Kind) (Extractor, error) {
	ex, ok := r.byKind[kind]
	if !ok {
		return nil, eris.Wrapf(model.ErrUnsupportedFormat, "extract: no extractor for kind %q", kind)
	}
	return ex, nil
}

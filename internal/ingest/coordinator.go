// Package ingest runs the format extractors over a batch of uploads, turns
// their drafts into identified Items and records exactly one outcome per
// file.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/quote-cli/internal/config"
	"github.com/sells-group/quote-cli/internal/extract"
	"github.com/sells-group/quote-cli/internal/model"
)

// Coordinator fans a batch of uploads out to per-file extraction tasks and
// joins their results.
type Coordinator struct {
	registry *extract.Registry
	cfg      config.ExtractConfig
	timeout  time.Duration
	newID    func() string
}

// New creates a Coordinator.
func New(registry *extract.Registry, cfg config.ExtractConfig) *Coordinator {
	return &Coordinator{
		registry: registry,
		cfg:      cfg,
		timeout:  cfg.FileTimeout(),
		newID:    newItemID,
	}
}

// Admit applies the upload boundary: files whose extension is not a
// supported kind, or that exceed the size limit, are rejected before
// extraction. The declared kind is set on every accepted upload.
func (c *Coordinator) Admit(uploads []model.Upload) ([]model.Upload, []model.FileOutcome) {
	var (
		accepted []model.Upload
		rejected []model.FileOutcome
	)
	limit := c.cfg.MaxFileSize()
	for _, up := range uploads {
		kind, ok := model.KindFromName(up.Name)
		if !ok {
			err := eris.Wrapf(model.ErrUnsupportedFormat, "file %s", up.Name)
			rejected = append(rejected, model.FileOutcome{
				File:   up.Name,
				Status: model.OutcomeRejected,
				Reason: err.Error(),
			})
			continue
		}
		if limit > 0 && int64(len(up.Content)) > limit {
			rejected = append(rejected, model.FileOutcome{
				File:   up.Name,
				Kind:   kind,
				Status: model.OutcomeRejected,
				Reason: fmt.Sprintf("file is %d bytes; limit is %d", len(up.Content), limit),
			})
			continue
		}
		up.Kind = kind
		accepted = append(accepted, up)
	}
	return accepted, rejected
}

// fileResult is what one extraction task hands back to the join point.
type fileResult struct {
	items   []model.Item
	outcome model.FileOutcome
}

// Run extracts every admitted upload in parallel and joins the results in
// submission order. Per-file problems are recorded in the outcomes; the
// returned error is non-nil only when no file of a supported kind was
// submitted (model.ErrNoValidFiles) or ctx was cancelled. The input slice
// is not modified.
func (c *Coordinator) Run(ctx context.Context, uploads []model.Upload) (*model.ExtractionResult, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.Int("files", len(uploads)))

	result := &model.ExtractionResult{
		Items:    []model.Item{},
		Outcomes: make(map[string]model.FileOutcome, len(uploads)),
	}
	names := uniqueNames(uploads)

	accepted, rejected := c.Admit(renamed(uploads, names))
	for _, o := range rejected {
		log.Warn("upload rejected", zap.String("file", o.File), zap.String("reason", o.Reason))
		result.Outcomes[o.File] = o
	}

	if len(accepted) == 0 {
		result.Order = names
		return result, eris.Wrapf(model.ErrNoValidFiles, "ingest: %d file(s) submitted", len(uploads))
	}

	results := make([]fileResult, len(accepted))
	limit := c.cfg.MaxConcurrentFiles
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, up := range accepted {
		g.Go(func() error {
			results[i] = c.extractFile(gctx, up)
			return nil // one file never fails the batch
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ingest: extract files")
	}
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "ingest: batch cancelled")
	}

	// Ids are assigned after the join so they follow submission order.
	for _, r := range results {
		for _, it := range r.items {
			it.ID = c.newID()
			result.Items = append(result.Items, it)
		}
		result.Outcomes[r.outcome.File] = r.outcome
	}
	result.Order = names

	log.Info("extraction complete",
		zap.Int("items", len(result.Items)),
		zap.Int("accepted", len(accepted)),
		zap.Int("rejected", len(rejected)),
	)
	return result, nil
}

// extractFile runs one extractor under the per-file budget. A task that
// outlives its budget is abandoned and reported as timed out; its items are
// discarded.
func (c *Coordinator) extractFile(ctx context.Context, up model.Upload) fileResult {
	start := time.Now()
	log := zap.L().With(zap.String("component", "ingest"), zap.String("file", up.Name))

	outcome := model.FileOutcome{File: up.Name, Kind: up.Kind}
	finish := func(items []model.Item, status model.OutcomeStatus, reason string) fileResult {
		outcome.Status = status
		outcome.Reason = reason
		outcome.Items = len(items)
		outcome.DurationMs = time.Since(start).Milliseconds()
		if status != model.OutcomeSuccess {
			log.Warn("file outcome",
				zap.String("status", string(status)),
				zap.String("reason", reason),
				zap.Int("items", len(items)),
			)
		}
		if items == nil {
			items = []model.Item{}
		}
		return fileResult{items: items, outcome: outcome}
	}

	ex, err := c.registry.For(up.Kind)
	if err != nil {
		return finish(nil, model.OutcomeFailed, err.Error())
	}

	fctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	evCh, errCh := ex.Extract(fctx, up)

	var (
		items  []model.Item
		header = make(map[string]string)
	)
	expired := func() fileResult {
		if ctx.Err() != nil {
			return finish(nil, model.OutcomeFailed, eris.Wrap(ctx.Err(), "batch cancelled").Error())
		}
		err := eris.Wrapf(model.ErrTimedOut, "no result within %s", c.timeout)
		return finish(nil, model.OutcomeTimedOut, err.Error())
	}

	for evCh != nil {
		select {
		case <-fctx.Done():
			return expired()
		case ev, ok := <-evCh:
			if !ok {
				evCh = nil
				continue
			}
			switch {
			case ev.Draft != nil:
				it, err := buildItem(ev.Draft, up.Name)
				if err != nil {
					log.Debug("row skipped", zap.Error(err))
					outcome.SkippedRows = append(outcome.SkippedRows, err.Error())
					continue
				}
				for _, w := range it.Warnings {
					log.Debug("field warning", zap.String("field", w.Field), zap.String("raw", w.Raw), zap.String("reason", w.Reason))
				}
				outcome.Warnings = append(outcome.Warnings, it.Warnings...)
				items = append(items, it)
			case ev.Skipped != "":
				log.Debug("row skipped", zap.String("detail", ev.Skipped))
				outcome.SkippedRows = append(outcome.SkippedRows, ev.Skipped)
			case ev.Header != nil:
				for k, v := range ev.Header {
					if _, seen := header[k]; !seen {
						header[k] = v
					}
				}
			}
		}
	}

	var extractErr error
	select {
	case <-fctx.Done():
		return expired()
	case extractErr = <-errCh:
	}
	if extractErr != nil && fctx.Err() != nil {
		return expired()
	}

	applyHeader(items, header)

	switch {
	case extractErr != nil && len(items) == 0:
		return finish(nil, model.OutcomeFailed, extractErr.Error())
	case extractErr != nil:
		return finish(items, model.OutcomePartial, extractErr.Error())
	case len(items) == 0:
		err := eris.Wrapf(model.ErrNoItemsFound, "%s", up.Name)
		return finish(nil, model.OutcomeFailed, err.Error())
	case len(outcome.SkippedRows) > 0:
		return finish(items, model.OutcomePartial, fmt.Sprintf("%d row(s) skipped", len(outcome.SkippedRows)))
	default:
		return finish(items, model.OutcomeSuccess, "")
	}
}

// newItemID returns a time-ordered id, so ids sort in assignment order.
func newItemID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// uniqueNames returns one outcome key per upload. Repeated names get a
// " (2)", " (3)" suffix ahead of the extension.
func uniqueNames(uploads []model.Upload) []string {
	seen := make(map[string]int, len(uploads))
	names := make([]string, len(uploads))
	for i, up := range uploads {
		seen[up.Name]++
		if n := seen[up.Name]; n > 1 {
			ext := filepath.Ext(up.Name)
			names[i] = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(up.Name, ext), n, ext)
			continue
		}
		names[i] = up.Name
	}
	return names
}

func renamed(uploads []model.Upload, names []string) []model.Upload {
	out := make([]model.Upload, len(uploads))
	for i, up := range uploads {
		up.Name = names[i]
		out[i] = up
	}
	return out
}

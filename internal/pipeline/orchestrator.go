// Package pipeline sequences a run through its four stages: upload,
// extract, consolidate and export. Each stage runs only after the previous
// one completed, and a failed stage leaves earlier results in place.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/consolidate"
	"github.com/sells-group/quote-cli/internal/model"
)

// Extractor turns a batch of uploads into items and per-file outcomes.
type Extractor interface {
	Run(ctx context.Context, uploads []model.Upload) (*model.ExtractionResult, error)
}

// Merger consolidates an item batch.
type Merger interface {
	Consolidate(items []model.Item) *consolidate.Result
}

// Exporter renders items into an export artifact.
type Exporter interface {
	Export(w io.Writer, items []model.Item, format string) (*model.ExportResult, error)
}

// ConsolidateOptions controls the consolidate stage.
type ConsolidateOptions struct {
	// PassThrough keeps every item as its own group.
	PassThrough bool
}

// Orchestrator drives runs through the stage sequence.
type Orchestrator struct {
	extractor Extractor
	merger    Merger
	exporter  Exporter
}

// New creates an Orchestrator.
func New(extractor Extractor, merger Merger, exporter Exporter) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		merger:    merger,
		exporter:  exporter,
	}
}

// Submit runs extraction over uploads and advances the run to
// StageExtract. When no file is of a supported kind the run stays at
// StageUpload and the per-file outcomes are still returned.
func (o *Orchestrator) Submit(ctx context.Context, run *Run, uploads []model.Upload) (*model.ExtractionResult, error) {
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", run.ID),
		zap.String("stage", string(StageExtract)),
	)

	opCtx, err := run.begin(ctx, StageExtract, StageUpload)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, extractErr := o.extractor.Run(opCtx, uploads)

	run.mu.Lock()
	defer run.mu.Unlock()
	if err := run.endLocked(); err != nil {
		log.Info("dropping extraction result for discarded run")
		return nil, err
	}

	if extractErr != nil {
		run.lastErr = extractErr.Error()
		if res != nil {
			run.extraction = res
		}
		log.Warn("extraction failed", zap.Error(extractErr))
		return res, eris.Wrap(extractErr, "pipeline: extract")
	}

	run.extraction = res
	run.items = model.CloneItems(res.Items)
	run.stage = StageExtract
	run.lastErr = ""
	run.summary = fmt.Sprintf("Extracted %d items from %d files", len(res.Items), len(res.Order))

	log.Info("extraction stage complete",
		zap.Int("files", len(res.Order)),
		zap.Int("items", len(res.Items)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// Consolidate merges duplicates in the extracted batch and advances the run
// to StageConsolidate. It returns a copy of the consolidated items.
func (o *Orchestrator) Consolidate(ctx context.Context, run *Run, opts ConsolidateOptions) (*consolidate.Result, error) {
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", run.ID),
		zap.String("stage", string(StageConsolidate)),
	)

	opCtx, err := run.begin(ctx, StageConsolidate, StageExtract)
	if err != nil {
		return nil, err
	}

	items := run.Items()
	var res *consolidate.Result
	if opts.PassThrough {
		res = consolidate.Identity(items)
	} else {
		res = o.merger.Consolidate(items)
	}
	// Read before endLocked, which cancels opCtx.
	ctxErr := opCtx.Err()

	run.mu.Lock()
	defer run.mu.Unlock()
	if err := run.endLocked(); err != nil {
		log.Info("dropping consolidation result for discarded run")
		return nil, err
	}
	if ctxErr != nil {
		return nil, eris.Wrap(ctxErr, "pipeline: consolidate")
	}

	run.merged = res
	run.items = model.CloneItems(res.Items)
	run.stage = StageConsolidate
	run.lastErr = ""
	run.summary = fmt.Sprintf("Consolidated %d items into %d (%d duplicate groups merged)",
		len(items), len(res.Items), res.Merged())

	log.Info("consolidation stage complete",
		zap.Int("before", len(items)),
		zap.Int("after", len(res.Items)),
		zap.Bool("pass_through", opts.PassThrough),
	)
	return &consolidate.Result{
		Items:      model.CloneItems(res.Items),
		Groups:     res.Groups,
		MergedInto: res.MergedInto,
	}, nil
}

// Export writes the consolidated batch to w. A failed export keeps the run
// at StageConsolidate so it can be retried. A completed export may be
// repeated to produce another copy of the same batch.
func (o *Orchestrator) Export(ctx context.Context, run *Run, w io.Writer, format string) (*model.ExportResult, error) {
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", run.ID),
		zap.String("stage", string(StageExport)),
	)

	if _, err := run.begin(ctx, StageExport, StageConsolidate, StageExport); err != nil {
		return nil, err
	}

	items := run.Items()
	res, exportErr := o.exporter.Export(w, items, format)

	run.mu.Lock()
	defer run.mu.Unlock()
	if err := run.endLocked(); err != nil {
		return nil, err
	}

	if exportErr != nil {
		if !eris.Is(exportErr, model.ErrExportFailure) {
			exportErr = eris.Wrap(model.ErrExportFailure, exportErr.Error())
		}
		run.lastErr = exportErr.Error()
		log.Warn("export failed", zap.Error(exportErr))
		return nil, exportErr
	}

	run.export = res
	run.stage = StageExport
	run.lastErr = ""
	run.summary = fmt.Sprintf("Exported %d items as %s", res.Rows, res.Format)

	log.Info("export stage complete",
		zap.String("format", res.Format),
		zap.Int("rows", res.Rows),
		zap.Int("bytes", res.Bytes),
	)
	out := *res
	return &out, nil
}

// Restart discards run and returns a fresh run at StageUpload.
func (o *Orchestrator) Restart(run *Run) *Run {
	if run != nil {
		run.Discard()
		zap.L().Info("pipeline run restarted",
			zap.String("component", "pipeline"),
			zap.String("run_id", run.ID),
		)
	}
	return NewRun()
}

// begin checks that op may start from the run's current stage and marks
// the run busy. The returned context is cancelled when the run is
// discarded.
func (r *Run) begin(ctx context.Context, op Stage, from ...Stage) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.discarded {
		return nil, eris.Wrapf(model.ErrRunDiscarded, "run %s", r.ID)
	}
	if r.busy != "" {
		return nil, eris.Wrapf(model.ErrStageOrder, "run %s: %s is still running", r.ID, r.busy)
	}
	allowed := false
	for _, st := range from {
		if r.stage == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, eris.Wrapf(model.ErrStageOrder, "run %s: cannot %s from stage %s", r.ID, op, r.stage)
	}

	opCtx, cancel := context.WithCancel(ctx)
	r.busy = op
	r.cancel = cancel
	r.touched = time.Now()
	return opCtx, nil
}

// endLocked clears the busy mark. It reports ErrRunDiscarded when the run
// was discarded while the stage was running.
func (r *Run) endLocked() error {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.busy = ""
	r.touched = time.Now()
	if r.discarded {
		return eris.Wrapf(model.ErrRunDiscarded, "run %s", r.ID)
	}
	return nil
}

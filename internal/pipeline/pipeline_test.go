package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/config"
	"github.com/sells-group/quote-cli/internal/consolidate"
	"github.com/sells-group/quote-cli/internal/export"
	"github.com/sells-group/quote-cli/internal/extract"
	"github.com/sells-group/quote-cli/internal/fingerprint"
	"github.com/sells-group/quote-cli/internal/ingest"
	"github.com/sells-group/quote-cli/internal/model"
)

func testMerger() Merger {
	return consolidate.New(fingerprint.New(config.MatchConfig{
		Threshold:            0.85,
		DimensionToleranceIn: 1.0,
		TextWeight:           0.5,
		CategoryWeight:       0.2,
		DimensionWeight:      0.3,
	}))
}

func chair(id string, qty int, accessories ...string) model.Item {
	return model.Item{
		ID:                  id,
		Code:                "FF-101",
		Category:            model.CategoryFurniture,
		Name:                "Lounge Chair",
		Dimensions:          model.Dimensions{Height: "30", Width: "20", Depth: "22"},
		Quantity:            qty,
		Unit:                model.DefaultUnit,
		Accessories:         accessories,
		SpecialInstructions: []string{},
	}
}

func extraction(items ...model.Item) *model.ExtractionResult {
	return &model.ExtractionResult{
		Items: items,
		Outcomes: map[string]model.FileOutcome{
			"a.csv": {File: "a.csv", Kind: model.KindCSV, Status: model.OutcomeSuccess, Items: 1},
			"b.csv": {File: "b.csv", Kind: model.KindCSV, Status: model.OutcomeSuccess, Items: 1},
		},
		Order: []string{"a.csv", "b.csv"},
	}
}

func uploads() []model.Upload {
	return []model.Upload{
		{Name: "a.csv", Content: []byte("x")},
		{Name: "b.csv", Content: []byte("y")},
	}
}

func stepStatuses(r *Run) []StepStatus {
	var out []StepStatus
	for _, s := range Steps(r) {
		out = append(out, s.Status)
	}
	return out
}

func TestOrchestrator_FullFlow(t *testing.T) {
	ctx := context.Background()

	ex := &mockExtractor{}
	ex.On("Run", mock.Anything, uploads()).Return(extraction(chair("i1", 2, "arm cap"), chair("i2", 3, "glide")), nil)

	exp := &mockExporter{}
	exp.On("Export", mock.Anything, mock.MatchedBy(func(items []model.Item) bool {
		return len(items) == 1 && items[0].Quantity == 5
	}), "xlsx").Return(&model.ExportResult{Format: "xlsx", Rows: 1, Bytes: 1024}, nil)

	o := New(ex, testMerger(), exp)
	run := NewRun()
	assert.Equal(t, StageUpload, run.Stage())
	assert.Equal(t, []StepStatus{StepActive, StepInactive, StepInactive, StepInactive}, stepStatuses(run))

	res, err := o.Submit(ctx, run, uploads())
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, StageExtract, run.Stage())
	assert.Equal(t, "Extracted 2 items from 2 files", run.Snapshot().Summary)
	assert.Equal(t, []StepStatus{StepCompleted, StepCompleted, StepActive, StepInactive}, stepStatuses(run))

	merged, err := o.Consolidate(ctx, run, ConsolidateOptions{})
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, 5, merged.Items[0].Quantity)
	assert.Equal(t, []string{"arm cap", "glide"}, merged.Items[0].Accessories)
	assert.True(t, merged.Items[0].HasDuplicate)
	assert.Equal(t, StageConsolidate, run.Stage())
	assert.Equal(t, []StepStatus{StepCompleted, StepCompleted, StepCompleted, StepActive}, stepStatuses(run))

	var buf bytes.Buffer
	out, err := o.Export(ctx, run, &buf, "xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Rows)
	assert.Equal(t, StageExport, run.Stage())
	assert.Equal(t, []StepStatus{StepCompleted, StepCompleted, StepCompleted, StepCompleted}, stepStatuses(run))

	snap := run.Snapshot()
	assert.Equal(t, 1, snap.Items)
	assert.Len(t, snap.Outcomes, 2)
	require.NotNil(t, snap.Export)
	assert.Equal(t, "xlsx", snap.Export.Format)

	ex.AssertExpectations(t)
	exp.AssertExpectations(t)
}

func TestOrchestrator_StageOrder(t *testing.T) {
	ctx := context.Background()
	ex := &mockExtractor{}
	ex.On("Run", mock.Anything, mock.Anything).Return(extraction(chair("i1", 1)), nil)
	o := New(ex, testMerger(), &mockExporter{})
	run := NewRun()

	_, err := o.Consolidate(ctx, run, ConsolidateOptions{})
	assert.True(t, eris.Is(err, model.ErrStageOrder))

	_, err = o.Export(ctx, run, &bytes.Buffer{}, "csv")
	assert.True(t, eris.Is(err, model.ErrStageOrder))

	_, err = o.Submit(ctx, run, uploads())
	require.NoError(t, err)

	// No re-entry into an earlier stage.
	_, err = o.Submit(ctx, run, uploads())
	assert.True(t, eris.Is(err, model.ErrStageOrder))

	_, err = o.Export(ctx, run, &bytes.Buffer{}, "csv")
	assert.True(t, eris.Is(err, model.ErrStageOrder))
	assert.Equal(t, StageExtract, run.Stage())
}

func TestOrchestrator_NoValidFiles(t *testing.T) {
	res := &model.ExtractionResult{
		Items: []model.Item{},
		Outcomes: map[string]model.FileOutcome{
			"notes.txt": {File: "notes.txt", Status: model.OutcomeRejected, Reason: "unsupported format"},
		},
		Order: []string{"notes.txt"},
	}
	ex := &mockExtractor{}
	ex.On("Run", mock.Anything, mock.Anything).Return(res, eris.Wrap(model.ErrNoValidFiles, "batch"))

	o := New(ex, testMerger(), &mockExporter{})
	run := NewRun()

	got, err := o.Submit(context.Background(), run, []model.Upload{{Name: "notes.txt"}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNoValidFiles))
	require.NotNil(t, got)
	assert.Equal(t, model.OutcomeRejected, got.Outcomes["notes.txt"].Status)

	assert.Equal(t, StageUpload, run.Stage())
	snap := run.Snapshot()
	assert.NotEmpty(t, snap.LastError)
	require.Len(t, snap.Outcomes, 1)
	assert.Equal(t, []StepStatus{StepActive, StepInactive, StepInactive, StepInactive}, stepStatuses(run))
}

func TestOrchestrator_ExportFailureKeepsStage(t *testing.T) {
	ctx := context.Background()
	ex := &mockExtractor{}
	ex.On("Run", mock.Anything, mock.Anything).Return(extraction(chair("i1", 1)), nil)

	exp := &mockExporter{}
	exp.On("Export", mock.Anything, mock.Anything, "xlsx").Return(nil, eris.New("disk full")).Once()
	exp.On("Export", mock.Anything, mock.Anything, "xlsx").Return(&model.ExportResult{Format: "xlsx", Rows: 1}, nil).Once()

	o := New(ex, testMerger(), exp)
	run := NewRun()
	_, err := o.Submit(ctx, run, uploads())
	require.NoError(t, err)
	_, err = o.Consolidate(ctx, run, ConsolidateOptions{})
	require.NoError(t, err)

	_, err = o.Export(ctx, run, &bytes.Buffer{}, "xlsx")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrExportFailure))
	assert.Equal(t, StageConsolidate, run.Stage())
	assert.Len(t, run.Items(), 1)

	out, err := o.Export(ctx, run, &bytes.Buffer{}, "xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Rows)
	assert.Equal(t, StageExport, run.Stage())
	exp.AssertExpectations(t)
}

func TestOrchestrator_RepeatExport(t *testing.T) {
	ctx := context.Background()
	ex := &mockExtractor{}
	ex.On("Run", mock.Anything, mock.Anything).Return(extraction(chair("i1", 1)), nil)
	exp := &mockExporter{}
	exp.On("Export", mock.Anything, mock.Anything, mock.Anything).Return(&model.ExportResult{Format: "csv", Rows: 1}, nil)

	o := New(ex, testMerger(), exp)
	run := NewRun()
	_, err := o.Submit(ctx, run, uploads())
	require.NoError(t, err)
	_, err = o.Consolidate(ctx, run, ConsolidateOptions{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = o.Export(ctx, run, &bytes.Buffer{}, "csv")
		require.NoError(t, err)
	}
	exp.AssertNumberOfCalls(t, "Export", 2)
}

func TestOrchestrator_PassThrough(t *testing.T) {
	ctx := context.Background()
	ex := &mockExtractor{}
	ex.On("Run", mock.Anything, mock.Anything).Return(extraction(chair("i1", 2), chair("i2", 3)), nil)

	o := New(ex, testMerger(), &mockExporter{})
	run := NewRun()
	_, err := o.Submit(ctx, run, uploads())
	require.NoError(t, err)

	res, err := o.Consolidate(ctx, run, ConsolidateOptions{PassThrough: true})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 0, res.Merged())
	assert.Equal(t, StageConsolidate, run.Stage())
	assert.Equal(t, "Consolidated 2 items into 2 (0 duplicate groups merged)", run.Snapshot().Summary)
}

func TestOrchestrator_Resolve(t *testing.T) {
	ctx := context.Background()
	ex := &mockExtractor{}
	ex.On("Run", mock.Anything, mock.Anything).Return(extraction(chair("i1", 2), chair("i2", 3)), nil)

	o := New(ex, testMerger(), &mockExporter{})
	run := NewRun()
	_, err := o.Submit(ctx, run, uploads())
	require.NoError(t, err)

	it, id, ok := run.Resolve("i2")
	require.True(t, ok)
	assert.Equal(t, "i2", id)
	assert.Equal(t, 3, it.Quantity)

	_, err = o.Consolidate(ctx, run, ConsolidateOptions{})
	require.NoError(t, err)

	it, id, ok = run.Resolve("i2")
	require.True(t, ok)
	assert.Equal(t, "i1", id)
	assert.Equal(t, 5, it.Quantity)

	_, _, ok = run.Resolve("missing")
	assert.False(t, ok)
}

func TestOrchestrator_DiscardDuringExtraction(t *testing.T) {
	started := make(chan struct{})
	ex := extractorFunc(func(ctx context.Context, _ []model.Upload) (*model.ExtractionResult, error) {
		close(started)
		<-ctx.Done()
		return extraction(chair("late", 1)), nil
	})

	o := New(ex, testMerger(), &mockExporter{})
	run := NewRun()

	errc := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), run, uploads())
		errc <- err
	}()

	<-started
	fresh := o.Restart(run)

	select {
	case err := <-errc:
		assert.True(t, eris.Is(err, model.ErrRunDiscarded))
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return after discard")
	}

	assert.True(t, run.Discarded())
	assert.Empty(t, run.Items())
	assert.Equal(t, StageUpload, fresh.Stage())
	assert.NotEqual(t, run.ID, fresh.ID)

	_, err := o.Submit(context.Background(), run, uploads())
	assert.True(t, eris.Is(err, model.ErrRunDiscarded))
}

func TestOrchestrator_BusyRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ex := extractorFunc(func(context.Context, []model.Upload) (*model.ExtractionResult, error) {
		close(started)
		<-release
		return extraction(chair("i1", 1)), nil
	})

	o := New(ex, testMerger(), &mockExporter{})
	run := NewRun()

	errc := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), run, uploads())
		errc <- err
	}()
	<-started

	assert.Equal(t, StageExtract, run.Snapshot().Busy)
	assert.Equal(t, []StepStatus{StepCompleted, StepActive, StepInactive, StepInactive}, stepStatuses(run))

	_, err := o.Submit(context.Background(), run, uploads())
	assert.True(t, eris.Is(err, model.ErrStageOrder))

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, StageExtract, run.Stage())
}

func TestOrchestrator_DoesNotMutateInputs(t *testing.T) {
	ctx := context.Background()
	items := []model.Item{chair("i1", 2, "cap"), chair("i2", 3, "glide")}
	res := &model.ExtractionResult{Items: items, Outcomes: map[string]model.FileOutcome{}, Order: []string{"a.csv"}}

	ex := &mockExtractor{}
	ex.On("Run", mock.Anything, mock.Anything).Return(res, nil)
	o := New(ex, testMerger(), &mockExporter{})
	run := NewRun()

	ups := uploads()
	_, err := o.Submit(ctx, run, ups)
	require.NoError(t, err)
	_, err = o.Consolidate(ctx, run, ConsolidateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "a.csv", ups[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, []string{"cap"}, items[0].Accessories)
	assert.False(t, items[0].HasDuplicate)

	got := run.Items()
	got[0].Quantity = 99
	assert.Equal(t, 5, run.Items()[0].Quantity)
}

func TestSteps_Titles(t *testing.T) {
	steps := Steps(NewRun())
	require.Len(t, steps, 4)
	assert.Equal(t, "Upload Files", steps[0].Title)
	assert.Equal(t, "Extract Data", steps[1].Title)
	assert.Equal(t, "Consolidate Items", steps[2].Title)
	assert.Equal(t, "Generate Proposal", steps[3].Title)
	for _, s := range steps {
		assert.NotEmpty(t, s.Description)
	}
}

func TestOrchestrator_ExtractorAndExporterStack(t *testing.T) {
	ctx := context.Background()
	coord := ingest.New(extract.NewRegistry(extract.DefaultAliasTable(), nil), config.ExtractConfig{
		FileTimeoutSecs:    5,
		MaxConcurrentFiles: 2,
		MaxFileSizeMB:      1,
	})
	o := New(coord, testMerger(), export.New(config.ExportConfig{Format: export.FormatCSV}))

	sheet := "Item #,Name,Qty,Height,Width,Depth\nFF-101,Lounge Chair,%d,30,20,22\n"
	run := NewRun()
	_, err := o.Submit(ctx, run, []model.Upload{
		{Name: "a.csv", Content: []byte(fmt.Sprintf(sheet, 2))},
		{Name: "b.csv", Content: []byte(fmt.Sprintf(sheet, 3))},
	})
	require.NoError(t, err)
	require.Equal(t, StageExtract, run.Stage())

	merged, err := o.Consolidate(ctx, run, ConsolidateOptions{})
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, 5, merged.Items[0].Quantity)
	assert.Equal(t, StageConsolidate, run.Stage())
	assert.Empty(t, run.Snapshot().LastError)

	var buf bytes.Buffer
	out, err := o.Export(ctx, run, &buf, "")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Rows)
	assert.Equal(t, StageExport, run.Stage())
	assert.Contains(t, buf.String(), "FF-101")
}

func TestOrchestrator_ConsolidateCancelledContext(t *testing.T) {
	ex := &mockExtractor{}
	ex.On("Run", mock.Anything, uploads()).Return(extraction(chair("i1", 2), chair("i2", 3)), nil)
	o := New(ex, testMerger(), &mockExporter{})

	run := NewRun()
	_, err := o.Submit(context.Background(), run, uploads())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Consolidate(ctx, run, ConsolidateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
	assert.Equal(t, StageExtract, run.Stage())

	_, err = o.Consolidate(context.Background(), run, ConsolidateOptions{})
	require.NoError(t, err)
	assert.Equal(t, StageConsolidate, run.Stage())
}

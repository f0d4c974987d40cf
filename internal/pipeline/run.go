package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/quote-cli/internal/consolidate"
	"github.com/sells-group/quote-cli/internal/model"
)

// Stage is a position in the upload → extract → consolidate → export cycle.
type Stage string

const (
	StageUpload      Stage = "upload"
	StageExtract     Stage = "extract"
	StageConsolidate Stage = "consolidate"
	StageExport      Stage = "export"
)

// Stages lists the stages in order.
var Stages = []Stage{StageUpload, StageExtract, StageConsolidate, StageExport}

func (s Stage) index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Run is the session-scoped state of one upload-to-export cycle. The stage
// names the last step whose work has completed; a new run is at
// StageUpload. A Run is owned by its caller and is safe for concurrent use.
type Run struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	stage      Stage
	busy       Stage
	cancel     context.CancelFunc
	discarded  bool
	extraction *model.ExtractionResult
	items      []model.Item
	merged     *consolidate.Result
	export     *model.ExportResult
	lastErr    string
	summary    string
	touched    time.Time
}

// NewRun creates a run at StageUpload.
func NewRun() *Run {
	now := time.Now()
	return &Run{
		ID:        uuid.NewString(),
		CreatedAt: now,
		stage:     StageUpload,
		touched:   now,
	}
}

// Snapshot is a read-only copy of a run's state.
type Snapshot struct {
	ID        string              `json:"id"`
	Stage     Stage               `json:"stage"`
	Busy      Stage               `json:"busy,omitempty"`
	Discarded bool                `json:"discarded"`
	Summary   string              `json:"summary,omitempty"`
	LastError string              `json:"last_error,omitempty"`
	Items     int                 `json:"items"`
	Outcomes  []model.FileOutcome `json:"outcomes,omitempty"`
	Export    *model.ExportResult `json:"export,omitempty"`
	Steps     []Step              `json:"steps"`
	CreatedAt time.Time           `json:"created_at"`
}

// Snapshot returns a copy of the run's current state.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		ID:        r.ID,
		Stage:     r.stage,
		Busy:      r.busy,
		Discarded: r.discarded,
		Summary:   r.summary,
		LastError: r.lastErr,
		Items:     len(r.items),
		Export:    r.export,
		Steps:     r.stepsLocked(),
		CreatedAt: r.CreatedAt,
	}
	if r.extraction != nil {
		s.Outcomes = r.extraction.OrderedOutcomes()
	}
	return s
}

// Stage returns the current stage.
func (r *Run) Stage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// Items returns a copy of the run's current item collection.
func (r *Run) Items() []model.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.CloneItems(r.items)
}

// Touched returns when the run was last used.
func (r *Run) Touched() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touched
}

// Discarded reports whether the run was restarted or abandoned.
func (r *Run) Discarded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discarded
}

// Resolve returns the current record for an item id. Ids seen before
// consolidation resolve to the merged record that absorbed them; the
// second result is the id of that record.
func (r *Run) Resolve(id string) (model.Item, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := id
	if r.merged != nil {
		into, ok := r.merged.MergedInto[id]
		if !ok {
			return model.Item{}, "", false
		}
		target = into
	}
	for _, it := range r.items {
		if it.ID == target {
			return it.Clone(), target, true
		}
	}
	return model.Item{}, "", false
}

// Discard abandons the run. In-flight work is cancelled and its results
// are ignored when they arrive.
func (r *Run) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discarded = true
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

package model

// OutcomeStatus is the per-file result of extraction.
type OutcomeStatus string

const (
	OutcomeSuccess  OutcomeStatus = "success"
	OutcomePartial  OutcomeStatus = "partial"
	OutcomeFailed   OutcomeStatus = "failed"
	OutcomeTimedOut OutcomeStatus = "timed_out"
	OutcomeRejected OutcomeStatus = "rejected"
)

// FileOutcome is the single recorded outcome of one uploaded file.
type FileOutcome struct {
	File        string        `json:"file"`
	Kind        Kind          `json:"kind,omitempty"`
	Status      OutcomeStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	Items       int           `json:"items"`
	SkippedRows []string      `json:"skipped_rows,omitempty"`
	Warnings    []Warning     `json:"warnings,omitempty"`
	DurationMs  int64         `json:"duration_ms"`
}

// ExtractionResult is the output of one extraction cycle.
type ExtractionResult struct {
	Items    []Item                 `json:"items"`
	Outcomes map[string]FileOutcome `json:"outcomes"`
	// Order lists file names in submission order for display.
	Order []string `json:"order"`
}

// OrderedOutcomes returns the outcomes in submission order.
func (r *ExtractionResult) OrderedOutcomes() []FileOutcome {
	out := make([]FileOutcome, 0, len(r.Order))
	for _, name := range r.Order {
		if o, ok := r.Outcomes[name]; ok {
			out = append(out, o)
		}
	}
	return out
}

// ExportResult describes a produced export artifact.
type ExportResult struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format"`
	Rows   int    `json:"rows"`
	Bytes  int    `json:"bytes"`
}

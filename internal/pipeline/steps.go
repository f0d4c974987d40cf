package pipeline

// StepStatus is the display state of one pipeline step.
type StepStatus string

const (
	StepInactive  StepStatus = "inactive"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
)

// Step describes one stage for the step-status panel.
type Step struct {
	ID          Stage      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
}

var stepText = map[Stage][2]string{
	StageUpload:      {"Upload Files", "Upload client specification documents, spreadsheets, and PDFs"},
	StageExtract:     {"Extract Data", "Automatically extract items, specifications, quantities, and accessories"},
	StageConsolidate: {"Consolidate Items", "Identify and merge duplicate items with identical specifications"},
	StageExport:      {"Generate Proposal", "Export a clean, organized Excel file ready for pricing and client submission"},
}

// Steps returns the four steps with their status for run r.
func Steps(r *Run) []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepsLocked()
}

func (r *Run) stepsLocked() []Step {
	done := r.stage.index()
	if r.stage == StageUpload && r.busy == "" {
		done = -1
	}

	steps := make([]Step, len(Stages))
	for i, st := range Stages {
		status := StepInactive
		switch {
		case i <= done:
			status = StepCompleted
		case i == done+1:
			status = StepActive
		}
		steps[i] = Step{
			ID:          st,
			Title:       stepText[st][0],
			Description: stepText[st][1],
			Status:      status,
		}
	}
	return steps
}

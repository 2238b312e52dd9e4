package domain

import "time"

// RunStatus is the lifecycle status of a generation run.
type RunStatus string

const (
	RunStatusRunning         RunStatus = "RUNNING"
	RunStatusCompleted       RunStatus = "COMPLETED"
	RunStatusPartiallyFailed RunStatus = "PARTIALLY_FAILED"
	RunStatusFailed          RunStatus = "FAILED"
	RunStatusCancelled       RunStatus = "CANCELLED"
)

// IsTerminal reports whether the run has finished, one way or another.
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning
}

// Run is one user-initiated generation request and its execution state.
// SetJobs are ordered by index; each is mutated only by its own task.
type Run struct {
	ID          string
	Request     GenerationRequest
	Status      RunStatus
	Sets        []*SetJob
	CreatedAt   time.Time
	CompletedAt time.Time
}

// SetResult is the terminal outcome of one set inside a RunResult.
type SetResult struct {
	Index          int        `json:"index"`
	Status         SetStatus  `json:"status"`
	Items          []Question `json:"items,omitempty"`
	ValidationText string     `json:"validation_text,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	Attempts       int        `json:"attempts"`
}

// RunResult is the aggregate outcome delivered once a run is terminal.
// The caller always receives one, even for a fully failed run.
type RunResult struct {
	RunID          string      `json:"run_id"`
	Status         RunStatus   `json:"status"`
	Topic          string      `json:"topic"`
	Difficulty     Difficulty  `json:"difficulty"`
	Sets           []SetResult `json:"sets"`
	AcceptedCount  int         `json:"accepted_count"`
	FailedCount    int         `json:"failed_count"`
	RequestingUser string      `json:"requesting_user,omitempty"`
	CompletedAt    time.Time   `json:"completed_at"`
}

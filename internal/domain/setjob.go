package domain

import "time"

// SetStatus is the state of one set job in its state machine.
type SetStatus string

const (
	SetStatusPending    SetStatus = "PENDING"
	SetStatusGenerating SetStatus = "GENERATING"
	SetStatusValidating SetStatus = "VALIDATING"
	SetStatusRetrying   SetStatus = "RETRYING"
	SetStatusAccepted   SetStatus = "ACCEPTED"
	SetStatusFailed     SetStatus = "FAILED"
)

// IsTerminal reports whether the set job has reached a final state.
func (s SetStatus) IsTerminal() bool {
	return s == SetStatusAccepted || s == SetStatusFailed
}

// SetJob drives one batch of questions through generate -> validate ->
// accept/retry/fail. It is owned exclusively by its own task for the
// lifetime of the run; no other task mutates it.
type SetJob struct {
	ID     string
	Index  int
	Status SetStatus
	// Attempt counts generate/validate cycles, starting at 0 before the
	// first cycle begins.
	Attempt          int
	Items            []Question
	ValidationText   string
	RejectionReasons []string
	FailureReason    string
	CreatedAt        time.Time
	LastTransitionAt time.Time
}

// Snapshot returns an immutable copy for cross-cutting readers
// (aggregator, subscribers) so they never hold a reference into
// task-owned state.
func (j *SetJob) Snapshot() SetJob {
	c := *j
	c.Items = append([]Question(nil), j.Items...)
	c.RejectionReasons = append([]string(nil), j.RejectionReasons...)
	return c
}

package domain

import "time"

// EventKind identifies a set job or run state transition.
type EventKind string

const (
	EventSetStarted     EventKind = "SET_STARTED"
	EventGenerating     EventKind = "GENERATING"
	EventValidating     EventKind = "VALIDATING"
	EventRetryScheduled EventKind = "RETRY_SCHEDULED"
	EventSetAccepted    EventKind = "SET_ACCEPTED"
	EventSetFailed      EventKind = "SET_FAILED"
	EventRunCompleted   EventKind = "RUN_COMPLETED"
	EventRunCancelled   EventKind = "RUN_CANCELLED"
)

// RunLevel is the SetIndex of events that concern the whole run.
const RunLevel = -1

// ProgressEvent is an immutable notification of one state transition.
// The per-run event log is the single source of truth for externally
// observable ordering: events of the same SetIndex are totally ordered,
// events across sets may interleave.
type ProgressEvent struct {
	RunID    string    `json:"run_id"`
	SetIndex int       `json:"set_index"`
	Kind     EventKind `json:"kind"`
	Attempt  int       `json:"attempt,omitempty"`
	Message  string    `json:"message,omitempty"`
	// Progress is the share of terminal sets, 0-100, set on terminal
	// set events and run-level events.
	Progress  int       `json:"progress,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

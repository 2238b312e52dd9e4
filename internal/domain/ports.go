package domain

import "context"

// PromptSpec carries everything one generate call needs. PriorRejection
// is the previous attempt's validation feedback, carried forward so the
// provider can self-correct; it is the only cross-attempt state besides
// the attempt counter.
type PromptSpec struct {
	Topic          string
	Context        string
	Instructions   string
	Count          int
	Difficulty     Difficulty
	QuestionTypes  []QuestionType
	PriorRejection string
}

// GeneratorAdapter wraps the content provider behind a uniform
// interface. Implementations classify failures as PROVIDER_TRANSIENT
// (retryable) or PROVIDER_FATAL (aborts the whole run).
type GeneratorAdapter interface {
	Generate(ctx context.Context, spec PromptSpec) ([]Question, error)
}

// Verdict is the validator's accept/reject outcome for one set. A set
// is all-or-nothing per attempt: any item-level issue rejects the whole
// set.
type Verdict struct {
	Accepted bool
	Reason   string
	// Report is the validator's full analysis text, retained on
	// accepted sets.
	Report        string
	PerItemDetail []ItemIssue
}

// ItemIssue points at one problematic question inside a rejected set.
type ItemIssue struct {
	Index   int    `json:"index"`
	Problem string `json:"problem"`
}

// ValidatorAdapter runs the independent correctness check on a
// generated set. Failures surface as VALIDATOR_UNAVAILABLE and are
// retried like a rejection.
type ValidatorAdapter interface {
	Validate(ctx context.Context, items []Question, spec PromptSpec) (*Verdict, error)
}

// PersistenceSink receives the terminal RunResult, best effort: a save
// failure never fails the run.
type PersistenceSink interface {
	Save(ctx context.Context, result *RunResult) error
}

// ResultCache keeps terminal RunResults queryable after the active-run
// table evicts them. Get returns ErrCacheMiss when the run is absent.
type ResultCache interface {
	Put(ctx context.Context, result *RunResult) error
	Get(ctx context.Context, runID string) (*RunResult, error)
}

package orchestrator

import "quizforge/internal/domain"

// buildResult collects terminal set outcomes into the final RunResult.
// It runs only after every set job is terminal, reading snapshots of
// task-owned state.
//
// Status derivation: Completed when every set is Accepted, Failed when
// none is (or the run was aborted by a fatal provider error),
// PartiallyFailed for a mix. Cancellation and timeout override to
// Cancelled while still reporting per-set outcomes already reached.
func buildResult(run *domain.Run, cancelCode domain.ErrorCode) *domain.RunResult {
	result := &domain.RunResult{
		RunID:          run.ID,
		Topic:          run.Request.Topic,
		Difficulty:     run.Request.Difficulty,
		RequestingUser: run.Request.RequestingUser,
		Sets:           make([]domain.SetResult, len(run.Sets)),
	}

	for i, job := range run.Sets {
		snap := job.Snapshot()
		sr := domain.SetResult{
			Index:    snap.Index,
			Status:   snap.Status,
			Attempts: snap.Attempt,
		}
		if snap.Status == domain.SetStatusAccepted {
			sr.Items = snap.Items
			sr.ValidationText = snap.ValidationText
			result.AcceptedCount++
		} else {
			sr.FailureReason = snap.FailureReason
			result.FailedCount++
		}
		result.Sets[i] = sr
	}

	switch cancelCode {
	case domain.ErrCodeCancelled, domain.ErrCodeTimedOut:
		result.Status = domain.RunStatusCancelled
	case domain.ErrCodeFatalAbort:
		result.Status = domain.RunStatusFailed
	default:
		switch {
		case result.AcceptedCount == len(run.Sets):
			result.Status = domain.RunStatusCompleted
		case result.AcceptedCount == 0:
			result.Status = domain.RunStatusFailed
		default:
			result.Status = domain.RunStatusPartiallyFailed
		}
	}
	return result
}

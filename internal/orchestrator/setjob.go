package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"quizforge/internal/domain"
	"quizforge/internal/util"

	"go.uber.org/zap"
)

// runSetJob drives one set through the state machine:
//
//	Pending -> Generating -> Validating -> Accepted
//	                 \-> Retrying -> Generating (attempt budget permitting)
//	any non-terminal -> Failed on cancellation or a fatal provider error
//
// The job is owned by this call for its whole lifetime; every
// transition emits exactly one progress event.
func (o *Orchestrator) runSetJob(rs *runState, job *domain.SetJob) {
	log := o.logger.With(
		zap.String("run_id", rs.run.ID),
		zap.Int("set_index", job.Index),
	)

	// Cancellation observed before the first transition: the job never
	// starts generating.
	if rs.ctx.Err() != nil {
		o.failSet(rs, job, rs.abortCode(), "run aborted before set started")
		return
	}

	o.transition(rs, job, domain.SetStatusPending, domain.EventSetStarted,
		fmt.Sprintf("Set %d/%d queued", job.Index+1, len(rs.run.Sets)))

	spec := promptSpec(rs.run.Request)
	var priorRejection string

	for attempt := 1; attempt <= o.maxAttempts(); attempt++ {
		job.Attempt = attempt

		if rs.ctx.Err() != nil {
			o.failSet(rs, job, rs.abortCode(), "run aborted")
			return
		}

		o.transition(rs, job, domain.SetStatusGenerating, domain.EventGenerating,
			fmt.Sprintf("Generating set %d (attempt %d/%d)", job.Index+1, attempt, o.maxAttempts()))

		spec.PriorRejection = priorRejection
		items, err := o.generate(rs, spec)
		if err != nil {
			if rs.ctx.Err() != nil {
				// Result of an aborted in-flight call is discarded.
				o.failSet(rs, job, rs.abortCode(), "run aborted during generation")
				return
			}
			if domain.IsCode(err, domain.ErrCodeProviderFatal) {
				log.Error("Fatal provider error, aborting run", zap.Error(err))
				rs.abort(domain.ErrCodeFatalAbort)
				o.failSet(rs, job, domain.ErrCodeFatalAbort, err.Error())
				return
			}
			log.Warn("Generation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			if attempt == o.maxAttempts() {
				o.failSet(rs, job, domain.ErrCodeRetryExhausted,
					fmt.Sprintf("generation failed on final attempt: %v", err))
				return
			}
			if !o.backoff(rs, job, attempt, fmt.Sprintf("provider error: %v", err)) {
				o.failSet(rs, job, rs.abortCode(), "run aborted during retry backoff")
				return
			}
			continue
		}

		o.transition(rs, job, domain.SetStatusValidating, domain.EventValidating,
			fmt.Sprintf("Validating set %d (attempt %d/%d)", job.Index+1, attempt, o.maxAttempts()))

		verdict, err := o.validate(rs, items, spec)
		if err != nil {
			if rs.ctx.Err() != nil {
				o.failSet(rs, job, rs.abortCode(), "run aborted during validation")
				return
			}
			// Validator downtime is spent like a rejection: it consumes
			// an attempt but never aborts siblings.
			log.Warn("Validator unavailable", zap.Int("attempt", attempt), zap.Error(err))
			if attempt == o.maxAttempts() {
				o.failSet(rs, job, domain.ErrCodeRetryExhausted,
					fmt.Sprintf("validator unavailable on final attempt: %v", err))
				return
			}
			if !o.backoff(rs, job, attempt, "validator unavailable") {
				o.failSet(rs, job, rs.abortCode(), "run aborted during retry backoff")
				return
			}
			continue
		}

		if verdict.Accepted {
			o.acceptSet(rs, job, items, verdict.Report)
			log.Info("Set accepted", zap.Int("attempt", attempt), zap.Int("items", len(items)))
			return
		}

		reason := rejectionReason(verdict)
		job.RejectionReasons = append(job.RejectionReasons, reason)
		priorRejection = util.TruncateString(reason, o.cfg.RejectionReasonMaxLen)
		log.Info("Set rejected by validator",
			zap.Int("attempt", attempt),
			zap.String("reason", util.TruncateString(reason, 200)),
		)

		if attempt == o.maxAttempts() {
			o.failSet(rs, job, domain.ErrCodeRetryExhausted,
				fmt.Sprintf("validation rejected on final attempt: %s", reason))
			return
		}
		if !o.backoff(rs, job, attempt, "validation rejected") {
			o.failSet(rs, job, rs.abortCode(), "run aborted during retry backoff")
			return
		}
	}
}

func (o *Orchestrator) maxAttempts() int {
	if o.cfg.MaxAttempts <= 0 {
		return 1
	}
	return o.cfg.MaxAttempts
}

// transition applies one state change and emits its event.
func (o *Orchestrator) transition(rs *runState, job *domain.SetJob, status domain.SetStatus, kind domain.EventKind, message string) {
	now := time.Now()
	job.Status = status
	job.LastTransitionAt = now
	rs.stream.Append(domain.ProgressEvent{
		RunID:     rs.run.ID,
		SetIndex:  job.Index,
		Kind:      kind,
		Attempt:   job.Attempt,
		Message:   message,
		EmittedAt: now,
	})
}

// acceptSet marks the job terminally accepted with its validated items.
func (o *Orchestrator) acceptSet(rs *runState, job *domain.SetJob, items []domain.Question, report string) {
	now := time.Now()
	job.Items = items
	job.ValidationText = report
	job.Status = domain.SetStatusAccepted
	job.LastTransitionAt = now
	rs.stream.Append(domain.ProgressEvent{
		RunID:     rs.run.ID,
		SetIndex:  job.Index,
		Kind:      domain.EventSetAccepted,
		Attempt:   job.Attempt,
		Message:   fmt.Sprintf("Set %d accepted with %d questions", job.Index+1, len(items)),
		Progress:  o.markTerminal(rs),
		EmittedAt: now,
	})
}

// failSet marks the job terminally failed. reasonCode becomes the
// leading token of FailureReason so the aggregator and callers can
// distinguish exhaustion from aborts.
func (o *Orchestrator) failSet(rs *runState, job *domain.SetJob, reasonCode domain.ErrorCode, message string) {
	job.FailureReason = fmt.Sprintf("%s: %s", reasonCode, message)
	now := time.Now()
	job.Status = domain.SetStatusFailed
	job.LastTransitionAt = now
	rs.stream.Append(domain.ProgressEvent{
		RunID:     rs.run.ID,
		SetIndex:  job.Index,
		Kind:      domain.EventSetFailed,
		Attempt:   job.Attempt,
		Message:   job.FailureReason,
		Progress:  o.markTerminal(rs),
		EmittedAt: now,
	})
	o.logger.Warn("Set failed",
		zap.String("run_id", rs.run.ID),
		zap.Int("set_index", job.Index),
		zap.String("reason", job.FailureReason),
	)
}

// markTerminal bumps the terminal-set counter and returns run progress
// as a percentage.
func (o *Orchestrator) markTerminal(rs *runState) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.terminalSets++
	return rs.terminalSets * 100 / len(rs.run.Sets)
}

// backoff waits out the inter-retry delay, emitting RetryScheduled
// first. The delay doubles per attempt up to the configured ceiling.
// Returns false if the run was aborted while waiting.
func (o *Orchestrator) backoff(rs *runState, job *domain.SetJob, attempt int, why string) bool {
	delay := o.cfg.BackoffInitial
	if delay <= 0 {
		delay = time.Second
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if o.cfg.BackoffMax > 0 && delay > o.cfg.BackoffMax {
		delay = o.cfg.BackoffMax
	}

	o.transition(rs, job, domain.SetStatusRetrying, domain.EventRetryScheduled,
		fmt.Sprintf("Retrying set %d in %s (%s)", job.Index+1, delay, why))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-rs.ctx.Done():
		return false
	}
}

// generate runs one generation attempt, splitting the request into
// provider-sized chunks when questionsPerSet exceeds the chunk size.
// Any chunk failure fails the whole attempt.
func (o *Orchestrator) generate(rs *runState, spec domain.PromptSpec) ([]domain.Question, error) {
	chunk := o.cfg.ChunkSize
	if chunk <= 0 || spec.Count <= chunk {
		return o.callGenerator(rs, spec)
	}

	var all []domain.Question
	remaining := spec.Count
	for remaining > 0 {
		size := chunk
		if size > remaining {
			size = remaining
		}
		chunkSpec := spec
		chunkSpec.Count = size
		items, err := o.callGenerator(rs, chunkSpec)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		remaining -= size
	}
	for i := range all {
		all[i].OrderIndex = i
	}
	return all, nil
}

// callGenerator is a suspension point: it honors the global provider
// cap and the run context.
func (o *Orchestrator) callGenerator(rs *runState, spec domain.PromptSpec) ([]domain.Question, error) {
	if o.globalSem != nil {
		if err := o.globalSem.Acquire(rs.ctx, 1); err != nil {
			return nil, err
		}
		defer o.globalSem.Release(1)
	}
	return o.generator.Generate(rs.ctx, spec)
}

// validate is the second suspension point, under the same global cap.
func (o *Orchestrator) validate(rs *runState, items []domain.Question, spec domain.PromptSpec) (*domain.Verdict, error) {
	if o.globalSem != nil {
		if err := o.globalSem.Acquire(rs.ctx, 1); err != nil {
			return nil, err
		}
		defer o.globalSem.Release(1)
	}
	return o.validator.Validate(rs.ctx, items, spec)
}

func promptSpec(req domain.GenerationRequest) domain.PromptSpec {
	return domain.PromptSpec{
		Topic:         req.Topic,
		Context:       req.Context,
		Instructions:  req.Instructions,
		Count:         req.QuestionsPerSet,
		Difficulty:    req.Difficulty,
		QuestionTypes: req.QuestionTypes,
	}
}

// rejectionReason flattens a rejecting verdict into the text carried
// into the next attempt's prompt.
func rejectionReason(v *domain.Verdict) string {
	var b strings.Builder
	if v.Reason != "" {
		b.WriteString(v.Reason)
	} else {
		b.WriteString("validator rejected the set")
	}
	for _, issue := range v.PerItemDetail {
		b.WriteString(fmt.Sprintf("; question %d: %s", issue.Index+1, issue.Problem))
	}
	return b.String()
}

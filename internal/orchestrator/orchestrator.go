package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/domain"
	"quizforge/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Orchestrator owns the active-run table. It schedules set jobs onto a
// bounded per-run worker pool, aggregates outcomes and propagates
// cancellation; it holds no generation logic of its own.
type Orchestrator struct {
	cfg       config.GenerationConfig
	generator domain.GeneratorAdapter
	validator domain.ValidatorAdapter
	sink      domain.PersistenceSink
	results   domain.ResultCache
	logger    *zap.Logger

	mu   sync.RWMutex
	runs map[string]*runState

	// globalSem caps outstanding provider calls across all active runs.
	globalSem *semaphore.Weighted
}

// runState is one entry in the active-run table. Run.Status and the
// terminal result are guarded by mu; each SetJob is mutated only by the
// worker that owns it.
type runState struct {
	run    *domain.Run
	stream *Stream
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	cancelCode domain.ErrorCode
	result     *domain.RunResult

	// terminalSets counts finished set jobs for progress reporting.
	terminalSets int

	done chan struct{}
}

// New constructs an Orchestrator. sink and results are best-effort
// collaborators and may be nil.
func New(
	cfg config.GenerationConfig,
	generator domain.GeneratorAdapter,
	validator domain.ValidatorAdapter,
	sink domain.PersistenceSink,
	results domain.ResultCache,
	logger *zap.Logger,
) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		generator: generator,
		validator: validator,
		sink:      sink,
		results:   results,
		logger:    logger,
		runs:      make(map[string]*runState),
	}
	if cfg.GlobalConcurrency > 0 {
		o.globalSem = semaphore.NewWeighted(int64(cfg.GlobalConcurrency))
	}
	return o
}

// Submit validates the request, creates the run with its set jobs and
// starts execution. It returns the run ID before any generation begins.
func (o *Orchestrator) Submit(req domain.GenerationRequest) (string, error) {
	limits := domain.RequestLimits{
		MaxSets:            o.cfg.MaxSets,
		MaxQuestionsPerSet: o.cfg.MaxQuestionsPerSet,
	}
	if err := req.Validate(limits); err != nil {
		return "", err
	}

	now := time.Now()
	run := &domain.Run{
		ID:        util.NewULID(),
		Request:   req,
		Status:    domain.RunStatusRunning,
		CreatedAt: now,
		Sets:      make([]*domain.SetJob, req.NumSets),
	}
	for i := 0; i < req.NumSets; i++ {
		run.Sets[i] = &domain.SetJob{
			ID:               util.NewULID(),
			Index:            i,
			Status:           domain.SetStatusPending,
			CreatedAt:        now,
			LastTransitionAt: now,
		}
	}

	// The run outlives the submit request; it is bounded by the
	// configured run timeout, not the caller's context.
	var ctx context.Context
	var cancel context.CancelFunc
	if o.cfg.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), o.cfg.RunTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	rs := &runState{
		run:    run,
		stream: newStream(run.ID),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	o.mu.Lock()
	o.runs[run.ID] = rs
	o.mu.Unlock()

	o.logger.Info("Run submitted",
		zap.String("run_id", run.ID),
		zap.String("topic", req.Topic),
		zap.Int("num_sets", req.NumSets),
		zap.Int("questions_per_set", req.QuestionsPerSet),
		zap.String("user", req.RequestingUser),
	)

	go o.executeRun(rs)
	return run.ID, nil
}

// Cancel requests cooperative cancellation of a running run. Cancelling
// a terminal run is a no-op; an unknown run ID is RUN_NOT_FOUND.
func (o *Orchestrator) Cancel(runID string) error {
	rs, ok := o.lookup(runID)
	if !ok {
		return domain.NewRunNotFoundError(runID)
	}
	rs.abort(domain.ErrCodeCancelled)
	o.logger.Info("Run cancellation requested", zap.String("run_id", runID))
	return nil
}

// Subscribe attaches to the run's progress stream. Late subscribers
// receive the full backlog before live events.
func (o *Orchestrator) Subscribe(ctx context.Context, runID string) (<-chan domain.ProgressEvent, error) {
	rs, ok := o.lookup(runID)
	if !ok {
		return nil, domain.NewRunNotFoundError(runID)
	}
	return rs.stream.Subscribe(ctx), nil
}

// Result returns the terminal RunResult. A run still in progress is
// RUN_NOT_TERMINAL; an evicted run is served from the result cache.
func (o *Orchestrator) Result(ctx context.Context, runID string) (*domain.RunResult, error) {
	rs, ok := o.lookup(runID)
	if ok {
		rs.mu.Lock()
		result := rs.result
		rs.mu.Unlock()
		if result == nil {
			return nil, domain.NewRunNotTerminalError(runID)
		}
		return result, nil
	}
	if o.results != nil {
		result, err := o.results.Get(ctx, runID)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			o.logger.Warn("Result cache lookup failed", zap.String("run_id", runID), zap.Error(err))
		}
	}
	return nil, domain.NewRunNotFoundError(runID)
}

// Wait blocks until the run is terminal. Test hook and graceful
// shutdown aid.
func (o *Orchestrator) Wait(runID string) error {
	rs, ok := o.lookup(runID)
	if !ok {
		return domain.NewRunNotFoundError(runID)
	}
	<-rs.done
	return nil
}

func (o *Orchestrator) lookup(runID string) (*runState, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rs, ok := o.runs[runID]
	return rs, ok
}

// executeRun fans the run out onto the worker pool and finalizes once
// every set job is terminal.
func (o *Orchestrator) executeRun(rs *runState) {
	defer rs.cancel()

	numSets := len(rs.run.Sets)
	workers := o.cfg.Concurrency
	if workers <= 0 || workers > numSets {
		workers = numSets
	}

	// FIFO by index: jobs beyond the pool size queue in order.
	jobs := make(chan *domain.SetJob, numSets)
	for _, job := range rs.run.Sets {
		jobs <- job
	}
	close(jobs)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				o.runSetJob(rs, job)
			}
		}()
	}
	wg.Wait()

	o.finalize(rs)
}

// finalize derives the run status, emits the terminal event, stores the
// result and schedules eviction.
func (o *Orchestrator) finalize(rs *runState) {
	rs.mu.Lock()
	cancelCode := rs.cancelCode
	if cancelCode == "" && rs.ctx.Err() == context.DeadlineExceeded {
		cancelCode = domain.ErrCodeTimedOut
		rs.cancelCode = cancelCode
	}
	rs.mu.Unlock()

	result := buildResult(rs.run, cancelCode)
	now := time.Now()
	result.CompletedAt = now

	rs.mu.Lock()
	rs.run.Status = result.Status
	rs.run.CompletedAt = now
	rs.result = result
	rs.mu.Unlock()

	kind := domain.EventRunCompleted
	message := fmt.Sprintf("Run finished: %d accepted, %d failed", result.AcceptedCount, result.FailedCount)
	if result.Status == domain.RunStatusCancelled {
		kind = domain.EventRunCancelled
		message = "Run cancelled"
		if cancelCode == domain.ErrCodeTimedOut {
			message = "Run timed out"
		}
	}
	rs.stream.Append(domain.ProgressEvent{
		RunID:     rs.run.ID,
		SetIndex:  domain.RunLevel,
		Kind:      kind,
		Message:   message,
		Progress:  100,
		EmittedAt: now,
	})
	rs.stream.Close()

	o.logger.Info("Run terminal",
		zap.String("run_id", rs.run.ID),
		zap.String("status", string(result.Status)),
		zap.Int("accepted", result.AcceptedCount),
		zap.Int("failed", result.FailedCount),
	)

	// Persist before signalling done so Wait callers observe a fully
	// stored result.
	o.persist(result)
	close(rs.done)

	if o.cfg.ResultRetention > 0 {
		runID := rs.run.ID
		time.AfterFunc(o.cfg.ResultRetention, func() {
			o.evict(runID)
		})
	}
}

// persist hands the terminal result to the sink and the result cache.
// Both are best effort; a failure is logged, never propagated.
func (o *Orchestrator) persist(result *domain.RunResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if o.sink != nil {
		if err := o.sink.Save(ctx, result); err != nil {
			o.logger.Error("Failed to persist run result",
				zap.String("run_id", result.RunID), zap.Error(err))
		}
	}
	if o.results != nil {
		if err := o.results.Put(ctx, result); err != nil {
			o.logger.Warn("Failed to cache run result",
				zap.String("run_id", result.RunID), zap.Error(err))
		}
	}
}

func (o *Orchestrator) evict(runID string) {
	o.mu.Lock()
	delete(o.runs, runID)
	o.mu.Unlock()
	o.logger.Debug("Run evicted from active-run table", zap.String("run_id", runID))
}

// abort cancels the run context once, recording why. The first cause
// wins; a later cancel of an already-aborting run is a no-op.
func (rs *runState) abort(code domain.ErrorCode) {
	rs.mu.Lock()
	if rs.cancelCode == "" && rs.result == nil {
		rs.cancelCode = code
	}
	rs.mu.Unlock()
	rs.cancel()
}

// abortCode reports why the run context was cancelled.
func (rs *runState) abortCode() domain.ErrorCode {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cancelCode != "" {
		return rs.cancelCode
	}
	if rs.ctx.Err() == context.DeadlineExceeded {
		return domain.ErrCodeTimedOut
	}
	return domain.ErrCodeCancelled
}

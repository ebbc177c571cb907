// Package pool implements the bounded worker pool that dispatches scrape
// tasks to engine adapters and extraction strategies.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webharvest/webharvest/internal/progress"
	"github.com/webharvest/webharvest/internal/queue/memory"
	"github.com/webharvest/webharvest/internal/scraper"
)

// Config controls pool sizing and retry defaults.
type Config struct {
	// MaxInstances bounds the number of concurrently busy workers.
	MaxInstances int
	// QueueDepth bounds the task queue; <= 0 sizes the queue to the batch.
	QueueDepth int
	// DefaultMaxRetries applies to tasks that do not set their own budget.
	DefaultMaxRetries int
}

// Pool runs batches of scrape tasks over a fixed-size worker set. All
// collaborators are injected; the pool holds no package-level state.
type Pool struct {
	cfg      Config
	resolver *scraper.Resolver
	registry *scraper.Registry
	retry    scraper.RetryPolicy
	emitter  progress.Emitter
	store    scraper.ResultStore
	clock    scraper.Clock
	logger   *zap.Logger

	// slots bounds busy workers across concurrent Submit calls.
	slots chan struct{}

	mu     sync.Mutex
	active int

	agg *Aggregator
}

// New constructs a Pool. resolver, registry, retry and clock are required;
// emitter and store may be nil.
func New(
	cfg Config,
	resolver *scraper.Resolver,
	registry *scraper.Registry,
	retry scraper.RetryPolicy,
	emitter progress.Emitter,
	store scraper.ResultStore,
	clock scraper.Clock,
	logger *zap.Logger,
) *Pool {
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = 5
	}
	if cfg.DefaultMaxRetries <= 0 {
		cfg.DefaultMaxRetries = scraper.DefaultMaxRetries
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:      cfg,
		resolver: resolver,
		registry: registry,
		retry:    retry,
		emitter:  emitter,
		store:    store,
		clock:    clock,
		logger:   logger,
		slots:    make(chan struct{}, cfg.MaxInstances),
		agg:      NewAggregator(),
	}
}

// Submit runs a batch of tasks and blocks until every task has produced a
// terminal result. It returns exactly one Result per task regardless of
// individual failures; only a task that cannot be validated is rejected up
// front, failing the whole submission.
func (p *Pool) Submit(ctx context.Context, tasks []scraper.Task) ([]scraper.Result, error) {
	if len(tasks) == 0 {
		return []scraper.Result{}, nil
	}

	stamped, err := p.stampTasks(tasks)
	if err != nil {
		return nil, err
	}

	batchID := newBatchID()
	started := p.clock.Now()
	p.emitter.Emit(progress.Event{
		BatchID: batchID,
		TS:      started,
		Stage:   progress.StageBatchStart,
		Note:    fmt.Sprintf("%d tasks", len(stamped)),
	})
	p.logger.Info("batch submitted",
		zap.String("batch_id", batchID),
		zap.Int("tasks", len(stamped)),
	)

	depth := p.cfg.QueueDepth
	if depth <= 0 {
		depth = len(stamped)
	}
	q := memory.NewQueue(depth)

	resultCh := make(chan scraper.Result, len(stamped))
	collected := make([]scraper.Result, 0, len(stamped))
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range resultCh {
			collected = append(collected, res)
			p.agg.Append(res)
			p.storeResult(batchID, res)
		}
	}()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	workers := min(p.cfg.MaxInstances, len(stamped))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		name := fmt.Sprintf("worker-%d", i+1)
		go func() {
			defer wg.Done()
			p.runWorker(workerCtx, name, batchID, q, resultCh)
		}()
	}

	drainErr := p.feedAndDrain(ctx, q, stamped)

	// Closing the queue stops idle workers; busy workers finish their
	// current task first.
	q.Close()
	wg.Wait()
	close(resultCh)
	<-collectorDone

	p.emitter.Emit(progress.Event{
		BatchID: batchID,
		TS:      p.clock.Now(),
		Stage:   progress.StageBatchDone,
		Dur:     p.clock.Now().Sub(started),
	})
	p.logger.Info("batch finished",
		zap.String("batch_id", batchID),
		zap.Int("results", len(collected)),
	)

	if drainErr != nil {
		return collected, drainErr
	}
	return collected, nil
}

// HealthSnapshot reports live pool state for the health endpoint.
func (p *Pool) HealthSnapshot() scraper.HealthSnapshot {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	completed, failed, total := p.agg.Counts()
	return scraper.HealthSnapshot{
		ActiveWorkers: active,
		MaxInstances:  p.cfg.MaxInstances,
		Completed:     completed,
		Failed:        failed,
		TotalResults:  total,
	}
}

// Results returns a copy of every result collected so far.
func (p *Pool) Results() []scraper.Result {
	return p.agg.Results()
}

// stampTasks validates the batch and assigns IDs, submission times and retry
// defaults. Only a nil retry budget gets the default; an explicit zero stays
// zero. Tasks are copied; the caller's slice is never mutated.
func (p *Pool) stampTasks(tasks []scraper.Task) ([]scraper.Task, error) {
	now := p.clock.Now()
	stamped := make([]scraper.Task, len(tasks))
	for i, task := range tasks {
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		if task.ID == "" {
			task.ID = scraper.Fingerprint(task.URL, now)
		}
		if task.MaxRetries == nil {
			budget := p.cfg.DefaultMaxRetries
			task.MaxRetries = &budget
		}
		task.SubmittedAt = now
		stamped[i] = task
	}
	return stamped, nil
}

func (p *Pool) feedAndDrain(ctx context.Context, q *memory.Queue, tasks []scraper.Task) error {
	for _, task := range tasks {
		if err := q.Enqueue(ctx, task); err != nil {
			return fmt.Errorf("enqueue task %s: %w", task.ID, err)
		}
	}
	if err := q.Drain(ctx); err != nil {
		return err
	}
	return nil
}

// runWorker loops dequeue -> process -> ack until the queue closes or the
// pool shuts down. A worker observing shutdown finishes its current task; it
// never abandons a task mid-flight.
func (p *Pool) runWorker(
	ctx context.Context,
	name string,
	batchID string,
	q *memory.Queue,
	results chan<- scraper.Result,
) {
	for {
		task, err := q.Dequeue(ctx)
		if err != nil {
			return
		}

		p.slots <- struct{}{}
		p.markBusy(batchID, name)

		// The task context is detached from pool shutdown so an in-flight
		// task runs to completion, including its retry budget.
		res := p.processTask(context.WithoutCancel(ctx), batchID, name, task)

		results <- res
		p.markIdle(batchID, name)
		<-p.slots
		q.Ack()
	}
}

// processTask resolves the task's route and executes fetch+extract under the
// retry policy, returning the terminal Result. Failures never propagate as
// errors past this point.
func (p *Pool) processTask(ctx context.Context, batchID, worker string, task scraper.Task) scraper.Result {
	start := p.clock.Now()
	p.emitter.Emit(progress.Event{
		BatchID: batchID,
		TS:      start,
		Stage:   progress.StageTaskStart,
		TaskID:  task.ID,
		URL:     task.URL,
		Worker:  worker,
	})
	p.logger.Debug("task started",
		zap.String("worker", worker),
		zap.String("task_id", task.ID),
		zap.String("url", task.URL),
	)

	data, err := p.execute(ctx, task)
	completed := p.clock.Now()
	elapsed := completed.Sub(start)

	if err != nil {
		p.emitter.Emit(progress.Event{
			BatchID: batchID,
			TS:      completed,
			Stage:   progress.StageTaskFail,
			TaskID:  task.ID,
			URL:     task.URL,
			Worker:  worker,
			Dur:     elapsed,
			Note:    err.Error(),
		})
		p.logger.Warn("task failed",
			zap.String("worker", worker),
			zap.String("task_id", task.ID),
			zap.String("url", task.URL),
			zap.Error(err),
		)
		return scraper.Result{
			TaskID:        task.ID,
			URL:           task.URL,
			Scenario:      task.Scenario,
			Data:          map[string]any{},
			Status:        scraper.StatusFailed,
			Error:         err.Error(),
			ExecutionTime: elapsed.Seconds(),
			CompletedAt:   completed,
		}
	}

	p.emitter.Emit(progress.Event{
		BatchID: batchID,
		TS:      completed,
		Stage:   progress.StageTaskDone,
		TaskID:  task.ID,
		URL:     task.URL,
		Worker:  worker,
		Dur:     elapsed,
	})
	p.logger.Debug("task completed",
		zap.String("worker", worker),
		zap.String("task_id", task.ID),
		zap.Duration("dur", elapsed),
	)
	return scraper.Result{
		TaskID:        task.ID,
		URL:           task.URL,
		Scenario:      task.Scenario,
		Data:          data,
		Status:        scraper.StatusSuccess,
		ExecutionTime: elapsed.Seconds(),
		CompletedAt:   completed,
	}
}

// execute runs one fetch+extract pipeline under the retry policy. Transient
// fetch failures are retried up to the task's budget with capped exponential
// backoff; everything else fails on the first attempt. The last error is
// returned unmodified.
func (p *Pool) execute(ctx context.Context, task scraper.Task) (map[string]any, error) {
	adapter, err := p.resolver.Resolve(task.Engine)
	if err != nil {
		return nil, err
	}
	strategy, err := p.registry.Resolve(task.Scenario)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		data, err := p.attempt(ctx, adapter, strategy, task)
		if err == nil {
			return data, nil
		}
		if !p.retry.ShouldRetry(err, attempt, *task.MaxRetries) {
			return nil, err
		}
		delay := p.retry.Backoff(attempt)
		p.logger.Debug("retrying task",
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, err
		}
	}
}

func (p *Pool) attempt(
	ctx context.Context,
	adapter scraper.EngineAdapter,
	strategy scraper.Strategy,
	task scraper.Task,
) (map[string]any, error) {
	doc, err := adapter.Fetch(ctx, task)
	if err != nil {
		return nil, err
	}
	data, err := strategy.Extract(doc, task)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", task.URL, err)
	}
	return data, nil
}

func (p *Pool) markBusy(batchID, worker string) {
	p.mu.Lock()
	p.active++
	count := p.active
	p.mu.Unlock()
	p.emitWorkerCount(batchID, worker, count)
}

func (p *Pool) markIdle(batchID, worker string) {
	p.mu.Lock()
	p.active--
	count := p.active
	p.mu.Unlock()
	p.emitWorkerCount(batchID, worker, count)
}

func (p *Pool) emitWorkerCount(batchID, worker string, count int) {
	p.emitter.Emit(progress.Event{
		BatchID: batchID,
		TS:      p.clock.Now(),
		Stage:   progress.StageWorkerCount,
		Worker:  worker,
		Workers: count,
	})
}

func (p *Pool) storeResult(batchID string, res scraper.Result) {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.StoreResult(ctx, batchID, res); err != nil {
		p.logger.Warn("result store failed",
			zap.String("batch_id", batchID),
			zap.String("task_id", res.TaskID),
			zap.Error(err),
		)
	}
}

func newBatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

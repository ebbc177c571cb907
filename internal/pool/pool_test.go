package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webharvest/webharvest/internal/clock/system"
	"github.com/webharvest/webharvest/internal/progress"
	"github.com/webharvest/webharvest/internal/scraper"
	"github.com/webharvest/webharvest/internal/storage/memory"
)

const fakePage = `<html><head><title>Fake</title></head><body><p>content</p></body></html>`

// fakeAdapter serves canned documents and scripted failures, tracking attempt
// counts and peak concurrency.
type fakeAdapter struct {
	mu          sync.Mutex
	attempts    map[string]int
	failures    map[string][]error
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		attempts: make(map[string]int),
		failures: make(map[string][]error),
	}
}

func (a *fakeAdapter) failWith(url string, errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[url] = errs
}

func (a *fakeAdapter) attemptCount(url string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts[url]
}

func (a *fakeAdapter) peakConcurrency() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxInFlight
}

func (a *fakeAdapter) Fetch(_ context.Context, task scraper.Task) (scraper.Document, error) {
	a.mu.Lock()
	a.attempts[task.URL]++
	a.inFlight++
	if a.inFlight > a.maxInFlight {
		a.maxInFlight = a.inFlight
	}
	var err error
	if pending := a.failures[task.URL]; len(pending) > 0 {
		err = pending[0]
		a.failures[task.URL] = pending[1:]
	}
	delay := a.delay
	a.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	a.mu.Lock()
	a.inFlight--
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return scraper.NewDocument([]byte(fakePage), task.URL)
}

// captureEmitter records every progress event for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *captureEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *captureEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Stage)
	}
	return out
}

func newTestPool(t *testing.T, cfg Config, adapter scraper.EngineAdapter, emitter progress.Emitter, store scraper.ResultStore) *Pool {
	t.Helper()
	return New(
		cfg,
		scraper.NewResolver(nil, nil, adapter),
		scraper.NewRegistry(zap.NewNop()),
		scraper.NewRetryPolicy(time.Millisecond, 4*time.Millisecond),
		emitter,
		store,
		system.New(),
		zap.NewNop(),
	)
}

func customTask(i int) scraper.Task {
	return scraper.Task{
		URL:      fmt.Sprintf("https://example.com/page-%d", i),
		Scenario: scraper.ScenarioCustom,
		Engine:   scraper.EngineHTTP,
	}
}

func retries(n int) *int {
	return &n
}

func TestPool_Submit_OneResultPerTask(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	emitter := &captureEmitter{}
	store := memory.NewResultStore()
	p := newTestPool(t, Config{MaxInstances: 3}, adapter, emitter, store)

	tasks := make([]scraper.Task, 10)
	for i := range tasks {
		tasks[i] = customTask(i)
	}

	results, err := p.Submit(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, len(tasks))

	seen := make(map[string]struct{})
	for _, res := range results {
		require.Equal(t, scraper.StatusSuccess, res.Status)
		require.Equal(t, "Fake", res.Data["title"])
		require.NotEmpty(t, res.TaskID)
		_, dup := seen[res.TaskID]
		require.False(t, dup, "duplicate result for task %s", res.TaskID)
		seen[res.TaskID] = struct{}{}
	}

	stages := emitter.stages()
	require.Equal(t, progress.StageBatchStart, stages[0])
	require.Equal(t, progress.StageBatchDone, stages[len(stages)-1])

	snap := p.HealthSnapshot()
	require.Equal(t, 0, snap.ActiveWorkers)
	require.Equal(t, len(tasks), snap.Completed)
	require.Equal(t, 0, snap.Failed)
	require.Equal(t, len(tasks), snap.TotalResults)
}

func TestPool_Submit_TransientFailureRetriesToSuccess(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	task := customTask(0)
	task.MaxRetries = retries(3)
	adapter.failWith(task.URL,
		scraper.NewTimeoutError(task.URL, errors.New("nav timeout")),
		scraper.NewHTTPStatusError(task.URL, 503),
	)
	p := newTestPool(t, Config{MaxInstances: 1}, adapter, nil, nil)

	results, err := p.Submit(context.Background(), []scraper.Task{task})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, scraper.StatusSuccess, results[0].Status)
	require.Equal(t, 3, adapter.attemptCount(task.URL))
}

func TestPool_Submit_RetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	task := customTask(0)
	task.MaxRetries = retries(2)
	adapter.failWith(task.URL,
		scraper.NewTimeoutError(task.URL, errors.New("t1")),
		scraper.NewTimeoutError(task.URL, errors.New("t2")),
		scraper.NewTimeoutError(task.URL, errors.New("t3")),
	)
	p := newTestPool(t, Config{MaxInstances: 1}, adapter, nil, nil)

	results, err := p.Submit(context.Background(), []scraper.Task{task})
	require.NoError(t, err, "task failure never fails the batch")
	require.Len(t, results, 1)
	require.Equal(t, scraper.StatusFailed, results[0].Status)
	require.Contains(t, results[0].Error, "t3", "last error is preserved verbatim")
	require.NotNil(t, results[0].Data)
	require.Empty(t, results[0].Data)
	require.Equal(t, 3, adapter.attemptCount(task.URL), "first attempt plus two retries")
}

func TestPool_Submit_PermanentFailureSkipsRetry(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	task := customTask(0)
	task.MaxRetries = retries(3)
	adapter.failWith(task.URL, scraper.NewHTTPStatusError(task.URL, 404))
	p := newTestPool(t, Config{MaxInstances: 1}, adapter, nil, nil)

	results, err := p.Submit(context.Background(), []scraper.Task{task})
	require.NoError(t, err)
	require.Equal(t, scraper.StatusFailed, results[0].Status)
	require.Contains(t, results[0].Error, "http status 404")
	require.Equal(t, 1, adapter.attemptCount(task.URL))
}

func TestPool_Submit_ExplicitZeroRetriesDisablesRetry(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	task := customTask(0)
	task.MaxRetries = retries(0)
	adapter.failWith(task.URL,
		scraper.NewTimeoutError(task.URL, errors.New("t1")),
		scraper.NewTimeoutError(task.URL, errors.New("t2")),
	)
	p := newTestPool(t, Config{MaxInstances: 1, DefaultMaxRetries: 3}, adapter, nil, nil)

	results, err := p.Submit(context.Background(), []scraper.Task{task})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, scraper.StatusFailed, results[0].Status)
	require.Contains(t, results[0].Error, "t1")
	require.Equal(t, 1, adapter.attemptCount(task.URL), "zero budget means a single attempt even for transient failures")
}

func TestPool_Submit_UnroutableEngineFailsTask(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	task := customTask(0)
	task.Engine = scraper.EngineBrowser
	p := newTestPool(t, Config{MaxInstances: 1}, adapter, nil, nil)

	results, err := p.Submit(context.Background(), []scraper.Task{task})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, scraper.StatusFailed, results[0].Status)
	require.Contains(t, results[0].Error, "unsupported engine/scenario pair")
	require.Equal(t, 0, adapter.attemptCount(task.URL), "no fetch for an unroutable task")
}

func TestPool_Submit_InvalidTaskRejectsBatch(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	p := newTestPool(t, Config{MaxInstances: 1}, adapter, nil, nil)

	bad := customTask(0)
	bad.Scenario = "weather"
	results, err := p.Submit(context.Background(), []scraper.Task{customTask(1), bad})
	require.Error(t, err)
	require.Nil(t, results)
	require.Equal(t, 0, adapter.attemptCount(customTask(1).URL), "nothing runs when validation fails")
}

func TestPool_Submit_EmptyBatch(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, Config{MaxInstances: 1}, newFakeAdapter(), nil, nil)
	results, err := p.Submit(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, results)
	require.Empty(t, results)
}

func TestPool_Submit_ConcurrencyBounded(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.delay = 10 * time.Millisecond
	p := newTestPool(t, Config{MaxInstances: 2}, adapter, nil, nil)

	tasks := make([]scraper.Task, 12)
	for i := range tasks {
		tasks[i] = customTask(i)
	}
	results, err := p.Submit(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, len(tasks))
	require.LessOrEqual(t, adapter.peakConcurrency(), 2)
}

func TestPool_Submit_PersistsResults(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	emitter := &captureEmitter{}
	store := memory.NewResultStore()
	p := newTestPool(t, Config{MaxInstances: 2}, adapter, emitter, store)

	tasks := []scraper.Task{customTask(0), customTask(1)}
	results, err := p.Submit(context.Background(), tasks)
	require.NoError(t, err)

	emitter.mu.Lock()
	batchID := emitter.events[0].BatchID
	emitter.mu.Unlock()
	require.NotEmpty(t, batchID)
	require.Len(t, store.BatchResults(batchID), len(results))
}

func TestPool_Submit_StampsTaskDefaults(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	task := customTask(0)
	adapter.failWith(task.URL,
		scraper.NewTimeoutError(task.URL, errors.New("t1")),
		scraper.NewTimeoutError(task.URL, errors.New("t2")),
		scraper.NewTimeoutError(task.URL, errors.New("t3")),
	)
	p := newTestPool(t, Config{MaxInstances: 1, DefaultMaxRetries: 3}, adapter, nil, nil)

	results, err := p.Submit(context.Background(), []scraper.Task{task})
	require.NoError(t, err)
	require.Equal(t, scraper.StatusSuccess, results[0].Status)
	require.Equal(t, 4, adapter.attemptCount(task.URL), "default budget applies when the task sets none")
	require.NotEmpty(t, results[0].TaskID)
}

func TestAggregator_Counts(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Append(scraper.Result{TaskID: "a", Status: scraper.StatusSuccess})
	agg.Append(scraper.Result{TaskID: "b", Status: scraper.StatusFailed})
	agg.Append(scraper.Result{TaskID: "c", Status: scraper.StatusSuccess})

	completed, failed, total := agg.Counts()
	require.Equal(t, 2, completed)
	require.Equal(t, 1, failed)
	require.Equal(t, 3, total)

	results := agg.Results()
	require.Len(t, results, 3)
	results[0].TaskID = "mutated"
	require.Equal(t, "a", agg.Results()[0].TaskID, "Results returns a copy")
}

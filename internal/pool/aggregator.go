package pool

import (
	"sync"

	"github.com/webharvest/webharvest/internal/scraper"
)

// Aggregator collects terminal results across batch runs. Appends come from
// a single collector goroutine per batch; reads may happen concurrently from
// the health endpoint and exporters.
type Aggregator struct {
	mu        sync.Mutex
	results   []scraper.Result
	completed int
	failed    int
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Append records one terminal result. Results are append-only; nothing is
// ever mutated or removed.
func (a *Aggregator) Append(res scraper.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, res)
	if res.Succeeded() {
		a.completed++
	} else {
		a.failed++
	}
}

// Counts returns the completed/failed tallies and the total result count.
func (a *Aggregator) Counts() (completed, failed, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed, a.failed, len(a.results)
}

// Results returns a copy of the collected results.
func (a *Aggregator) Results() []scraper.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]scraper.Result, len(a.results))
	copy(out, a.results)
	return out
}

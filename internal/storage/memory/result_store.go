// Package memory provides in-process storage for local development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/webharvest/webharvest/internal/scraper"
)

// ResultStore implements scraper.ResultStore with an in-memory map keyed by
// batch ID.
type ResultStore struct {
	mu      sync.Mutex
	batches map[string][]scraper.Result
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{batches: make(map[string][]scraper.Result)}
}

// StoreResult appends the result under its batch.
func (s *ResultStore) StoreResult(_ context.Context, batchID string, res scraper.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batchID] = append(s.batches[batchID], res)
	return nil
}

// BatchResults returns a copy of the results stored for a batch.
func (s *ResultStore) BatchResults(batchID string) []scraper.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scraper.Result, len(s.batches[batchID]))
	copy(out, s.batches[batchID])
	return out
}

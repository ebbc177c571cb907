package scraper

import "fmt"

// Resolver maps an Engine tag to its adapter. Built once at startup and
// read-only afterwards.
type Resolver struct {
	adapters map[Engine]EngineAdapter
}

// NewResolver builds a resolver from the available adapters. A nil adapter
// leaves its engine unroutable, which surfaces as a submission-time error.
func NewResolver(browser, legacy, plain EngineAdapter) *Resolver {
	adapters := make(map[Engine]EngineAdapter, 3)
	if browser != nil {
		adapters[EngineBrowser] = browser
	}
	if legacy != nil {
		adapters[EngineLegacy] = legacy
	}
	if plain != nil {
		adapters[EngineHTTP] = plain
	}
	return &Resolver{adapters: adapters}
}

// Resolve returns the adapter for the engine.
func (r *Resolver) Resolve(e Engine) (EngineAdapter, error) {
	adapter, ok := r.adapters[e]
	if !ok {
		return nil, fmt.Errorf("resolve engine %q: %w", e, ErrUnsupportedRoute)
	}
	return adapter, nil
}

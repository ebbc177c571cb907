package scraper

import (
	"context"
	"time"
)

// EngineAdapter fetches a task's URL and returns an engine-neutral document
// handle. Implementations own their transport (headless browser, plain HTTP)
// and must translate failures into FetchError values so the retry policy can
// classify them.
type EngineAdapter interface {
	Fetch(ctx context.Context, task Task) (Document, error)
}

// Document is the engine-neutral handle over a rendered page.
type Document interface {
	// Title returns the page title, or "" when absent.
	Title() string
	// Text returns the page's plain-text content.
	Text() string
	// Select returns every element matching the CSS selector.
	Select(selector string) []Element
	// ResolveURL resolves a possibly-relative reference against the page URL.
	ResolveURL(ref string) string
}

// Element is one node matched by a Document selector query.
type Element interface {
	// Text returns the trimmed text content of the element.
	Text() string
	// Attribute returns the named attribute value, or "" when absent.
	Attribute(name string) string
	// Find queries within the element's subtree and returns the first match.
	Find(selector string) (Element, bool)
}

// Strategy turns a fetched document into a field-to-value mapping for one
// scenario. Item-level extraction failures are absorbed inside the strategy;
// an error return fails the whole task.
type Strategy interface {
	Extract(doc Document, task Task) (map[string]any, error)
}

// RetryPolicy decides whether a failed attempt is retried and how long the
// calling worker waits before the next attempt.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int, budget int) bool
	Backoff(attempt int) time.Duration
}

// ResultStore persists terminal results for later retrieval. Store failures
// are logged by the caller and never fail the task.
type ResultStore interface {
	StoreResult(ctx context.Context, batchID string, result Result) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

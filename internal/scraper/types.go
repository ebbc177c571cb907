package scraper

import (
	"fmt"
	"time"
)

// Scenario identifies the semantic category of content being extracted.
// It drives which extraction strategy and default selector table apply.
type Scenario string

// Supported scenario values.
const (
	ScenarioEcommerce   Scenario = "ecommerce"
	ScenarioNews        Scenario = "news"
	ScenarioSocialMedia Scenario = "social_media"
	ScenarioFinancial   Scenario = "financial"
	ScenarioJobListings Scenario = "job_listings"
	ScenarioRealEstate  Scenario = "real_estate"
	ScenarioCustom      Scenario = "custom"
)

// Scenarios lists every supported scenario in declaration order.
func Scenarios() []Scenario {
	return []Scenario{
		ScenarioEcommerce,
		ScenarioNews,
		ScenarioSocialMedia,
		ScenarioFinancial,
		ScenarioJobListings,
		ScenarioRealEstate,
		ScenarioCustom,
	}
}

// Valid reports whether the scenario is one of the supported values.
func (s Scenario) Valid() bool {
	switch s {
	case ScenarioEcommerce, ScenarioNews, ScenarioSocialMedia, ScenarioFinancial,
		ScenarioJobListings, ScenarioRealEstate, ScenarioCustom:
		return true
	}
	return false
}

// ParseScenario converts a wire value into a Scenario.
func ParseScenario(raw string) (Scenario, error) {
	s := Scenario(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown scenario %q", raw)
	}
	return s, nil
}

// Engine identifies the transport mechanism used to fetch a page.
type Engine string

// Supported engine values.
const (
	// EngineBrowser drives a script-capable headless browser.
	EngineBrowser Engine = "browser"
	// EngineLegacy drives the compatibility browser path without
	// per-selector waits.
	EngineLegacy Engine = "legacy"
	// EngineHTTP performs a plain HTTP request with no DOM wait semantics.
	EngineHTTP Engine = "http"
)

// Engines lists every supported engine in declaration order.
func Engines() []Engine {
	return []Engine{EngineBrowser, EngineLegacy, EngineHTTP}
}

// Valid reports whether the engine is one of the supported values.
func (e Engine) Valid() bool {
	switch e {
	case EngineBrowser, EngineLegacy, EngineHTTP:
		return true
	}
	return false
}

// ParseEngine converts a wire value into an Engine.
func ParseEngine(raw string) (Engine, error) {
	e := Engine(raw)
	if !e.Valid() {
		return "", fmt.Errorf("unknown engine %q", raw)
	}
	return e, nil
}

// Task is one unit of scrape work. Tasks are immutable once enqueued; the
// pool stamps ID and SubmittedAt during submission and never touches the
// task again.
type Task struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Scenario    Scenario          `json:"scenario"`
	Engine      Engine            `json:"engine"`
	Selectors   map[string]string `json:"selectors,omitempty"`
	WaitTimeout time.Duration     `json:"wait_timeout,omitempty"`
	// MaxRetries is the number of additional attempts after the first.
	// Nil means the pool default applies; an explicit zero disables retries.
	MaxRetries *int `json:"max_retries,omitempty"`
	// UseProxy and RequiresScript travel with the task for callers that set
	// them but are not consumed: proxy rotation is out of scope, and the
	// transport is chosen explicitly through Engine rather than inferred.
	UseProxy       bool              `json:"use_proxy,omitempty"`
	ExtractImages  bool              `json:"extract_images,omitempty"`
	ExtractLinks   bool              `json:"extract_links,omitempty"`
	ScrollToBottom bool              `json:"scroll_to_bottom,omitempty"`
	RequiresScript bool              `json:"requires_script,omitempty"`
	CustomHeaders  map[string]string `json:"custom_headers,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	SubmittedAt    time.Time         `json:"submitted_at,omitempty"`
}

// Validate rejects tasks that cannot be routed to an engine and strategy.
func (t Task) Validate() error {
	if t.URL == "" {
		return fmt.Errorf("task url is required")
	}
	if !t.Scenario.Valid() {
		return fmt.Errorf("unknown scenario %q", t.Scenario)
	}
	if !t.Engine.Valid() {
		return fmt.Errorf("unknown engine %q", t.Engine)
	}
	if t.MaxRetries != nil && *t.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	return nil
}

// Status is the terminal state of a processed task.
type Status string

// Terminal task statuses.
const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is produced exactly once per submitted task, by the worker that
// finished processing it. Results are never mutated after creation.
type Result struct {
	TaskID        string         `json:"task_id"`
	URL           string         `json:"url"`
	Scenario      Scenario       `json:"scenario"`
	Data          map[string]any `json:"data"`
	Status        Status         `json:"status"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime float64        `json:"execution_time"`
	CompletedAt   time.Time      `json:"completed_at"`
}

// Succeeded reports whether the task completed without a terminal error.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// HealthSnapshot is the point-in-time view returned by the pool health check.
type HealthSnapshot struct {
	ActiveWorkers int `json:"active_workers"`
	MaxInstances  int `json:"max_instances"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	TotalResults  int `json:"total_results"`
}

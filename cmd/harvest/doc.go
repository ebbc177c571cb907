// Package main hosts the harvest service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and batch endpoints. Submitted tasks are validated,
//     normalized into scraper.Task values, and run to completion before the response is written.
//   - Pool & queue: tasks flow through a bounded in-memory queue and are fanned out to a fixed worker pool sized by
//     pool.max_instances. Shutdown lets in-flight tasks finish; idle workers stop as soon as the queue closes.
//   - Fetch pipeline: each task routes to one of three engine adapters: a script-capable Chromedp browser, a
//     compatibility browser path without per-selector waits, or a plain Colly HTTP fetch. The fetched document is
//     handed to a scenario-specific extraction strategy that produces the structured data mapping.
//   - Persistence & fanout: terminal results are aggregated in memory and optionally persisted to Postgres. Progress
//     events are buffered by the hub and fanned out to logging and Prometheus sinks without blocking workers.
//   - Configuration & plumbing: Viper populates config from file/env (HARVEST_* variables); zap provides structured
//     logging; Prometheus collectors are exported via /metrics.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool; browser fetches have their own semaphore inside the
//     Chromedp engine, plus optional per-domain QPS limits.
//   - Retry behavior: transient fetch failures (timeouts, connection errors, retryable HTTP statuses) retry with
//     capped exponential backoff up to the task's budget; extraction and configuration errors fail immediately.
//   - Observability: zap logs carry batch and task IDs at key transitions; Prometheus counters/histograms track task
//     outcomes, batch runtimes and the live worker gauge.
//
// Quick checklist:
//   - Configure env vars: HARVEST_SERVER_PORT, HARVEST_POOL_MAX_INSTANCES, HARVEST_RETRY_MAX_RETRIES,
//     HARVEST_BROWSER_ENABLED, HARVEST_HTTP_TIMEOUT_SECONDS, and HARVEST_DB_DSN when persistence is required.
//   - Run the API: go run ./cmd/harvest serve --config config.yaml (or rely solely on env overrides).
//   - Run one batch: go run ./cmd/harvest run --tasks tasks.json --out results.json --csv results.csv.
package main

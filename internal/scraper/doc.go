// Package scraper contains the harvest domain model: tasks and results, the
// engine adapters that fetch pages, the scenario extraction strategies, and
// the retry policy applied around one fetch+extract attempt.
package scraper

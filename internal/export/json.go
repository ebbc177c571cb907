// Package export serializes batch results to JSON and CSV files.
package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/webharvest/webharvest/internal/scraper"
)

// JSON writes the results as one JSON array, one object per result, with
// RFC 3339 timestamps. Re-parsing the file yields the same field values.
func JSON(results []scraper.Result, path string) error {
	if results == nil {
		results = []scraper.Result{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

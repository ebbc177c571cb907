package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/webharvest/webharvest/internal/scraper"
)

// baseColumns are always present, in this order, before the flattened data
// fields.
var baseColumns = []string{
	"task_id", "url", "scenario", "status", "error", "execution_time", "completed_at",
}

// CSV writes one row per result. Nested mapping and list values inside a
// result's data are serialized to their string representation; data fields
// absent from a particular result are left empty.
func CSV(results []scraper.Result, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	columns := append(append([]string(nil), baseColumns...), dataColumns(results)...)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, res := range results {
		row := make([]string, 0, len(columns))
		row = append(row,
			res.TaskID,
			res.URL,
			string(res.Scenario),
			string(res.Status),
			res.Error,
			strconv.FormatFloat(res.ExecutionTime, 'f', -1, 64),
			res.CompletedAt.Format(time.RFC3339),
		)
		for _, col := range columns[len(baseColumns):] {
			value, ok := res.Data[col]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprintf("%v", value))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// dataColumns returns the sorted union of data field names across results.
func dataColumns(results []scraper.Result) []string {
	seen := make(map[string]struct{})
	for _, res := range results {
		for key := range res.Data {
			seen[key] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for key := range seen {
		cols = append(cols, key)
	}
	sort.Strings(cols)
	return cols
}

package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webharvest/webharvest/internal/scraper"
)

func sampleResults() []scraper.Result {
	completed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	return []scraper.Result{
		{
			TaskID:   "aaa111",
			URL:      "https://shop.example.com",
			Scenario: scraper.ScenarioEcommerce,
			Data: map[string]any{
				"total_items": 2,
				"products":    []map[string]any{{"title": "Widget", "price": "$9.99"}},
			},
			Status:        scraper.StatusSuccess,
			ExecutionTime: 1.25,
			CompletedAt:   completed,
		},
		{
			TaskID:        "bbb222",
			URL:           "https://news.example.com",
			Scenario:      scraper.ScenarioNews,
			Data:          map[string]any{},
			Status:        scraper.StatusFailed,
			Error:         "fetch https://news.example.com: http status 404",
			ExecutionTime: 0.4,
			CompletedAt:   completed.Add(time.Second),
		},
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.json")
	results := sampleResults()
	require.NoError(t, JSON(results, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []scraper.Result
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, results[0].TaskID, decoded[0].TaskID)
	require.Equal(t, results[0].CompletedAt, decoded[0].CompletedAt)
	require.Equal(t, results[1].Error, decoded[1].Error)
	require.EqualValues(t, 2, decoded[0].Data["total_items"].(float64))
}

func TestJSON_NilResultsWriteEmptyArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, JSON(nil, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(raw))
}

func TestCSV_ColumnsAndRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, CSV(sampleResults(), path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	require.Equal(t, []string{
		"task_id", "url", "scenario", "status", "error", "execution_time", "completed_at",
		"products", "total_items",
	}, header, "data columns are the sorted union across results")

	first := rows[1]
	require.Equal(t, "aaa111", first[0])
	require.Equal(t, "ecommerce", first[2])
	require.Equal(t, "success", first[3])
	require.Equal(t, "1.25", first[5])
	require.Equal(t, "2026-08-25T12:00:00Z", first[6])
	require.Equal(t, "2", first[8])

	second := rows[2]
	require.Equal(t, "failed", second[3])
	require.Contains(t, second[4], "http status 404")
	require.Equal(t, "", second[7], "absent data fields are empty cells")
	require.Equal(t, "", second[8])
}

func TestCSV_EmptyResults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, CSV(nil, path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}

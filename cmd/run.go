package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/webharvest/webharvest/internal/app"
	"github.com/webharvest/webharvest/internal/export"
	"github.com/webharvest/webharvest/internal/scraper"
)

// newRunCmd creates the 'run' subcommand, which executes a single batch from
// a task file and optionally exports the results.
func newRunCmd() *cobra.Command {
	var (
		tasksPath string
		jsonOut   string
		csvOut    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one batch of scrape tasks from a file",
		Long: `Reads a JSON array of tasks from --tasks, runs the batch to completion
and prints a summary. Results can be exported with --out (JSON) and
--csv.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatchCommand(cmd, tasksPath, jsonOut, csvOut)
		},
	}
	cmd.Flags().StringVar(&tasksPath, "tasks", "", "path to a JSON array of tasks (required)")
	cmd.Flags().StringVar(&jsonOut, "out", "", "write results to this path as JSON")
	cmd.Flags().StringVar(&csvOut, "csv", "", "write results to this path as CSV")
	_ = cmd.MarkFlagRequired("tasks")
	return cmd
}

func runBatchCommand(cmd *cobra.Command, tasksPath, jsonOut, csvOut string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tasks, err := readTasks(tasksPath)
	if err != nil {
		return err
	}

	application, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer application.Close(cmd.Context())
	logger := application.Logger()

	results, err := application.Pool().Submit(cmd.Context(), tasks)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}

	completed := 0
	for _, res := range results {
		if res.Succeeded() {
			completed++
		}
	}
	logger.Info("batch complete",
		zap.Int("total", len(results)),
		zap.Int("completed", completed),
		zap.Int("failed", len(results)-completed),
	)

	if jsonOut != "" {
		if err := export.JSON(results, jsonOut); err != nil {
			return fmt.Errorf("export json: %w", err)
		}
		logger.Info("results exported", zap.String("path", jsonOut))
	}
	if csvOut != "" {
		if err := export.CSV(results, csvOut); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		logger.Info("results exported", zap.String("path", csvOut))
	}
	return nil
}

func readTasks(path string) ([]scraper.Task, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}
	var tasks []scraper.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("parse tasks file: %w", err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("tasks file %s contains no tasks", path)
	}
	return tasks, nil
}

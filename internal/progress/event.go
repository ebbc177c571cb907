// Package progress defines the event structures emitted by the harvest
// workers and the hub that fans them out to sinks without blocking.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageBatchStart  Stage = "BATCH_START"
	StageBatchDone   Stage = "BATCH_DONE"
	StageTaskStart   Stage = "TASK_STARTED"
	StageTaskDone    Stage = "TASK_COMPLETED"
	StageTaskFail    Stage = "TASK_FAILED"
	StageWorkerCount Stage = "WORKER_COUNT"
)

// Event captures a single milestone of harvest progress.
type Event struct {
	// BatchID identifies the batch run the event belongs to.
	BatchID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// TaskID scopes task events to one unit of work.
	TaskID string
	// URL is the page URL; it should not contain credentials.
	URL string
	// Worker names the worker that produced the event.
	Worker string
	// Workers carries the active worker count for WORKER_COUNT events.
	Workers int
	// Dur captures execution latency for task and batch completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageBatchStart, StageBatchDone:
		if e.BatchID == "" {
			return errors.New("batch events require batch id")
		}
	case StageTaskStart, StageTaskDone, StageTaskFail:
		if e.URL == "" {
			return errors.New("task events require url")
		}
	case StageWorkerCount:
		if e.Workers < 0 {
			return errors.New("worker count must be >= 0")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

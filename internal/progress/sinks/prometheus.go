package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/webharvest/webharvest/internal/progress"
)

// PrometheusSink exports harvest progress metrics. It owns all collectors for
// task outcomes, batch runs and the live worker gauge.
type PrometheusSink struct {
	tasksStarted   prometheus.Counter
	tasksCompleted *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	batchesStarted prometheus.Counter
	batchRuntime   prometheus.Histogram
	activeWorkers  prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_tasks_started_total",
			Help: "Total scrape tasks picked up by a worker.",
		}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_tasks_completed_total",
			Help: "Total scrape tasks finished partitioned by result.",
		}, []string{"result"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_task_duration_seconds",
			Help:    "Wall time per finished task.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"result"}),
		batchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_batches_started_total",
			Help: "Total batch runs submitted.",
		}),
		batchRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvest_batch_runtime_seconds",
			Help:    "Wall time per completed batch.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_active_workers",
			Help: "Current number of busy workers.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.tasksStarted,
		s.tasksCompleted,
		s.taskDuration,
		s.batchesStarted,
		s.batchRuntime,
		s.activeWorkers,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageBatchStart:
		s.batchesStarted.Inc()
	case progress.StageBatchDone:
		if evt.Dur > 0 {
			s.batchRuntime.Observe(evt.Dur.Seconds())
		}
	case progress.StageTaskStart:
		s.tasksStarted.Inc()
	case progress.StageTaskDone:
		s.tasksCompleted.WithLabelValues("success").Inc()
		s.observeDuration(evt, "success")
	case progress.StageTaskFail:
		s.tasksCompleted.WithLabelValues("failed").Inc()
		s.observeDuration(evt, "failed")
	case progress.StageWorkerCount:
		s.activeWorkers.Set(float64(evt.Workers))
	}
}

func (s *PrometheusSink) observeDuration(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.taskDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

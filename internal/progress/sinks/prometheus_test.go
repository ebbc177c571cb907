package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/webharvest/webharvest/internal/progress"
)

func TestPrometheusSink_Consume(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(registry)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{BatchID: "b1", TS: now, Stage: progress.StageBatchStart},
		{TS: now, Stage: progress.StageTaskStart, URL: "https://example.com/1"},
		{TS: now, Stage: progress.StageTaskStart, URL: "https://example.com/2"},
		{TS: now, Stage: progress.StageWorkerCount, Workers: 2},
		{TS: now, Stage: progress.StageTaskDone, URL: "https://example.com/1", Dur: time.Second},
		{TS: now, Stage: progress.StageTaskFail, URL: "https://example.com/2", Dur: 2 * time.Second},
		{TS: now, Stage: progress.StageWorkerCount, Workers: 0},
		{BatchID: "b1", TS: now, Stage: progress.StageBatchDone, Dur: 3 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, float64(1), testutil.ToFloat64(sink.batchesStarted))
	require.Equal(t, float64(2), testutil.ToFloat64(sink.tasksStarted))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.tasksCompleted.WithLabelValues("success")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.tasksCompleted.WithLabelValues("failed")))
	require.Equal(t, float64(0), testutil.ToFloat64(sink.activeWorkers))

	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSink_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewPrometheusSink(registry)
	require.NoError(t, err)

	_, err = NewPrometheusSink(registry)
	require.Error(t, err, "registering the same collectors twice must fail")
}

package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/webharvest/webharvest/internal/progress"
)

func TestLogSink_Consume(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	batch := []progress.Event{
		{BatchID: "b1", TS: time.Now(), Stage: progress.StageBatchStart},
		{TS: time.Now(), Stage: progress.StageTaskDone, TaskID: "t1", URL: "https://example.com", Dur: time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	entries := observed.All()
	require.Len(t, entries, 2)
	require.Equal(t, "progress event", entries[0].Message)
	require.Equal(t, "b1", entries[0].ContextMap()["batch_id"])
	require.Equal(t, "t1", entries[1].ContextMap()["task_id"])

	require.NoError(t, sink.Close(context.Background()))
}

func TestLogSink_NilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{Stage: progress.StageBatchStart}}))
}

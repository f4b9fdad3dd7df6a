package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"impactlens/internal/domain/run"
)

func collect(ch <-chan run.ProgressEvent, n int, t *testing.T) []run.ProgressEvent {
	t.Helper()
	var events []run.ProgressEvent
	timeout := time.After(time.Second)
	for len(events) < n {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestEmitAssignsMonotonicSequences(t *testing.T) {
	b := NewBroadcaster(nil, zap.NewNop())
	b.Open("run-1")

	ch, cancel, err := b.Subscribe("run-1", 0)
	require.NoError(t, err)
	defer cancel()

	b.Emit("run-1", run.StageCreated, "run created", nil)
	b.Emit("run-1", run.StageFetchingSources, "fetching sources", nil)
	b.Emit("run-1", run.StageAnalyzingSentiment, "analyzing", nil)

	events := collect(ch, 3, t)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Sequence)
	}
	assert.Equal(t, run.StageAnalyzingSentiment, events[2].Stage)
}

func TestSubscribeReplaysFromSequence(t *testing.T) {
	b := NewBroadcaster(nil, zap.NewNop())
	b.Open("run-1")

	b.Emit("run-1", run.StageCreated, "run created", nil)
	b.Emit("run-1", run.StageFetchingSources, "fetching sources", nil)
	b.Emit("run-1", run.StageScoring, "scoring", nil)

	// A reconnecting subscriber that saw up to sequence 1 resumes
	// without gaps.
	ch, cancel, err := b.Subscribe("run-1", 1)
	require.NoError(t, err)
	defer cancel()

	events := collect(ch, 2, t)
	assert.Equal(t, uint64(2), events[0].Sequence)
	assert.Equal(t, uint64(3), events[1].Sequence)

	b.Emit("run-1", run.StageComplete, "done", nil)
	events = collect(ch, 1, t)
	assert.Equal(t, uint64(4), events[0].Sequence)
}

func TestTerminalEventClosesStream(t *testing.T) {
	b := NewBroadcaster(nil, zap.NewNop())
	b.Open("run-1")

	ch, cancel, err := b.Subscribe("run-1", 0)
	require.NoError(t, err)
	defer cancel()

	b.Emit("run-1", run.StageCreated, "run created", nil)
	b.Emit("run-1", run.StageCancelled, "cancelled", nil)

	events := collect(ch, 2, t)
	assert.Equal(t, run.StageCancelled, events[1].Stage)

	// Channel closes after the terminal event.
	_, open := <-ch
	assert.False(t, open)

	// Events after terminal are ignored.
	b.Emit("run-1", run.StageComplete, "ignored", nil)

	late, _, err := b.Subscribe("run-1", 0)
	require.NoError(t, err)
	assert.Len(t, collect(late, 2, t), 2)
}

func TestSubscribeUnknownRun(t *testing.T) {
	b := NewBroadcaster(nil, zap.NewNop())

	_, _, err := b.Subscribe("missing", 0)
	assert.Error(t, err)
}

func TestReleaseDropsStream(t *testing.T) {
	b := NewBroadcaster(nil, zap.NewNop())
	b.Open("run-1")
	b.Emit("run-1", run.StageCreated, "run created", nil)

	b.Release("run-1")

	_, _, err := b.Subscribe("run-1", 0)
	assert.Error(t, err)
}

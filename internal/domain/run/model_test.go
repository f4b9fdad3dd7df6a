package run

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagesOnlyMoveForward(t *testing.T) {
	assert.True(t, CanTransition(StageCreated, StageFetchingSources))
	assert.True(t, CanTransition(StageFetchingSources, StageAnalyzingSentiment)) // skipping Transcribing
	assert.True(t, CanTransition(StageSynthesizing, StageComplete))

	assert.False(t, CanTransition(StageScoring, StageFetchingSources))
	assert.False(t, CanTransition(StageScoring, StageScoring))
}

func TestTerminalStagesReachableFromAnywhere(t *testing.T) {
	for _, from := range []Stage{StageCreated, StageTranscribing, StageSynthesizing} {
		assert.True(t, CanTransition(from, StageError), "from %s", from)
		assert.True(t, CanTransition(from, StageCancelled), "from %s", from)
	}
}

func TestNoTransitionOutOfTerminal(t *testing.T) {
	for _, from := range []Stage{StageComplete, StageError, StageCancelled} {
		assert.False(t, CanTransition(from, StageError), "from %s", from)
		assert.False(t, CanTransition(from, StageFetchingSources), "from %s", from)
	}
}

func TestAdvanceToRecordsHistoryAndFinish(t *testing.T) {
	now := time.Now().UTC()
	r := &PipelineRun{ID: "r1", State: StageCreated, StartedAt: now}

	require.NoError(t, r.AdvanceTo(StageFetchingSources, now.Add(time.Second)))
	require.NoError(t, r.AdvanceTo(StageAnalyzingSentiment, now.Add(2*time.Second)))
	assert.Nil(t, r.FinishedAt)

	require.NoError(t, r.AdvanceTo(StageCancelled, now.Add(3*time.Second)))
	require.NotNil(t, r.FinishedAt)
	assert.Equal(t, now.Add(3*time.Second), *r.FinishedAt)
	assert.Len(t, r.StageHistory, 3)

	assert.Error(t, r.AdvanceTo(StageComplete, now.Add(4*time.Second)))
	assert.Equal(t, StageCancelled, r.State)
}

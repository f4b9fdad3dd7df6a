package run

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no run exists for an id.
var ErrNotFound = errors.New("run not found")

// Stage is one phase of a pipeline run. Non-terminal stages only ever
// move forward; Error and Cancelled are terminal and reachable from any
// non-terminal stage.
type Stage string

const (
	StageCreated            Stage = "created"
	StageFetchingSources    Stage = "fetching_sources"
	StageTranscribing       Stage = "transcribing"
	StageAnalyzingSentiment Stage = "analyzing_sentiment"
	StageScoring            Stage = "scoring"
	StageBuildingGraph      Stage = "building_graph"
	StageSynthesizing       Stage = "synthesizing"
	StageComplete           Stage = "complete"
	StageError              Stage = "error"
	StageCancelled          Stage = "cancelled"
)

// stageOrder gives the forward ordering of non-terminal stages.
// Transcribing is optional and skipped for runs without video items.
var stageOrder = map[Stage]int{
	StageCreated:            0,
	StageFetchingSources:    1,
	StageTranscribing:       2,
	StageAnalyzingSentiment: 3,
	StageScoring:            4,
	StageBuildingGraph:      5,
	StageSynthesizing:       6,
	StageComplete:           7,
}

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError || s == StageCancelled
}

// CanTransition reports whether a run may move from one stage to another.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageError || to == StageCancelled {
		return true
	}
	fromOrder, ok := stageOrder[from]
	if !ok {
		return false
	}
	toOrder, ok := stageOrder[to]
	if !ok {
		return false
	}
	return toOrder > fromOrder
}

// StageTransition records one entry in a run's stage history.
type StageTransition struct {
	Stage Stage     `json:"stage"`
	At    time.Time `json:"at"`
}

// Stats summarizes a completed run.
type Stats struct {
	ItemCount     int     `json:"item_count"`
	VideoCount    int     `json:"video_count"`
	ArticleCount  int     `json:"article_count"`
	ScoredCount   int     `json:"scored_count"`
	AvgImpact     float64 `json:"avg_impact"`
	DominantLabel string  `json:"dominant_label,omitempty"`
}

// PipelineRun is one end-to-end analysis of a topic.
type PipelineRun struct {
	ID              string
	TopicID         string
	Topic           string
	State           Stage
	StageHistory    []StageTransition
	StartedAt       time.Time
	FinishedAt      *time.Time
	CancelRequested bool
	Error           string
	Stats           Stats
}

// AdvanceTo moves the run to the given stage, enforcing monotonic
// forward progress and single terminal entry.
func (r *PipelineRun) AdvanceTo(stage Stage, at time.Time) error {
	if !CanTransition(r.State, stage) {
		return fmt.Errorf("illegal stage transition %s -> %s", r.State, stage)
	}
	r.State = stage
	r.StageHistory = append(r.StageHistory, StageTransition{Stage: stage, At: at})
	if stage.Terminal() {
		finished := at
		r.FinishedAt = &finished
	}
	return nil
}

// ProgressEvent is one ordered progress notification for a run.
// Sequence is monotonic and gap-free per run.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Sequence  uint64    `json:"sequence"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message"`
	Percent   *float64  `json:"percent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PipelineFatalError is the only condition that moves a run to Error:
// every source kind came back empty, or aggregates could not be persisted.
type PipelineFatalError struct {
	RunID  string
	Reason string
	Err    error
}

func (e *PipelineFatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("run %s failed: %s: %v", e.RunID, e.Reason, e.Err)
	}
	return fmt.Sprintf("run %s failed: %s", e.RunID, e.Reason)
}

func (e *PipelineFatalError) Unwrap() error {
	return e.Err
}

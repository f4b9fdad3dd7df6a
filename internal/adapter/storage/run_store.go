// internal/adapter/storage/run_store.go

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"impactlens/internal/domain/run"
)

// ErrRunNotFound is returned when no run exists for an id
var ErrRunNotFound = run.ErrNotFound

// RunStore implements storage for pipeline runs
type RunStore struct {
	db *pgxpool.Pool
}

// NewRunStore creates a new run store
func NewRunStore(db *pgxpool.Pool) *RunStore {
	return &RunStore{
		db: db,
	}
}

// SaveRun saves a pipeline run to storage
func (s *RunStore) SaveRun(ctx context.Context, r run.PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (
			id, topic_id, topic, state, stage_history,
			started_at, finished_at, cancel_requested, error, stats
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
		ON CONFLICT (id) DO UPDATE
		SET
			state = $4,
			stage_history = $5,
			finished_at = $7,
			cancel_requested = $8,
			error = $9,
			stats = $10
	`

	historyJSON, err := json.Marshal(r.StageHistory)
	if err != nil {
		return fmt.Errorf("error marshaling stage history: %w", err)
	}

	statsJSON, err := json.Marshal(r.Stats)
	if err != nil {
		return fmt.Errorf("error marshaling stats: %w", err)
	}

	_, err = s.db.Exec(
		ctx,
		query,
		r.ID,
		r.TopicID,
		r.Topic,
		string(r.State),
		historyJSON,
		r.StartedAt,
		r.FinishedAt,
		r.CancelRequested,
		r.Error,
		statsJSON,
	)

	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *RunStore) GetRun(ctx context.Context, id string) (*run.PipelineRun, error) {
	query := `
		SELECT
			id, topic_id, topic, state, stage_history,
			started_at, finished_at, cancel_requested, error, stats
		FROM pipeline_runs
		WHERE id = $1
	`

	var r run.PipelineRun
	var state string
	var historyJSON, statsJSON []byte

	err := s.db.QueryRow(ctx, query, id).Scan(
		&r.ID,
		&r.TopicID,
		&r.Topic,
		&state,
		&historyJSON,
		&r.StartedAt,
		&r.FinishedAt,
		&r.CancelRequested,
		&r.Error,
		&statsJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("error querying run: %w", err)
	}

	r.State = run.Stage(state)

	if err := json.Unmarshal(historyJSON, &r.StageHistory); err != nil {
		return nil, fmt.Errorf("error unmarshaling stage history: %w", err)
	}

	if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
		return nil, fmt.Errorf("error unmarshaling stats: %w", err)
	}

	return &r, nil
}

// ListRunsForTopic returns the most recent runs for a topic
func (s *RunStore) ListRunsForTopic(ctx context.Context, topicID string, limit int) ([]run.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT
			id, topic_id, topic, state, stage_history,
			started_at, finished_at, cancel_requested, error, stats
		FROM pipeline_runs
		WHERE topic_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, topicID, limit)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var runs []run.PipelineRun
	for rows.Next() {
		var r run.PipelineRun
		var state string
		var historyJSON, statsJSON []byte

		err := rows.Scan(
			&r.ID,
			&r.TopicID,
			&r.Topic,
			&state,
			&historyJSON,
			&r.StartedAt,
			&r.FinishedAt,
			&r.CancelRequested,
			&r.Error,
			&statsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning run: %w", err)
		}

		r.State = run.Stage(state)
		if err := json.Unmarshal(historyJSON, &r.StageHistory); err != nil {
			return nil, fmt.Errorf("error unmarshaling stage history: %w", err)
		}
		if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
			return nil, fmt.Errorf("error unmarshaling stats: %w", err)
		}

		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

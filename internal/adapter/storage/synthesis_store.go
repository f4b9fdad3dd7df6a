// internal/adapter/storage/synthesis_store.go

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"impactlens/internal/domain/analysis"
)

// SynthesisStore implements storage for narrative synthesis records
type SynthesisStore struct {
	db *pgxpool.Pool
}

// NewSynthesisStore creates a new synthesis store
func NewSynthesisStore(db *pgxpool.Pool) *SynthesisStore {
	return &SynthesisStore{
		db: db,
	}
}

// GetRecord retrieves the synthesis record for a topic, or nil when none
// has been generated yet
func (s *SynthesisStore) GetRecord(ctx context.Context, topicID string) (*analysis.SynthesisRecord, error) {
	query := `
		SELECT topic_id, narrative, generated_at, source_item_count
		FROM synthesis_records
		WHERE topic_id = $1
	`

	var r analysis.SynthesisRecord
	err := s.db.QueryRow(ctx, query, topicID).Scan(
		&r.TopicID,
		&r.Narrative,
		&r.GeneratedAt,
		&r.SourceItemCount,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying synthesis record: %w", err)
	}

	return &r, nil
}

// SaveRecord upserts the synthesis record for its topic
func (s *SynthesisStore) SaveRecord(ctx context.Context, r analysis.SynthesisRecord) error {
	query := `
		INSERT INTO synthesis_records (
			topic_id, narrative, generated_at, source_item_count
		) VALUES (
			$1, $2, $3, $4
		)
		ON CONFLICT (topic_id) DO UPDATE
		SET
			narrative = $2,
			generated_at = $3,
			source_item_count = $4
	`

	_, err := s.db.Exec(
		ctx,
		query,
		r.TopicID,
		r.Narrative,
		r.GeneratedAt,
		r.SourceItemCount,
	)

	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

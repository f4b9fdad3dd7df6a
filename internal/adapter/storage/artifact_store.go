// internal/adapter/storage/artifact_store.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"impactlens/internal/domain/analysis"
)

// ErrArtifactNotFound is returned when a topic has no stored artifact
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore implements storage for topic-level aggregates: the
// emotion profile and the visualization graph
type ArtifactStore struct {
	db *pgxpool.Pool
}

// NewArtifactStore creates a new artifact store
func NewArtifactStore(db *pgxpool.Pool) *ArtifactStore {
	return &ArtifactStore{
		db: db,
	}
}

// SaveProfile saves a topic emotion profile to storage
func (s *ArtifactStore) SaveProfile(ctx context.Context, p analysis.TopicEmotionProfile) error {
	query := `
		INSERT INTO emotion_profiles (
			topic_id, joy, sadness, anger, fear, surprise, disgust,
			item_count, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9
		)
		ON CONFLICT (topic_id) DO UPDATE
		SET
			joy = $2,
			sadness = $3,
			anger = $4,
			fear = $5,
			surprise = $6,
			disgust = $7,
			item_count = $8,
			updated_at = $9
	`

	_, err := s.db.Exec(
		ctx,
		query,
		p.TopicID,
		p.Emotions.Joy,
		p.Emotions.Sadness,
		p.Emotions.Anger,
		p.Emotions.Fear,
		p.Emotions.Surprise,
		p.Emotions.Disgust,
		p.ItemCount,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

// GetProfile retrieves the emotion profile for a topic
func (s *ArtifactStore) GetProfile(ctx context.Context, topicID string) (*analysis.TopicEmotionProfile, error) {
	query := `
		SELECT topic_id, joy, sadness, anger, fear, surprise, disgust, item_count
		FROM emotion_profiles
		WHERE topic_id = $1
	`

	var p analysis.TopicEmotionProfile
	err := s.db.QueryRow(ctx, query, topicID).Scan(
		&p.TopicID,
		&p.Emotions.Joy,
		&p.Emotions.Sadness,
		&p.Emotions.Anger,
		&p.Emotions.Fear,
		&p.Emotions.Surprise,
		&p.Emotions.Disgust,
		&p.ItemCount,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("error querying emotion profile: %w", err)
	}

	return &p, nil
}

// ReplaceGraph atomically swaps the stored graph for a topic
func (s *ArtifactStore) ReplaceGraph(ctx context.Context, topicID string, nodes []analysis.GraphNode, edges []analysis.GraphEdge) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges WHERE topic_id = $1`, topicID); err != nil {
		return fmt.Errorf("error clearing previous edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE topic_id = $1`, topicID); err != nil {
		return fmt.Errorf("error clearing previous nodes: %w", err)
	}

	nodeQuery := `
		INSERT INTO graph_nodes (topic_id, item_id, x, y, radius, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, node := range nodes {
		if _, err := tx.Exec(ctx, nodeQuery, topicID, node.ItemID, node.X, node.Y, node.Radius, i); err != nil {
			return fmt.Errorf("error inserting node: %w", err)
		}
	}

	edgeQuery := `
		INSERT INTO graph_edges (topic_id, source_id, target_id, reason)
		VALUES ($1, $2, $3, $4)
	`
	for _, edge := range edges {
		if _, err := tx.Exec(ctx, edgeQuery, topicID, edge.SourceID, edge.TargetID, string(edge.Reason)); err != nil {
			return fmt.Errorf("error inserting edge: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// GetGraph retrieves the stored graph for a topic, preserving node order
func (s *ArtifactStore) GetGraph(ctx context.Context, topicID string) ([]analysis.GraphNode, []analysis.GraphEdge, error) {
	nodeQuery := `
		SELECT item_id, x, y, radius
		FROM graph_nodes
		WHERE topic_id = $1
		ORDER BY position ASC
	`

	rows, err := s.db.Query(ctx, nodeQuery, topicID)
	if err != nil {
		return nil, nil, fmt.Errorf("error querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []analysis.GraphNode
	for rows.Next() {
		var n analysis.GraphNode
		if err := rows.Scan(&n.ItemID, &n.X, &n.Y, &n.Radius); err != nil {
			return nil, nil, fmt.Errorf("error scanning node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	edgeQuery := `
		SELECT source_id, target_id, reason
		FROM graph_edges
		WHERE topic_id = $1
	`

	edgeRows, err := s.db.Query(ctx, edgeQuery, topicID)
	if err != nil {
		return nil, nil, fmt.Errorf("error querying edges: %w", err)
	}
	defer edgeRows.Close()

	var edges []analysis.GraphEdge
	for edgeRows.Next() {
		var e analysis.GraphEdge
		var reason string
		if err := edgeRows.Scan(&e.SourceID, &e.TargetID, &reason); err != nil {
			return nil, nil, fmt.Errorf("error scanning edge: %w", err)
		}
		e.Reason = analysis.EdgeReason(reason)
		edges = append(edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return nodes, edges, nil
}

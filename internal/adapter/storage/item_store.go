// internal/adapter/storage/item_store.go

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"impactlens/internal/domain/analysis"
	"impactlens/internal/domain/content"
)

// ItemStore implements storage for source items and their per-item
// analysis results
type ItemStore struct {
	db *pgxpool.Pool
}

// NewItemStore creates a new item store
func NewItemStore(db *pgxpool.Pool) *ItemStore {
	return &ItemStore{
		db: db,
	}
}

// SaveItem saves a source item to storage
func (s *ItemStore) SaveItem(ctx context.Context, item content.SourceItem) error {
	query := `
		INSERT INTO source_items (
			id, topic_id, kind, title, body, url, provider,
			views, likes, comments, published_at, fetched_at, raw_data
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (id) DO UPDATE
		SET
			views = $8,
			likes = $9,
			comments = $10,
			fetched_at = $12,
			raw_data = $13
	`

	if item.FetchedAt.IsZero() {
		item.FetchedAt = time.Now()
	}

	rawJSON, err := json.Marshal(item.Raw)
	if err != nil {
		return fmt.Errorf("error marshaling raw data: %w", err)
	}

	var publishedAt *time.Time
	if !item.PublishedAt.IsZero() {
		publishedAt = &item.PublishedAt
	}

	_, err = s.db.Exec(
		ctx,
		query,
		item.ID,
		item.TopicID,
		string(item.Kind),
		item.Title,
		item.Body,
		item.URL,
		item.Provider,
		item.Engagement.Views,
		item.Engagement.Likes,
		item.Engagement.Comments,
		publishedAt,
		item.FetchedAt,
		rawJSON,
	)

	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

// SaveVerdict saves one model's verdict for an item
func (s *ItemStore) SaveVerdict(ctx context.Context, v analysis.SentimentVerdict) error {
	query := `
		INSERT INTO sentiment_verdicts (
			item_id, model_id, label, confidence, emotions, justification
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (item_id, model_id) DO UPDATE
		SET
			label = $3,
			confidence = $4,
			emotions = $5,
			justification = $6
	`

	var emotionsJSON []byte
	if v.Emotions != nil {
		var err error
		emotionsJSON, err = json.Marshal(v.Emotions)
		if err != nil {
			return fmt.Errorf("error marshaling emotions: %w", err)
		}
	}

	_, err := s.db.Exec(
		ctx,
		query,
		v.ItemID,
		v.ModelID,
		string(v.Label),
		v.Confidence,
		emotionsJSON,
		v.Justification,
	)

	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

// SaveFused saves the fused sentiment for an item
func (s *ItemStore) SaveFused(ctx context.Context, f analysis.FusedSentiment) error {
	query := `
		INSERT INTO fused_sentiments (
			item_id, label, confidence, agreement, contributing_models
		) VALUES (
			$1, $2, $3, $4, $5
		)
		ON CONFLICT (item_id) DO UPDATE
		SET
			label = $2,
			confidence = $3,
			agreement = $4,
			contributing_models = $5
	`

	modelsJSON, err := json.Marshal(f.ContributingModels)
	if err != nil {
		return fmt.Errorf("error marshaling contributing models: %w", err)
	}

	_, err = s.db.Exec(
		ctx,
		query,
		f.ItemID,
		string(f.Label),
		f.Confidence,
		f.Agreement,
		modelsJSON,
	)

	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

// SaveScores replaces the impact scores for a topic with the scores of
// its latest settled run
func (s *ItemStore) SaveScores(ctx context.Context, topicID string, scores []analysis.ImpactScore) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM impact_scores WHERE topic_id = $1`, topicID); err != nil {
		return fmt.Errorf("error clearing previous scores: %w", err)
	}

	query := `
		INSERT INTO impact_scores (
			item_id, topic_id, reach, engagement, sentiment, quality, recency, composite
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`
	for _, score := range scores {
		_, err := tx.Exec(
			ctx,
			query,
			score.ItemID,
			topicID,
			score.Reach,
			score.Engagement,
			score.SentimentComponent,
			score.Quality,
			score.RecencyBoost,
			score.Composite,
		)
		if err != nil {
			return fmt.Errorf("error inserting score: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// ScoredItem is one item joined with its fused sentiment and impact score
type ScoredItem struct {
	Item  content.SourceItem
	Label analysis.Label
	Score analysis.ImpactScore
}

// GetScoredItems returns a topic's items ordered by composite score
func (s *ItemStore) GetScoredItems(ctx context.Context, topicID string) ([]ScoredItem, error) {
	query := `
		SELECT
			i.id, i.kind, i.title, i.body, i.url, i.provider,
			i.views, i.likes, i.comments, i.published_at, i.fetched_at,
			f.label,
			sc.reach, sc.engagement, sc.sentiment, sc.quality, sc.recency, sc.composite
		FROM impact_scores sc
		JOIN source_items i ON i.id = sc.item_id
		LEFT JOIN fused_sentiments f ON f.item_id = sc.item_id
		WHERE sc.topic_id = $1
		ORDER BY sc.composite DESC, i.id ASC
	`

	rows, err := s.db.Query(ctx, query, topicID)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var items []ScoredItem
	for rows.Next() {
		var si ScoredItem
		var kind string
		var label *string
		var publishedAt *time.Time

		err := rows.Scan(
			&si.Item.ID,
			&kind,
			&si.Item.Title,
			&si.Item.Body,
			&si.Item.URL,
			&si.Item.Provider,
			&si.Item.Engagement.Views,
			&si.Item.Engagement.Likes,
			&si.Item.Engagement.Comments,
			&publishedAt,
			&si.Item.FetchedAt,
			&label,
			&si.Score.Reach,
			&si.Score.Engagement,
			&si.Score.SentimentComponent,
			&si.Score.Quality,
			&si.Score.RecencyBoost,
			&si.Score.Composite,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning scored item: %w", err)
		}

		si.Item.TopicID = topicID
		si.Item.Kind = content.Kind(kind)
		if publishedAt != nil {
			si.Item.PublishedAt = *publishedAt
		}
		si.Label = analysis.LabelUnknown
		if label != nil {
			si.Label = analysis.Label(*label)
		}
		si.Score.ItemID = si.Item.ID

		items = append(items, si)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scored items: %w", err)
	}

	return items, nil
}

// GetDigests returns the lightweight item summaries fed to synthesis
func (s *ItemStore) GetDigests(ctx context.Context, topicID string) ([]analysis.ItemDigest, error) {
	scored, err := s.GetScoredItems(ctx, topicID)
	if err != nil {
		return nil, err
	}

	digests := make([]analysis.ItemDigest, 0, len(scored))
	for _, si := range scored {
		digests = append(digests, analysis.ItemDigest{
			Title:     si.Item.Title,
			Kind:      string(si.Item.Kind),
			Label:     si.Label,
			Composite: si.Score.Composite,
			Views:     si.Item.Engagement.Views,
		})
	}

	return digests, nil
}

// LatestItemAt returns when the newest item for a topic was fetched.
// It drives synthesis staleness.
func (s *ItemStore) LatestItemAt(ctx context.Context, topicID string) (time.Time, error) {
	query := `
		SELECT COALESCE(MAX(fetched_at), 'epoch'::timestamptz)
		FROM source_items
		WHERE topic_id = $1
	`

	var latest time.Time
	if err := s.db.QueryRow(ctx, query, topicID).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("error querying latest item: %w", err)
	}

	return latest, nil
}

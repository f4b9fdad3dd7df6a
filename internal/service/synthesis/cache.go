package synthesis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"impactlens/internal/domain/analysis"
)

// RecordStore persists synthesis records.
type RecordStore interface {
	// GetRecord returns the cached record for a topic, or nil when none exists
	GetRecord(ctx context.Context, topicID string) (*analysis.SynthesisRecord, error)

	// SaveRecord upserts the record for its topic
	SaveRecord(ctx context.Context, record analysis.SynthesisRecord) error
}

// FreshnessSource reports when the newest source item for a topic was
// persisted, which drives staleness.
type FreshnessSource interface {
	LatestItemAt(ctx context.Context, topicID string) (time.Time, error)
}

// Cache memoizes one narrative per topic. Generation for a topic is
// serialized behind a per-topic lock: concurrent callers trigger exactly
// one external generation, with late callers receiving its result.
type Cache struct {
	store       RecordStore
	items       FreshnessSource
	synthesizer analysis.Synthesizer
	logger      *zap.Logger

	mu     sync.Mutex
	topics map[string]*sync.Mutex
}

// NewCache creates a new synthesis cache.
func NewCache(store RecordStore, items FreshnessSource, synthesizer analysis.Synthesizer, logger *zap.Logger) *Cache {
	return &Cache{
		store:       store,
		items:       items,
		synthesizer: synthesizer,
		logger:      logger,
		topics:      make(map[string]*sync.Mutex),
	}
}

func (c *Cache) topicLock(topicID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.topics[topicID]
	if !ok {
		l = &sync.Mutex{}
		c.topics[topicID] = l
	}
	return l
}

// GetOrGenerate returns the cached narrative when it is present, not
// stale and no refresh was forced; otherwise it invokes the synthesizer
// once and replaces the record. On generation failure the previous
// narrative is retained and returned alongside the error.
func (c *Cache) GetOrGenerate(ctx context.Context, input analysis.SynthesisInput, forceRefresh bool) (analysis.SynthesisRecord, error) {
	lock := c.topicLock(input.TopicID)
	lock.Lock()
	defer lock.Unlock()

	cached, err := c.store.GetRecord(ctx, input.TopicID)
	if err != nil {
		return analysis.SynthesisRecord{}, err
	}

	if cached != nil {
		cached.Stale = c.isStale(ctx, *cached)
		if !cached.Stale && !forceRefresh {
			return *cached, nil
		}
	}

	narrative, err := c.synthesizer.Synthesize(ctx, input)
	if err != nil {
		genErr := &analysis.SynthesisGenerationError{TopicID: input.TopicID, Err: err}
		if cached != nil {
			// Never delete on mere staleness: the old narrative stays
			// available until a replacement succeeds.
			c.logger.Warn("synthesis generation failed, serving previous narrative",
				zap.String("topic_id", input.TopicID),
				zap.Error(err))
			return *cached, genErr
		}
		return analysis.SynthesisRecord{}, genErr
	}

	record := analysis.SynthesisRecord{
		TopicID:         input.TopicID,
		Narrative:       narrative,
		GeneratedAt:     time.Now().UTC(),
		SourceItemCount: len(input.Items),
	}
	if err := c.store.SaveRecord(ctx, record); err != nil {
		return analysis.SynthesisRecord{}, err
	}
	return record, nil
}

// isStale reports whether source items newer than the record exist.
func (c *Cache) isStale(ctx context.Context, record analysis.SynthesisRecord) bool {
	latest, err := c.items.LatestItemAt(ctx, record.TopicID)
	if err != nil {
		c.logger.Warn("staleness check failed, treating record as fresh",
			zap.String("topic_id", record.TopicID),
			zap.Error(err))
		return false
	}
	return latest.After(record.GeneratedAt)
}

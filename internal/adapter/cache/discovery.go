// internal/adapter/cache/discovery.go

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"impactlens/internal/domain/content"
)

// DiscoveryCache memoizes source discovery results in Redis so repeated
// runs for a hot topic within the TTL reuse provider responses instead
// of burning API quota. Cache failures degrade to a miss.
type DiscoveryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDiscoveryCache creates a new discovery cache
func NewDiscoveryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *DiscoveryCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DiscoveryCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func discoveryKey(topic string, kind content.Kind) string {
	return fmt.Sprintf("topic_search:%s:%s", strings.ToLower(strings.TrimSpace(topic)), kind)
}

// GetItems returns the cached discovery results for a topic and kind.
// The second return value reports a cache hit.
func (c *DiscoveryCache) GetItems(ctx context.Context, topic string, kind content.Kind) ([]content.SourceItem, bool) {
	data, err := c.client.Get(ctx, discoveryKey(topic, kind)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("discovery cache read failed",
				zap.String("topic", topic),
				zap.Error(err))
		}
		return nil, false
	}

	var items []content.SourceItem
	if err := json.Unmarshal(data, &items); err != nil {
		c.logger.Warn("discovery cache entry corrupt, ignoring",
			zap.String("topic", topic),
			zap.Error(err))
		return nil, false
	}

	return items, true
}

// SetItems stores discovery results under the configured TTL
func (c *DiscoveryCache) SetItems(ctx context.Context, topic string, kind content.Kind, items []content.SourceItem) {
	data, err := json.Marshal(items)
	if err != nil {
		c.logger.Error("failed to marshal discovery results", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, discoveryKey(topic, kind), data, c.ttl).Err(); err != nil {
		c.logger.Warn("discovery cache write failed",
			zap.String("topic", topic),
			zap.Error(err))
	}
}

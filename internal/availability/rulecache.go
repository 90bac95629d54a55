package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// noRuleMarker caches the absence of a rule so quiet weekdays do not hit
// the database on every slot probe.
const noRuleMarker = "none"

// CachedRules decorates a RuleSource with a Redis read-through cache.
// Rules are read-mostly, so a short TTL plus invalidation on write keeps
// the engine off the database for slot listings.
type CachedRules struct {
	source RuleSource
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedRules wraps source with a Redis cache. A nil client disables
// caching and reads pass straight through.
func NewCachedRules(source RuleSource, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedRules {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedRules{source: source, redis: redisClient, ttl: ttl, logger: logger}
}

func (c *CachedRules) key(tenantID string, professionalID uuid.UUID, day time.Weekday) string {
	return fmt.Sprintf("sched:rules:%s:%s:%d", tenantID, professionalID, int(day))
}

// ActiveRule implements RuleSource with a cache in front of the store.
// Cache failures fall back to the source; they never fail the query.
func (c *CachedRules) ActiveRule(ctx context.Context, tenantID string, professionalID uuid.UUID, day time.Weekday) (*Rule, error) {
	if c.redis == nil {
		return c.source.ActiveRule(ctx, tenantID, professionalID, day)
	}

	key := c.key(tenantID, professionalID, day)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		if string(data) == noRuleMarker {
			return nil, nil
		}
		var rule Rule
		if err := json.Unmarshal(data, &rule); err == nil {
			return &rule, nil
		}
		c.logger.Warn("availability: corrupt rule cache entry", "key", key)
	} else if err != redis.Nil {
		c.logger.Warn("availability: rule cache read failed", "error", err)
	}

	rule, err := c.source.ActiveRule(ctx, tenantID, professionalID, day)
	if err != nil {
		return nil, err
	}

	payload := []byte(noRuleMarker)
	if rule != nil {
		if encoded, err := json.Marshal(rule); err == nil {
			payload = encoded
		}
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("availability: rule cache write failed", "error", err)
	}
	return rule, nil
}

// Invalidate drops every cached weekday for a professional. Called after
// rule writes.
func (c *CachedRules) Invalidate(ctx context.Context, tenantID string, professionalID uuid.UUID) {
	if c.redis == nil {
		return
	}
	keys := make([]string, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		keys = append(keys, c.key(tenantID, professionalID, day))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("availability: rule cache invalidate failed", "error", err)
	}
}

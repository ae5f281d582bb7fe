package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "checklist:ruleset"

// CachedRepository caches rule-set bodies in redis. Bodies are keyed by
// version and never change, so only Load is cached; the approved-version
// lookup always hits the underlying repository. Concurrent misses for the
// same key share one load.
type CachedRepository struct {
	next   Repository
	rdb    redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
	logger logger.Logger
}

func NewCachedRepository(next Repository, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedRepository {
	return &CachedRepository{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.Component(log, "ruleset-cache"),
	}
}

func cacheKey(countryCode, visaType string, version int) string {
	return fmt.Sprintf("%s:%s:%s:v%d", cacheKeyPrefix, countryCode, visaType, version)
}

func (c *CachedRepository) LatestApprovedVersion(ctx context.Context, countryCode, visaType string) (int, bool, error) {
	return c.next.LatestApprovedVersion(ctx, countryCode, visaType)
}

func (c *CachedRepository) Load(ctx context.Context, countryCode, visaType string, version int) (*models.RuleSet, error) {
	key := cacheKey(countryCode, visaType, version)

	if rs, ok := c.get(ctx, key); ok {
		return rs, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		rs, err := c.next.Load(ctx, countryCode, visaType, version)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, rs)
		return rs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.RuleSet), nil
}

func (c *CachedRepository) get(ctx context.Context, key string) (*models.RuleSet, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("rule set cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}

	var rs models.RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		c.logger.Warn("rule set cache entry corrupt", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	return &rs, true
}

func (c *CachedRepository) set(ctx context.Context, key string, rs *models.RuleSet) {
	data, err := json.Marshal(rs)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("rule set cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/models"

	"github.com/redis/go-redis/v9"
)

// CachedBase keeps search results in redis for ttl. Cache failures are
// logged and bypassed.
type CachedBase struct {
	next   Base
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedBase(next Base, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedBase {
	return &CachedBase{next: next, rdb: rdb, ttl: ttl, logger: logger.Component(log, "knowledge-cache")}
}

func (c *CachedBase) Search(ctx context.Context, countryCode, visaType string, limit int) ([]models.KnowledgeSnippet, error) {
	key := fmt.Sprintf("checklist:kb:%s:%s:%d", countryCode, visaType, limit)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []models.KnowledgeSnippet
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			return cached, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("knowledge cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	snippets, err := c.next.Search(ctx, countryCode, visaType, limit)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(snippets); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("knowledge cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return snippets, nil
}

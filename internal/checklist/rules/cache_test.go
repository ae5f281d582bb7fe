package rules

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepository serves a fixed rule set and counts loads.
type countingRepository struct {
	rs      *models.RuleSet
	loadErr error
	loads   int32
	delay   time.Duration
}

func (r *countingRepository) LatestApprovedVersion(_ context.Context, _, _ string) (int, bool, error) {
	return r.rs.Version, true, nil
}

func (r *countingRepository) Load(_ context.Context, _, _ string, _ int) (*models.RuleSet, error) {
	atomic.AddInt32(&r.loads, 1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.rs, nil
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedRepository_MissThenHit(t *testing.T) {
	mr, client := setupRedis(t)
	next := &countingRepository{rs: usTouristRuleSet()}
	repo := NewCachedRepository(next, client, time.Hour, logger.NewTestLogger(t))
	ctx := context.Background()

	first, err := repo.Load(ctx, "US", "tourist", 3)
	require.NoError(t, err)
	assert.True(t, mr.Exists("checklist:ruleset:US:tourist:v3"))

	second, err := repo.Load(ctx, "US", "tourist", 3)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&next.loads))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Documents, second.Documents)

	ttl := mr.TTL("checklist:ruleset:US:tourist:v3")
	assert.Equal(t, time.Hour, ttl)
}

func TestCachedRepository_VersionsAreSeparateKeys(t *testing.T) {
	_, client := setupRedis(t)
	next := &countingRepository{rs: usTouristRuleSet()}
	repo := NewCachedRepository(next, client, time.Hour, logger.NewTestLogger(t))

	_, err := repo.Load(context.Background(), "US", "tourist", 3)
	require.NoError(t, err)
	_, err = repo.Load(context.Background(), "US", "tourist", 4)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&next.loads))
}

func TestCachedRepository_ConcurrentMissesShareLoad(t *testing.T) {
	_, client := setupRedis(t)
	next := &countingRepository{rs: usTouristRuleSet(), delay: 50 * time.Millisecond}
	repo := NewCachedRepository(next, client, time.Hour, logger.NewTestLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs, err := repo.Load(context.Background(), "US", "tourist", 3)
			assert.NoError(t, err)
			assert.NotNil(t, rs)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&next.loads), int32(2))
}

func TestCachedRepository_CorruptEntryReloads(t *testing.T) {
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set("checklist:ruleset:US:tourist:v3", "{not json"))

	next := &countingRepository{rs: usTouristRuleSet()}
	repo := NewCachedRepository(next, client, time.Hour, logger.NewTestLogger(t))

	rs, err := repo.Load(context.Background(), "US", "tourist", 3)
	require.NoError(t, err)
	assert.Equal(t, "rs-us-tourist-3", rs.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&next.loads))
}

func TestCachedRepository_LoadErrorNotCached(t *testing.T) {
	mr, client := setupRedis(t)
	next := &countingRepository{rs: usTouristRuleSet(), loadErr: ErrRuleSetNotFound}
	repo := NewCachedRepository(next, client, time.Hour, logger.NewTestLogger(t))

	_, err := repo.Load(context.Background(), "US", "tourist", 3)
	assert.ErrorIs(t, err, ErrRuleSetNotFound)
	assert.False(t, mr.Exists("checklist:ruleset:US:tourist:v3"))
}

func TestCachedRepository_RedisDownFallsThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	key := "checklist:ruleset:US:tourist:v3"

	mock.ExpectGet(key).SetErr(errors.New("connection reset"))
	mock.Regexp().ExpectSet(key, `.*`, time.Hour).SetErr(errors.New("connection reset"))

	next := &countingRepository{rs: usTouristRuleSet()}
	repo := NewCachedRepository(next, client, time.Hour, logger.NewTestLogger(t))

	rs, err := repo.Load(context.Background(), "US", "tourist", 3)
	require.NoError(t, err)
	assert.Equal(t, "rs-us-tourist-3", rs.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedRepository_LatestApprovedVersionPassesThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	next := &countingRepository{rs: usTouristRuleSet()}
	repo := NewCachedRepository(next, client, time.Hour, logger.NewTestLogger(t))

	v, ok, err := repo.LatestApprovedVersion(context.Background(), "US", "tourist")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

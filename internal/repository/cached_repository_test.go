package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kosench/shortlink/internal/cache"
	apperrors "github.com/Kosench/shortlink/internal/errors"
	"github.com/Kosench/shortlink/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache - кэш в памяти, сериализует значения как RedisClient
type mapCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, 0)
}

func (c *mapCache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	data, ok := c.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *mapCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *mapCache) HealthCheck(ctx context.Context) error { return nil }
func (c *mapCache) Close() error                          { return nil }

// countingRepo считает обращения к FindByCode; gate задерживает ответ стора
type countingRepo struct {
	LinkRepository
	finds   atomic.Int64
	delay   time.Duration
	entered chan struct{}
	gate    chan struct{}
}

func (r *countingRepo) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	r.finds.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	link, err := r.LinkRepository.FindByCode(ctx, code)
	if r.gate != nil {
		// строка уже прочитана, ответ придерживаем
		r.entered <- struct{}{}
		<-r.gate
	}
	return link, err
}

func setupCached(t *testing.T) (*CachedLinkRepository, *countingRepo, *mapCache, *cache.KeyBuilder) {
	t.Helper()
	inner := &countingRepo{LinkRepository: NewMemoryLinkRepository()}
	c := newMapCache()
	keys := cache.NewKeyBuilder("test")
	return NewCachedLinkRepository(inner, c, keys), inner, c, keys
}

func TestCachedLinkRepository_ReadThrough(t *testing.T) {
	repo, inner, c, keys := setupCached(t)
	ctx := context.Background()
	require.NoError(t, inner.Create(ctx, newLink("id-1", "rt12345", "https://example.com", time.Now())))

	targets := repo.Targets()
	link, err := targets.FindByCode(ctx, "rt12345")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.URL)
	assert.True(t, c.has(keys.Link("rt12345")))

	link, err = targets.FindByCode(ctx, "rt12345")
	require.NoError(t, err)
	assert.Equal(t, "id-1", link.ID)
	assert.Equal(t, "https://example.com", link.URL)
	assert.Equal(t, int64(1), inner.finds.Load())
}

func TestCachedLinkRepository_ClicksKeepCacheWarm(t *testing.T) {
	repo, inner, c, keys := setupCached(t)
	ctx := context.Background()
	require.NoError(t, inner.Create(ctx, newLink("id-1", "hot1234", "https://example.com", time.Now())))

	targets := repo.Targets()
	for i := 0; i < 5; i++ {
		_, err := targets.FindByCode(ctx, "hot1234")
		require.NoError(t, err)
		require.NoError(t, repo.IncrementClicks(ctx, "hot1234", time.Now()))
	}

	assert.Equal(t, int64(1), inner.finds.Load())
	assert.True(t, c.has(keys.Link("hot1234")))

	// полная запись всегда читается из стора
	link, err := repo.FindByCode(ctx, "hot1234")
	require.NoError(t, err)
	assert.Equal(t, int64(5), link.Clicks)
	assert.NotNil(t, link.LastClicked)
}

func TestCachedLinkRepository_NotFoundIsNotCached(t *testing.T) {
	repo, inner, c, keys := setupCached(t)
	ctx := context.Background()
	targets := repo.Targets()

	_, err := targets.FindByCode(ctx, "miss123")
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
	_, err = targets.FindByCode(ctx, "miss123")
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)

	assert.False(t, c.has(keys.Link("miss123")))
	assert.Equal(t, int64(2), inner.finds.Load())
}

func TestCachedLinkRepository_CreatePopulatesCache(t *testing.T) {
	repo, inner, c, keys := setupCached(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newLink("id-1", "new1234", "https://example.com", time.Now())))
	assert.True(t, c.has(keys.Link("new1234")))

	_, err := repo.Targets().FindByCode(ctx, "new1234")
	require.NoError(t, err)
	assert.Equal(t, int64(0), inner.finds.Load())
}

func TestCachedLinkRepository_DeleteInvalidates(t *testing.T) {
	repo, _, c, keys := setupCached(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newLink("id-1", "del1234", "https://example.com", time.Now())))

	require.NoError(t, repo.Delete(ctx, "del1234"))
	assert.False(t, c.has(keys.Link("del1234")))

	_, err := repo.Targets().FindByCode(ctx, "del1234")
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
}

func TestCachedLinkRepository_DeleteDuringLookupDoesNotResurrect(t *testing.T) {
	repo, inner, c, keys := setupCached(t)
	ctx := context.Background()
	require.NoError(t, inner.Create(ctx, newLink("id-1", "abc1234", "https://example.com", time.Now())))

	inner.entered = make(chan struct{}, 2)
	inner.gate = make(chan struct{})
	targets := repo.Targets()

	done := make(chan error, 1)
	go func() {
		_, err := targets.FindByCode(ctx, "abc1234")
		done <- err
	}()

	// чтение из стора уже идет, ссылку удаляют до его завершения
	<-inner.entered
	require.NoError(t, repo.Delete(ctx, "abc1234"))
	close(inner.gate)
	require.NoError(t, <-done)

	assert.False(t, c.has(keys.Link("abc1234")))

	_, err := targets.FindByCode(ctx, "abc1234")
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
}

func TestCachedLinkRepository_CacheErrorFallsBack(t *testing.T) {
	repo, inner, c, _ := setupCached(t)
	ctx := context.Background()
	require.NoError(t, inner.Create(ctx, newLink("id-1", "err1234", "https://example.com", time.Now())))
	c.getErr = errors.New("connection reset")

	link, err := repo.Targets().FindByCode(ctx, "err1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.URL)
}

func TestCachedLinkRepository_CoalescesConcurrentMisses(t *testing.T) {
	repo, inner, _, _ := setupCached(t)
	inner.delay = 50 * time.Millisecond
	ctx := context.Background()
	require.NoError(t, inner.Create(ctx, newLink("id-1", "hot1234", "https://example.com", time.Now())))
	targets := repo.Targets()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			link, err := targets.FindByCode(ctx, "hot1234")
			assert.NoError(t, err)
			assert.Equal(t, "https://example.com", link.URL)
		}()
	}
	close(start)
	wg.Wait()

	assert.Less(t, inner.finds.Load(), int64(10))
}

func TestCachedLinkRepository_WithNullCache(t *testing.T) {
	inner := &countingRepo{LinkRepository: NewMemoryLinkRepository()}
	repo := NewCachedLinkRepository(inner, cache.NewNullCache(), cache.NewKeyBuilder("test"))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newLink("id-1", "nul1234", "https://example.com", time.Now())))

	for i := 0; i < 3; i++ {
		link, err := repo.Targets().FindByCode(ctx, "nul1234")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", link.URL)
	}
	assert.Equal(t, int64(3), inner.finds.Load())

	require.NoError(t, repo.Delete(ctx, "nul1234"))
	_, err := repo.Targets().FindByCode(ctx, "nul1234")
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
}

func TestCachedLinkRepository_StoreUnavailablePassesThrough(t *testing.T) {
	c := newMapCache()
	repo := NewCachedLinkRepository(NewPostgresLinkRepository(nil, time.Second), c, cache.NewKeyBuilder("test"))

	_, err := repo.Targets().FindByCode(context.Background(), "abc1234")
	assert.True(t, apperrors.IsStoreUnavailable(err))

	_, err = repo.FindByCode(context.Background(), "abc1234")
	assert.True(t, apperrors.IsStoreUnavailable(err))
}

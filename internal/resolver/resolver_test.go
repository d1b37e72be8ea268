package resolver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Kosench/shortlink/internal/cache"
	"github.com/Kosench/shortlink/internal/clicks"
	apperrors "github.com/Kosench/shortlink/internal/errors"
	"github.com/Kosench/shortlink/internal/model"
	"github.com/Kosench/shortlink/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLinkFinder struct {
	mock.Mock
}

func (m *MockLinkFinder) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Link), args.Error(1)
}

type MockClickRecorder struct {
	mock.Mock
}

func (m *MockClickRecorder) Record(ctx context.Context, code string, now time.Time) error {
	args := m.Called(ctx, code, now)
	return args.Error(0)
}

type stepClock struct {
	current time.Time
	step    time.Duration
}

func (c *stepClock) Now() time.Time {
	c.current = c.current.Add(c.step)
	return c.current
}

func TestResolve_InvalidSegments(t *testing.T) {
	finder := new(MockLinkFinder)
	recorder := new(MockClickRecorder)
	r := New(finder, recorder)

	segments := []string{"", "abc", "abc12", "abcdefghi", "abc-123", "abc.123", "api/links", "héllo12", "abc 1234"}
	for _, s := range segments {
		t.Run(s, func(t *testing.T) {
			out := r.Resolve(context.Background(), s)
			assert.Equal(t, NotApplicable, out.Kind)
		})
	}

	finder.AssertNotCalled(t, "FindByCode", mock.Anything, mock.Anything)
	recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_Hit(t *testing.T) {
	finder := new(MockLinkFinder)
	recorder := new(MockClickRecorder)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r := New(finder, recorder, WithClock(&stepClock{current: now}))

	finder.On("FindByCode", mock.Anything, "abc1234").
		Return(&model.Link{Code: "abc1234", URL: "https://example.com/target"}, nil).Once()
	recorder.On("Record", mock.Anything, "abc1234", now).Return(nil).Once()

	out := r.Resolve(context.Background(), "abc1234")

	assert.Equal(t, Redirect, out.Kind)
	assert.Equal(t, http.StatusFound, out.Status)
	assert.Equal(t, "https://example.com/target", out.TargetURL)
	finder.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestResolve_NotFoundIsIdempotent(t *testing.T) {
	finder := new(MockLinkFinder)
	recorder := new(MockClickRecorder)
	r := New(finder, recorder)

	finder.On("FindByCode", mock.Anything, "zzz9999").Return(nil, apperrors.ErrLinkNotFound).Twice()

	first := r.Resolve(context.Background(), "zzz9999")
	second := r.Resolve(context.Background(), "zzz9999")

	assert.Equal(t, NotFound, first.Kind)
	assert.Equal(t, http.StatusNotFound, first.Status)
	assert.Equal(t, MessageNotFound, first.Message)
	assert.Equal(t, first, second)
	finder.AssertNumberOfCalls(t, "FindByCode", 2)
	recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_StoreUnavailable(t *testing.T) {
	finder := new(MockLinkFinder)
	recorder := new(MockClickRecorder)
	r := New(finder, recorder)

	cause := apperrors.StoreUnavailable("find link", errors.New("connection refused"))
	finder.On("FindByCode", mock.Anything, "abc1234").Return(nil, cause).Once()

	out := r.Resolve(context.Background(), "abc1234")

	assert.Equal(t, StoreUnavailable, out.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, out.Status)
	assert.Equal(t, MessageStoreUnavailable, out.Message)
	assert.ErrorIs(t, out.Err, apperrors.ErrStoreUnavailable)
	finder.AssertNumberOfCalls(t, "FindByCode", 1)
}

func TestResolve_UnexpectedFailure(t *testing.T) {
	finder := new(MockLinkFinder)
	r := New(finder, nil)

	finder.On("FindByCode", mock.Anything, "abc1234").Return(nil, errors.New("scan failed")).Once()

	out := r.Resolve(context.Background(), "abc1234")

	assert.Equal(t, UnexpectedFailure, out.Kind)
	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, MessageInternal, out.Message)
}

func TestResolve_AccountingFailureStillRedirects(t *testing.T) {
	finder := new(MockLinkFinder)
	recorder := new(MockClickRecorder)
	r := New(finder, recorder)

	finder.On("FindByCode", mock.Anything, "abc1234").
		Return(&model.Link{Code: "abc1234", URL: "https://example.com"}, nil)
	recorder.On("Record", mock.Anything, "abc1234", mock.Anything).Return(errors.New("write failed"))

	out := r.Resolve(context.Background(), "abc1234")

	assert.Equal(t, Redirect, out.Kind)
	assert.Equal(t, "https://example.com", out.TargetURL)
}

func TestResolve_QueueFullStillRedirects(t *testing.T) {
	finder := new(MockLinkFinder)
	recorder := new(MockClickRecorder)
	r := New(finder, recorder)

	finder.On("FindByCode", mock.Anything, "abc1234").
		Return(&model.Link{Code: "abc1234", URL: "https://example.com"}, nil)
	recorder.On("Record", mock.Anything, "abc1234", mock.Anything).Return(clicks.ErrQueueFull)

	assert.Equal(t, Redirect, r.Resolve(context.Background(), "abc1234").Kind)
}

func TestResolve_SequentialResolutionsAccumulateClicks(t *testing.T) {
	store := repository.NewMemoryLinkRepository()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &model.Link{
		ID: "id-1", Code: "abc1234", URL: "https://example.com", CreatedAt: time.Now(),
	}))

	clock := &stepClock{current: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Minute}
	r := New(store, clicks.NewSyncRecorder(store, time.Second), WithClock(clock))

	const n = 5
	for i := 0; i < n; i++ {
		out := r.Resolve(ctx, "abc1234")
		require.Equal(t, Redirect, out.Kind)
	}

	link, err := store.FindByCode(ctx, "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(n), link.Clicks)
	require.NotNil(t, link.LastClicked)
	assert.True(t, clock.current.Equal(*link.LastClicked))
}

func TestResolve_AsyncPoolAccumulatesClicks(t *testing.T) {
	store := repository.NewMemoryLinkRepository()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &model.Link{
		ID: "id-1", Code: "abc1234", URL: "https://example.com", CreatedAt: time.Now(),
	}))

	pool := clicks.NewPool(store, clicks.PoolConfig{Workers: 1, QueueSize: 16, Timeout: time.Second})
	require.NoError(t, pool.Start())
	r := New(store, pool)

	for i := 0; i < 3; i++ {
		require.Equal(t, Redirect, r.Resolve(ctx, "abc1234").Kind)
	}
	require.NoError(t, pool.Shutdown(context.Background()))

	link, err := store.FindByCode(ctx, "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(3), link.Clicks)
}

func TestResolve_CachedStoreHonoursDelete(t *testing.T) {
	ctx := context.Background()
	store := repository.NewCachedLinkRepository(repository.NewMemoryLinkRepository(), cache.NewNullCache(), cache.NewKeyBuilder("test"))
	require.NoError(t, store.Create(ctx, &model.Link{
		ID: "id-1", Code: "abc123", URL: "https://example.com", CreatedAt: time.Now(),
	}))

	r := New(store.Targets(), clicks.NewSyncRecorder(store, time.Second))

	out := r.Resolve(ctx, "abc123")
	require.Equal(t, Redirect, out.Kind)
	assert.Equal(t, "https://example.com", out.TargetURL)

	link, err := store.FindByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), link.Clicks)

	require.NoError(t, store.Delete(ctx, "abc123"))
	assert.Equal(t, NotFound, r.Resolve(ctx, "abc123").Kind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "redirect", Redirect.String())
	assert.Equal(t, "not_applicable", NotApplicable.String())
	assert.Equal(t, "store_unavailable", StoreUnavailable.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

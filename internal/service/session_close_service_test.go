package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
	appErrors "github.com/noah-isme/feedback-sessions-api/pkg/errors"
)

type memoryCacheStub struct {
	mu      sync.Mutex
	items   map[string][]byte
	deleted []string
	getErr  error
}

func newMemoryCacheStub() *memoryCacheStub {
	return &memoryCacheStub{items: map[string][]byte{}}
}

func (c *memoryCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	data, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = data
	return nil
}

func (c *memoryCacheStub) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.items, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

func (c *memoryCacheStub) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

type closeServiceFixture struct {
	svc       *SessionCloseService
	sessions  *sessionRepoStub
	responses *responseRepoStub
	cache     *memoryCacheStub
	metrics   *MetricsService
}

func newCloseServiceFixture(fetchTimeout time.Duration, sessions ...*models.Session) closeServiceFixture {
	repo := newSessionRepoStub(sessions...)
	responses := &responseRepoStub{}
	cacheRepo := newMemoryCacheStub()
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), true)
	svc := NewSessionCloseService(repo, responses, cache, metrics, fetchTimeout, zap.NewNop())
	return closeServiceFixture{svc: svc, sessions: repo, responses: responses, cache: cacheRepo, metrics: metrics}
}

func seedResponses(f closeServiceFixture, sessionID string) {
	f.responses.items = []models.Response{
		{ID: "r1", SessionID: sessionID, RespondentHash: "h1", Answers: models.Answers{rating(5), comment("loved it")}},
		{ID: "r2", SessionID: sessionID, RespondentHash: "h2", Answers: models.Answers{rating(3), comment("fine")}},
		{ID: "r3", SessionID: sessionID, RespondentHash: "h3", Answers: models.Answers{rating(1), comment("lost")}},
	}
}

func TestSessionCloseServiceClose(t *testing.T) {
	f := newCloseServiceFixture(time.Second, activeSession("session-1", "teacher-1"))
	seedResponses(f, "session-1")
	require.NoError(t, f.cache.Set(context.Background(), "stats:session-1", "stale", time.Minute))

	result, err := f.svc.Close(context.Background(), "session-1", teacherClaims("teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusClosed, result.Status)
	require.NotNil(t, result.ClosedAt)
	assert.Equal(t, 3, result.Stats.TotalResponses)
	assert.Equal(t, 3.0, result.Stats.AvgRating)
	assert.Equal(t, "loved it", result.Stats.TopComments[0].Text)
	assert.Equal(t, "lost", result.Stats.LeastRatedComments[0].Text)

	stored := f.sessions.get("session-1")
	assert.Equal(t, models.SessionStatusClosed, stored.Status)
	require.NotNil(t, stored.CompiledStats)
	assert.Equal(t, result.Stats.TotalResponses, stored.CompiledStats.TotalResponses)
	assert.False(t, f.cache.has("stats:session-1"))
	assert.Equal(t, uint64(1), f.metrics.Snapshot().SessionsClosed)
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.compileDuration))
}

func TestSessionCloseServiceCloseWithoutResponses(t *testing.T) {
	f := newCloseServiceFixture(time.Second, activeSession("session-1", "teacher-1"))

	result, err := f.svc.Close(context.Background(), "session-1", adminClaims())
	require.NoError(t, err)
	assert.Zero(t, result.Stats.TotalResponses)
	assert.Equal(t, models.EmptyDistribution(), result.Stats.RatingDistribution)
}

func TestSessionCloseServiceCloseAuthorization(t *testing.T) {
	f := newCloseServiceFixture(time.Second, activeSession("session-1", "teacher-1"))

	_, err := f.svc.Close(context.Background(), "session-1", teacherClaims("teacher-2"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Close(context.Background(), "session-1", studentClaims("student-1"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Close(context.Background(), "session-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Zero(t, f.responses.listCalls)
}

func TestSessionCloseServiceCloseTwice(t *testing.T) {
	f := newCloseServiceFixture(time.Second, activeSession("session-1", "teacher-1"))
	seedResponses(f, "session-1")

	first, err := f.svc.Close(context.Background(), "session-1", teacherClaims("teacher-1"))
	require.NoError(t, err)

	_, err = f.svc.Close(context.Background(), "session-1", teacherClaims("teacher-1"))
	assert.ErrorIs(t, err, appErrors.ErrSessionClosed)
	assert.Equal(t, first.Stats, *f.sessions.get("session-1").CompiledStats)
}

func TestSessionCloseServiceFetchFailureLeavesSessionActive(t *testing.T) {
	f := newCloseServiceFixture(time.Second, activeSession("session-1", "teacher-1"))
	f.responses.listErr = errors.New("connection refused")

	_, err := f.svc.Close(context.Background(), "session-1", teacherClaims("teacher-1"))
	assert.Equal(t, appErrors.ErrInternal.Code, errorCode(t, err))

	stored := f.sessions.get("session-1")
	assert.Equal(t, models.SessionStatusActive, stored.Status)
	assert.Nil(t, stored.CompiledStats)
	assert.Zero(t, f.sessions.closeCalls)
	assert.Zero(t, testutil.CollectAndCount(f.metrics.compileDuration))
}

func TestSessionCloseServiceFetchTimeout(t *testing.T) {
	f := newCloseServiceFixture(20*time.Millisecond, activeSession("session-1", "teacher-1"))
	f.responses.listBlock = true

	start := time.Now()
	_, err := f.svc.Close(context.Background(), "session-1", teacherClaims("teacher-1"))
	assert.Equal(t, appErrors.ErrUnavailable.Code, errorCode(t, err))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.SessionStatusActive, f.sessions.get("session-1").Status)
	assert.Zero(t, f.sessions.closeCalls)
}

func TestSessionCloseServiceWriteFailure(t *testing.T) {
	f := newCloseServiceFixture(time.Second, activeSession("session-1", "teacher-1"))
	seedResponses(f, "session-1")
	f.sessions.closeErr = errors.New("disk full")

	_, err := f.svc.Close(context.Background(), "session-1", teacherClaims("teacher-1"))
	assert.Equal(t, appErrors.ErrInternal.Code, errorCode(t, err))
	assert.Equal(t, models.SessionStatusActive, f.sessions.get("session-1").Status)
	assert.Zero(t, f.metrics.Snapshot().SessionsClosed)
}

func TestSessionCloseServiceConcurrentCloseWritesOnce(t *testing.T) {
	f := newCloseServiceFixture(time.Second, activeSession("session-1", "teacher-1"))
	seedResponses(f, "session-1")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Close(context.Background(), "session-1", teacherClaims("teacher-1"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, appErrors.ErrSessionClosed) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, conflicts)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().SessionsClosed)
}

func TestSessionCloseServiceCloseDue(t *testing.T) {
	closed := activeSession("closed", "teacher-1")
	closed.Status = models.SessionStatusClosed
	f := newCloseServiceFixture(time.Second, activeSession("due", "teacher-1"), closed)
	seedResponses(f, "due")

	require.NoError(t, f.svc.CloseDue(context.Background(), "due"))
	assert.Equal(t, models.SessionStatusClosed, f.sessions.get("due").Status)

	require.NoError(t, f.svc.CloseDue(context.Background(), "closed"))
	assert.Equal(t, 1, f.sessions.closeCalls)

	err := f.svc.CloseDue(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errorCode(t, err))
}

func TestSessionCloseServiceRecompile(t *testing.T) {
	f := newCloseServiceFixture(time.Second, activeSession("session-1", "teacher-1"))
	seedResponses(f, "session-1")

	_, err := f.svc.Recompile(context.Background(), "session-1", adminClaims())
	assert.ErrorIs(t, err, appErrors.ErrSessionNotClosed)

	_, err = f.svc.Close(context.Background(), "session-1", teacherClaims("teacher-1"))
	require.NoError(t, err)

	_, err = f.svc.Recompile(context.Background(), "session-1", teacherClaims("teacher-1"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	f.responses.items = f.responses.items[:1]
	result, err := f.svc.Recompile(context.Background(), "session-1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusClosed, result.Status)
	assert.Equal(t, 1, result.Stats.TotalResponses)
	assert.Equal(t, 1, f.sessions.get("session-1").CompiledStats.TotalResponses)
	assert.Contains(t, f.cache.deleted, "stats:session-1")
}

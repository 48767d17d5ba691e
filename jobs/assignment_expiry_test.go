package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fleet/meridian/internal/observability"
	"github.com/meridian-fleet/meridian/internal/policy"
)

type stubExpirer struct {
	userIDs []string
	err     error
	calls   int
}

func (s *stubExpirer) ExpireAssignments(ctx context.Context) ([]string, error) {
	s.calls++
	return s.userIDs, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAssignmentExpiryInvalidatesAffectedCaches(t *testing.T) {
	registry := policy.NewCacheRegistry(policy.CacheConfig{})
	before := registry.For("user-1")
	untouched := registry.For("user-2")

	expirer := &stubExpirer{userIDs: []string{"user-1"}}
	job := NewAssignmentExpiryJob(expirer, registry, observability.NewMetrics(), testLogger())

	err := job.Handle(context.Background(), NewAssignmentExpiryTask())
	require.NoError(t, err)
	assert.Equal(t, 1, expirer.calls)

	assert.NotSame(t, before, registry.For("user-1"), "expired principal's cache must be dropped")
	assert.Same(t, untouched, registry.For("user-2"), "other principals keep their cache")
}

func TestAssignmentExpiryPropagatesRepositoryError(t *testing.T) {
	registry := policy.NewCacheRegistry(policy.CacheConfig{})
	expirer := &stubExpirer{err: errors.New("db down")}
	job := NewAssignmentExpiryJob(expirer, registry, observability.NewMetrics(), testLogger())

	err := job.Handle(context.Background(), NewAssignmentExpiryTask())
	require.Error(t, err, "asynq retries on returned error")
}

func TestAssignmentExpiryNoExpirations(t *testing.T) {
	registry := policy.NewCacheRegistry(policy.CacheConfig{})
	job := NewAssignmentExpiryJob(&stubExpirer{}, registry, observability.NewMetrics(), testLogger())

	require.NoError(t, job.Handle(context.Background(), NewAssignmentExpiryTask()))
}

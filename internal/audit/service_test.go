package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	entries    []TimelineEntry
	lastLimit  int
	lastOffset int
}

func (m *mockRepository) Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineEntry, int, error) {
	m.lastLimit = limit
	m.lastOffset = offset
	end := offset + limit
	if offset > len(m.entries) {
		return nil, len(m.entries), nil
	}
	if end > len(m.entries) {
		end = len(m.entries)
	}
	return m.entries[offset:end], len(m.entries), nil
}

func seedEntries(n int) []TimelineEntry {
	entries := make([]TimelineEntry, n)
	for i := range entries {
		entries[i] = TimelineEntry{
			ID:         "entry-" + string(rune('a'+i)),
			ActorID:    "admin-1",
			Action:     "role.grant",
			Entity:     "role_assignment",
			OccurredAt: time.Now().Add(-time.Duration(i) * time.Hour),
		}
	}
	return entries
}

func TestTimelinePaging(t *testing.T) {
	repo := &mockRepository{entries: seedEntries(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 10)
	assert.Equal(t, 10, repo.lastOffset)
	assert.Equal(t, 25, result.Paging.Total)
	assert.Equal(t, 3, result.Paging.TotalPages)
}

func TestTimelineDefaultsAndCaps(t *testing.T) {
	repo := &mockRepository{entries: seedEntries(5)}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), TimelineFilters{Page: -1, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, repo.lastLimit, "page size is capped")
	assert.Equal(t, 0, repo.lastOffset, "negative page falls back to first")
}

func TestTimelineWithoutRepository(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
}

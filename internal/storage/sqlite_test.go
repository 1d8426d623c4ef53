package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farhan/hookgate/internal/event"
	"github.com/farhan/hookgate/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "hookgate.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func record(eventType, externalID, outcome string) *EventRecord {
	return &EventRecord{
		ID:          models.NewID("evt"),
		EventType:   eventType,
		ExternalID:  externalID,
		DisplayName: "casey",
		Outcome:     outcome,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestSQLite_RecordAndList(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.RecordEvent(ctx, record(event.TypeAuthorized, "42", OutcomeRouted)))
	require.NoError(t, s.RecordEvent(ctx, record("SOMETHING_ELSE", "43", OutcomeIgnored)))

	events, err := s.ListEvents(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "casey", events[0].DisplayName)
}

func TestSQLite_Stats(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.RecordEvent(ctx, record(event.TypeAuthorized, "42", OutcomeRouted)))
	require.NoError(t, s.RecordEvent(ctx, record(event.TypeAuthorized, "42", OutcomeRouted)))
	require.NoError(t, s.RecordEvent(ctx, record(event.TypeDeauthorized, "42", OutcomeRouted)))
	require.NoError(t, s.RecordEvent(ctx, record("SOMETHING_ELSE", "43", OutcomeIgnored)))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.TotalEvents)
	assert.EqualValues(t, 2, stats.AuthorizedCount)
	assert.EqualValues(t, 1, stats.DeauthorizedCount)
	assert.EqualValues(t, 1, stats.IgnoredCount)
	assert.EqualValues(t, 2, stats.UniqueUsers)
}

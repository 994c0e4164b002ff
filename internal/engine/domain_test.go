// ABOUTME: Tests for typed domain record operations
// ABOUTME: Covers session filter/sort/pagination logic and degrade-to-empty reads

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildpost/guildpost/internal/store"
)

func seedSession(t *testing.T, eng *Engine, id, host string, participants []string, startsAt time.Time) {
	t.Helper()
	_, err := eng.StoreGameSession(context.Background(), &store.GameSession{
		ID:           id,
		GameID:       "g1",
		HostID:       host,
		Participants: participants,
		StartsAt:     startsAt,
	})
	require.NoError(t, err)
}

func TestStoreMessage_RequiresConversation(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	_, err := eng.StoreMessage(context.Background(), &store.Message{Content: "x"})
	assert.Error(t, err)
}

func TestGetMessages_EmptyConversation(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.StoreMessage(ctx, &store.Message{ConversationID: "c", SenderID: "u", Content: "x"})
	require.NoError(t, err)

	assert.Empty(t, eng.GetMessages(ctx, "unknown-conversation", 10, 0))
	assert.Len(t, eng.GetMessages(ctx, "c", 10, 0), 1)
}

func TestGetGameSessions_ParticipantFilter(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	seedSession(t, eng, "s1", "host-1", []string{"alice", "bob"}, testStart.Add(time.Hour))
	seedSession(t, eng, "s2", "host-2", []string{"carol"}, testStart.Add(2*time.Hour))
	seedSession(t, eng, "s3", "alice", nil, testStart.Add(3*time.Hour))

	// Participant match covers both membership and hosting
	got := eng.GetGameSessions(ctx, SessionFilters{ParticipantID: "alice"})
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, "s3", got[1].ID)
}

func TestGetGameSessions_FutureOnly(t *testing.T) {
	eng, _, clock, _ := newTestEngine(t)
	ctx := context.Background()

	seedSession(t, eng, "past", "h", nil, testStart.Add(-time.Hour))
	seedSession(t, eng, "now", "h", nil, testStart)
	seedSession(t, eng, "future", "h", nil, testStart.Add(time.Hour))

	got := eng.GetGameSessions(ctx, SessionFilters{FutureOnly: true})
	require.Len(t, got, 1)
	assert.Equal(t, "future", got[0].ID)

	// The boundary moves with the clock
	clock.Advance(2 * time.Hour)
	got = eng.GetGameSessions(ctx, SessionFilters{FutureOnly: true})
	assert.Empty(t, got)
}

func TestGetGameSessions_SortedAndPaginated(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	seedSession(t, eng, "third", "h", nil, testStart.Add(3*time.Hour))
	seedSession(t, eng, "first", "h", nil, testStart.Add(time.Hour))
	seedSession(t, eng, "second", "h", nil, testStart.Add(2*time.Hour))

	got := eng.GetGameSessions(ctx, SessionFilters{Limit: 2})
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "second", got[1].ID)

	got = eng.GetGameSessions(ctx, SessionFilters{Limit: 2, Offset: 2})
	require.Len(t, got, 1)
	assert.Equal(t, "third", got[0].ID)

	got = eng.GetGameSessions(ctx, SessionFilters{Offset: 10})
	assert.Empty(t, got)
}

func TestGetGameSessions_HostFilter(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	seedSession(t, eng, "mine", "host-1", nil, testStart.Add(time.Hour))
	seedSession(t, eng, "other", "host-2", nil, testStart.Add(time.Hour))

	got := eng.GetGameSessions(ctx, SessionFilters{HostID: "host-1"})
	require.Len(t, got, 1)
	assert.Equal(t, "mine", got[0].ID)
}

func TestStoreGameLibraryItem_AndRead(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := eng.StoreGameLibraryItem(ctx, &store.GameLibraryItem{
		UserID: "user-1",
		GameID: "g1",
		Title:  "Chess",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	items := eng.GetGameLibrary(ctx, "user-1")
	require.Len(t, items, 1)
	assert.Equal(t, "Chess", items[0].Title)

	assert.Empty(t, eng.GetGameLibrary(ctx, "user-2"))
}

func TestUserSnapshotRoundTrip(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.SaveUserSnapshot(ctx, &store.UserSnapshot{
		ID:       "user-1",
		Username: "alice",
	}))

	got := eng.GetUserSnapshot(ctx, "user-1")
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)

	assert.Nil(t, eng.GetUserSnapshot(ctx, "missing"))
}

func TestAppStateRoundTrip(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.SaveAppState(ctx, "last_sync", map[string]string{"status": "clean"}))

	raw, ok := eng.GetAppState(ctx, "last_sync")
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"clean"}`, string(raw))

	_, ok = eng.GetAppState(ctx, "missing")
	assert.False(t, ok)
}

// ABOUTME: Tests for domain record persistence
// ABOUTME: Covers messages, sessions, library, user snapshots, app state, and data reset

package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestSaveMessage_GeneratesID(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	msg := &Message{
		ConversationID: "conv-1",
		SenderID:       "user-1",
		Content:        "hello",
	}
	if err := store.SaveMessage(context.Background(), msg); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}
	if msg.ID == "" {
		t.Error("expected a generated message id")
	}
	if msg.SentAt.IsZero() {
		t.Error("expected a stamped sent_at")
	}
}

func TestGetMessages_NewestFirstAndPaginated(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := mustTime(t, "2026-03-01T10:00:00Z")

	for i := 0; i < 5; i++ {
		msg := &Message{
			ID:             fmt.Sprintf("msg-%d", i),
			ConversationID: "conv-1",
			SenderID:       "user-1",
			Content:        fmt.Sprintf("message %d", i),
			SentAt:         base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	got, err := store.GetMessages(ctx, "conv-1", 2, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].ID != "msg-4" || got[1].ID != "msg-3" {
		t.Errorf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}

	page2, err := store.GetMessages(ctx, "conv-1", 2, 2)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(page2) != 2 || page2[0].ID != "msg-2" {
		t.Errorf("pagination mismatch: got %+v", page2)
	}
}

func TestGetMessages_OtherConversationExcluded(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveMessage(ctx, &Message{ConversationID: "conv-1", SenderID: "u", Content: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveMessage(ctx, &Message{ConversationID: "conv-2", SenderID: "u", Content: "b"}); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetMessages(ctx, "conv-1", 10, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 message, got %d", len(got))
	}
}

func TestSaveGameSession_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	session := &GameSession{
		GameID:       "g1",
		HostID:       "host-1",
		Participants: []string{"user-1", "user-2"},
		StartsAt:     mustTime(t, "2026-03-07T19:00:00Z"),
		Status:       "scheduled",
	}
	if err := store.SaveGameSession(ctx, session); err != nil {
		t.Fatalf("SaveGameSession failed: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected a generated session id")
	}

	sessions, err := store.ListGameSessions(ctx, "host-1", "")
	if err != nil {
		t.Fatalf("ListGameSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if len(got.Participants) != 2 || got.Participants[0] != "user-1" {
		t.Errorf("participants mismatch: got %v", got.Participants)
	}
	if !got.StartsAt.Equal(session.StartsAt) {
		t.Errorf("start time mismatch: got %v", got.StartsAt)
	}
}

func TestListGameSessions_SortedByStartAscending(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := mustTime(t, "2026-03-01T10:00:00Z")

	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		session := &GameSession{
			ID:       fmt.Sprintf("sess-%d", i),
			GameID:   "g1",
			HostID:   "host-1",
			StartsAt: base.Add(offset),
		}
		if err := store.SaveGameSession(ctx, session); err != nil {
			t.Fatalf("SaveGameSession failed: %v", err)
		}
	}

	sessions, err := store.ListGameSessions(ctx, "", "g1")
	if err != nil {
		t.Fatalf("ListGameSessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "sess-1" || sessions[1].ID != "sess-2" || sessions[2].ID != "sess-0" {
		t.Errorf("order mismatch: got %s, %s, %s", sessions[0].ID, sessions[1].ID, sessions[2].ID)
	}
}

func TestSaveGameLibraryItem_AndGetLibrary(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	item := &GameLibraryItem{
		UserID: "user-1",
		GameID: "g1",
		Title:  "Chess",
	}
	if err := store.SaveGameLibraryItem(ctx, item); err != nil {
		t.Fatalf("SaveGameLibraryItem failed: %v", err)
	}
	if item.ID == "" {
		t.Error("expected a generated item id")
	}

	// Upsert keeps a single row
	item.Title = "Chess (2nd edition)"
	if err := store.SaveGameLibraryItem(ctx, item); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	items, err := store.GetGameLibrary(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetGameLibrary failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Chess (2nd edition)" {
		t.Errorf("title mismatch: got %q", items[0].Title)
	}

	other, err := store.GetGameLibrary(ctx, "user-2")
	if err != nil {
		t.Fatalf("GetGameLibrary failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected empty library for other user, got %d", len(other))
	}
}

func TestSaveAndGetUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := &UserSnapshot{
		ID:          "user-1",
		Username:    "alice",
		DisplayName: "Alice",
		AvatarURL:   "https://example.com/a.png",
	}
	if err := store.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "alice" || got.DisplayName != "Alice" {
		t.Errorf("snapshot mismatch: %+v", got)
	}
	if got.LastUpdated.IsZero() {
		t.Error("expected a stamped last_updated")
	}

	if _, err := store.GetUser(ctx, "nope"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.SetAppState(ctx, "theme", []byte(`"dark"`)); err != nil {
		t.Fatalf("SetAppState failed: %v", err)
	}
	if err := store.SetAppState(ctx, "theme", []byte(`"light"`)); err != nil {
		t.Fatalf("SetAppState overwrite failed: %v", err)
	}

	got, err := store.GetAppState(ctx, "theme")
	if err != nil {
		t.Fatalf("GetAppState failed: %v", err)
	}
	if string(got) != `"light"` {
		t.Errorf("value mismatch: got %s", got)
	}

	if err := store.DeleteAppState(ctx, "theme"); err != nil {
		t.Fatalf("DeleteAppState failed: %v", err)
	}
	if _, err := store.GetAppState(ctx, "theme"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestClearDomainData_PreservesQueue(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := mustTime(t, "2026-03-01T10:00:00Z")

	if err := store.SaveMessage(ctx, &Message{ConversationID: "c", SenderID: "u", Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetAppState(ctx, "k", []byte(`1`)); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertCacheEntry(ctx, &CacheEntry{Store: "s", ID: "i", Payload: []byte(`1`), ExpiresAt: now.Add(time.Hour), LastUpdated: now}); err != nil {
		t.Fatal(err)
	}
	queueID := enqueueTestItem(t, store, 1, now)

	if err := store.ClearDomainData(ctx); err != nil {
		t.Fatalf("ClearDomainData failed: %v", err)
	}

	msgs, err := store.GetMessages(ctx, "c", 10, 0)
	if err != nil || len(msgs) != 0 {
		t.Errorf("messages should be cleared, got %d (%v)", len(msgs), err)
	}
	if _, err := store.GetAppState(ctx, "k"); err != ErrNotFound {
		t.Errorf("app state should be cleared, got %v", err)
	}
	if _, err := store.GetCacheEntry(ctx, "s", "i"); err != ErrNotFound {
		t.Errorf("cache should be cleared, got %v", err)
	}

	// Pending work survives a local reset
	if _, err := store.GetQueueItem(ctx, queueID); err != nil {
		t.Errorf("queue must survive ClearDomainData: %v", err)
	}
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "sharkchat.db")
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening an existing database applies nothing new.
	db, err = Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.migrate())

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"conversations", "messages", "call_attempts"} {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- ConversationStore contract, run against both implementations ---

func stores(t *testing.T) map[string]ConversationStore {
	return map[string]ConversationStore{
		"sqlite": NewSQLiteStore(testDB(t)),
		"memory": NewMemoryStore(),
	}
}

func newSession(id string, created time.Time) domain.Session {
	return domain.Session{
		ID:        id,
		Key:       domain.SessionKey{ChannelID: "web", ChatID: id},
		State:     domain.StateWelcome,
		Context:   domain.SessionContext{SessionID: id},
		CreatedAt: created,
	}
}

func TestConversationStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, s.Create(ctx, newSession("session-a", created)))

			got, err := s.Get(ctx, "session-a")
			require.NoError(t, err)
			assert.Equal(t, "session-a", got.ID)
			assert.Equal(t, "web", got.Key.ChannelID)
			assert.Equal(t, domain.StateWelcome, got.State)
			assert.True(t, created.Equal(got.CreatedAt))
			assert.Nil(t, got.ClosedAt)
			assert.Empty(t, got.Messages)
		})
	}
}

func TestConversationStore_GetNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestConversationStore_AppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, newSession("session-b", time.Now())))

			require.NoError(t, s.Append(ctx, "session-b",
				domain.BotPrompt("Welcome to Shark Unlock. Are you an existing customer or new customer?", domain.QuickReply("Yes", "No")),
				domain.UserMessage("yes"),
			))
			require.NoError(t, s.Append(ctx, "session-b", domain.BotMessage("Please enter your 10-digit phone number.")))

			got, err := s.Get(ctx, "session-b")
			require.NoError(t, err)
			require.Len(t, got.Messages, 3)
			assert.Equal(t, domain.OriginBot, got.Messages[0].Origin)
			assert.Equal(t, []string{"Yes", "No"}, got.Messages[0].Action.Labels())
			assert.Equal(t, "yes", got.Messages[1].Text)
			assert.Nil(t, got.Messages[1].Action)
			assert.Equal(t, "Please enter your 10-digit phone number.", got.Messages[2].Text)
			assert.False(t, got.Messages[2].Timestamp.IsZero())
		})
	}
}

func TestConversationStore_AppendUnknown(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Append(context.Background(), "missing", domain.UserMessage("hi"))
			assert.Error(t, err)
		})
	}
}

func TestConversationStore_SaveState(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, newSession("session-c", time.Now())))

			sc := domain.SessionContext{SessionID: "session-c", CapturedZip: "94105", CapturedPhone: "5551234567"}
			require.NoError(t, s.SaveState(ctx, "session-c", domain.StateExistingCustomerZip, sc))

			got, err := s.Get(ctx, "session-c")
			require.NoError(t, err)
			assert.Equal(t, domain.StateExistingCustomerZip, got.State)
			assert.Equal(t, sc, got.Context)

			assert.ErrorIs(t, s.SaveState(ctx, "missing", domain.StateWelcome, sc), ErrNotFound)
		})
	}
}

func TestConversationStore_EndKeepsFirstClose(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, newSession("session-d", time.Now())))

			first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, s.End(ctx, "session-d", first))
			require.NoError(t, s.End(ctx, "session-d", first.Add(time.Hour)))

			got, err := s.Get(ctx, "session-d")
			require.NoError(t, err)
			require.NotNil(t, got.ClosedAt)
			assert.True(t, first.Equal(*got.ClosedAt))
		})
	}
}

func TestConversationStore_List(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, newSession("older", base)))
			require.NoError(t, s.Create(ctx, newSession("newer", base.Add(time.Minute))))
			require.NoError(t, s.Create(ctx, newSession("oldest", base.Add(-time.Minute))))

			all, err := s.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "newer", all[0].ID)
			assert.Equal(t, "older", all[1].ID)
			assert.Equal(t, "oldest", all[2].ID)

			limited, err := s.List(ctx, 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)
		})
	}
}

func TestConversationStore_CallAttempts(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, newSession("session-e", at)))

			first, err := s.StartCall(ctx, "session-e", at)
			require.NoError(t, err)
			require.NoError(t, s.FinishCall(ctx, first, domain.CallFailed, "timeout", at.Add(10*time.Second)))

			second, err := s.StartCall(ctx, "session-e", at.Add(time.Minute))
			require.NoError(t, err)
			require.NoError(t, s.FinishCall(ctx, second, domain.CallConnected, "", at.Add(time.Minute+3*time.Second)))

			calls, err := s.Calls(ctx, "session-e")
			require.NoError(t, err)
			require.Len(t, calls, 2)

			assert.Equal(t, domain.CallFailed, calls[0].Status)
			assert.Equal(t, "timeout", calls[0].Reason)
			require.NotNil(t, calls[0].EndedAt)
			assert.True(t, at.Add(10*time.Second).Equal(*calls[0].EndedAt))

			assert.Equal(t, domain.CallConnected, calls[1].Status)
			assert.Nil(t, calls[1].EndedAt, "connected is not terminal")

			assert.ErrorIs(t, s.FinishCall(ctx, 9999, domain.CallEnded, "", at), ErrNotFound)
		})
	}
}

func TestConversationStore_Prune(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			stale := newSession("stale", now.Add(-48*time.Hour))
			require.NoError(t, s.Create(ctx, stale))
			_, err := s.StartCall(ctx, "stale", stale.CreatedAt)
			require.NoError(t, err)

			require.NoError(t, s.Create(ctx, newSession("fresh", now)))
			require.NoError(t, s.Append(ctx, "fresh", domain.UserMessage("hello")))

			n, err := s.Prune(ctx, now.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = s.Get(ctx, "stale")
			assert.ErrorIs(t, err, ErrNotFound)
			calls, err := s.Calls(ctx, "stale")
			require.NoError(t, err)
			assert.Empty(t, calls)

			fresh, err := s.Get(ctx, "fresh")
			require.NoError(t, err)
			assert.Len(t, fresh.Messages, 1)
		})
	}
}

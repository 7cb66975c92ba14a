package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yaaesthetic/agno/memory"
	"github.com/Yaaesthetic/agno/state"
	"github.com/Yaaesthetic/agno/storage"
)

func openTest(t *testing.T, optFns ...func(o *Options)) *Store {
	t.Helper()

	s, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "agno.db"), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"sqlite3": SQLite, "PostgreSQL": Postgres, "mysql": MySQL} {
		d, err := ParseDialect(in)
		require.NoError(t, err)
		assert.Equal(t, want, d)
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)
	assert.Equal(t, "sqlite3", SQLite.DriverName())
	assert.Equal(t, "postgres", Postgres.DriverName())
}

func TestRebindAndUpsert(t *testing.T) {
	pg := &Store{dialect: Postgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Store{dialect: SQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))

	assert.Equal(t,
		"INSERT INTO s (name, data) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET data = excluded.data",
		lite.upsert("s", []string{"name", "data"}, []string{"name"}, []string{"data"}))

	my := &Store{dialect: MySQL}
	assert.Equal(t,
		"INSERT INTO s (name, data) VALUES (?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data)",
		my.upsert("s", []string{"name", "data"}, []string{"name"}, []string{"data"}))
}

func TestOptionsValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(context.Background(), SQLite, filepath.Join(dir, "a.db"), func(o *Options) { o.Table = "bad-name;" })
	assert.ErrorContains(t, err, "invalid table prefix")

	_, err = Open(context.Background(), SQLite, filepath.Join(dir, "b.db"), func(o *Options) { o.Schema = "ai" })
	assert.ErrorContains(t, err, "only supported on postgres")

	pg := &Store{opts: Options{Table: "agno", Schema: "ai"}}
	assert.Equal(t, "ai.agno_runs", pg.table("runs"))
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendRun(ctx, storage.Run{
			ID:        fmt.Sprintf("r%d", i),
			SessionID: "s1",
			UserID:    "u1",
			Owner:     "Shopping List Team",
			Mode:      storage.ModeTeam,
			Input:     fmt.Sprintf("q%d", i),
			Output:    fmt.Sprintf("a%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	require.NoError(t, s.AppendRun(ctx, storage.Run{
		ID:        "x",
		SessionID: "s2",
		UserID:    "u1",
		Owner:     "other",
		Mode:      storage.ModeAgent,
		ToolCalls: []storage.ToolCall{{ID: "call_1", Name: "add_item", Arguments: `{"product_name":"bread"}`, Result: "ok"}},
		CreatedAt: base.Add(time.Hour),
	}))

	all, err := s.Runs(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "r0", all[0].ID)
	assert.Equal(t, base, all[0].CreatedAt)
	assert.Nil(t, all[0].ToolCalls)

	last, err := s.Runs(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "r3", last[0].ID)
	assert.Equal(t, "a4", last[1].Output)

	other, err := s.Runs(ctx, "s2", 0)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "add_item", other[0].ToolCalls[0].Name)

	none, err := s.Runs(ctx, "missing", 3)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	infos, err := s.Sessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "s2", infos[0].SessionID)
	assert.Equal(t, "s1", infos[1].SessionID)
	assert.Equal(t, 5, infos[1].Runs)
	assert.Equal(t, base.Add(4*time.Minute), infos[1].UpdatedAt)

	require.NoError(t, s.DeleteSession(ctx, "s1"))
	assert.ErrorIs(t, s.DeleteSession(ctx, "s1"), storage.ErrSessionNotFound)

	n, err := s.PruneRuns(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_Memories(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, func(o *Options) { o.Table = "fin" })

	mgr := memory.NewManager(s)

	firstID, err := mgr.AddUserMemory(ctx, "u1", "Likes index funds", []string{"investing"})
	require.NoError(t, err)
	_, err = mgr.AddUserMemory(ctx, "u1", "Lives in Lisbon", nil)
	require.NoError(t, err)

	mems, err := s.UserMemories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mems, 2)
	assert.Equal(t, "Lives in Lisbon", mems[0].Memory)
	assert.Equal(t, []string{"investing"}, mems[1].Topics)

	// replacing keeps the position
	first := mems[1]
	assert.Equal(t, firstID, first.ID)
	first.Memory = "Likes ETFs"
	require.NoError(t, s.UpsertUserMemory(ctx, first))

	mems, err = s.UserMemories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mems, 2)
	assert.Equal(t, "Likes ETFs", mems[1].Memory)

	require.NoError(t, s.DeleteUserMemory(ctx, "u1", first.ID))
	assert.ErrorIs(t, s.DeleteUserMemory(ctx, "u1", first.ID), memory.ErrMemoryNotFound)

	_, ok, err := s.Summary(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.UpsertSummary(ctx, memory.SessionSummary{UserID: "u1", SessionID: "s1", Summary: "v1"}))
	require.NoError(t, s.UpsertSummary(ctx, memory.SessionSummary{UserID: "u1", SessionID: "s1", Summary: "v2", Topics: []string{"etf"}}))

	sum, ok, err := s.Summary(ctx, "u1", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", sum.Summary)
	assert.Equal(t, []string{"etf"}, sum.Topics)

	require.NoError(t, s.ClearUser(ctx, "u1"))

	mems, err = s.UserMemories(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, mems)

	_, ok, err = s.Summary(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_StatePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(ctx, SQLite, path)
	require.NoError(t, err)

	_, err = s.LoadState(ctx, "shopping")
	assert.ErrorIs(t, err, state.ErrSnapshotNotFound)

	store := state.NewStore[string]()
	store.InitSession("u1", "s1")
	_, err = store.Add("u1", "s1", "bread")
	require.NoError(t, err)

	require.NoError(t, state.Save(ctx, s, "shopping", store))
	require.NoError(t, s.Close())

	// reopen the file to prove the snapshot outlives the connection
	s, err = Open(ctx, SQLite, path)
	require.NoError(t, err)
	defer s.Close()

	restored := state.NewStore[string]()
	ok, err := state.Load(ctx, s, "shopping", restored)
	require.NoError(t, err)
	require.True(t, ok)

	items, err := restored.List("u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bread"}, items)
	assert.Equal(t, 1, restored.Count("u1"))
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/collineage/pkg/lineage"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err, "failed to open store")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock makes each call return a time one second after the previous.
func fixedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func extract(t *testing.T, sql string, opts ...lineage.Option) *lineage.Result {
	t.Helper()
	res, err := lineage.New(opts...).Extract(sql)
	require.NoError(t, err)
	return res
}

func TestSQLiteStore_OpenCreatesSchema(t *testing.T) {
	s := setupTestStore(t)

	for _, table := range []string{"extractions", "extraction_columns"} {
		rows, err := s.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s does not exist", table)
		_ = rows.Close()
	}

	version, err := s.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestSQLiteStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Close())

	// Reopening runs no new migrations and keeps data.
	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	list, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sql := "SELECT a.x AS X, COUNT(a.y) AS CNT FROM tbl a"
	res := extract(t, sql)

	saved, err := s.Save(ctx, sql, res)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "shallow", saved.Mode)
	assert.Equal(t, 2, saved.ColumnCount)

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, sql, got.SQL)
	assert.Equal(t, []string{"tbl"}, got.SourceTables)
	assert.Equal(t, res.Records, got.Records)
	assert.True(t, saved.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", saved.CreatedAt, got.CreatedAt)
}

func TestSQLiteStore_SaveDeepMode(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sql := "SELECT t0.id FROM (SELECT id FROM base) t0"
	saved, err := s.Save(ctx, sql, extract(t, sql, lineage.WithMode(lineage.ModeDeep)))
	require.NoError(t, err)

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "deep", got.Mode)
	assert.Equal(t, []string{"base"}, got.Records[0].SourceTables)
}

func TestSQLiteStore_List(t *testing.T) {
	s := setupTestStore(t)
	s.now = fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	ctx := context.Background()

	var ids []string
	for _, sql := range []string{
		"SELECT a FROM t1",
		"SELECT a, b FROM t2",
		"SELECT a, b, c FROM t3",
	} {
		e, err := s.Save(ctx, sql, extract(t, sql))
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "all", limit: 0, want: []string{ids[2], ids[1], ids[0]}},
		{name: "limited", limit: 2, want: []string{ids[2], ids[1]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.List(ctx, tt.limit)
			require.NoError(t, err)
			got := make([]string, len(list))
			for i, e := range list {
				got[i] = e.ID
				assert.Nil(t, e.Records, "list does not load records")
			}
			assert.Equal(t, tt.want, got)
		})
	}

	list, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, list[0].ColumnCount)
	assert.Equal(t, []string{"t3"}, list[0].SourceTables)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sql := "SELECT a, b FROM t"
	e, err := s.Save(ctx, sql, extract(t, sql))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, e.ID))

	_, err = s.Get(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM extraction_columns").Scan(&n))
	assert.Zero(t, n, "columns are deleted with their extraction")

	err = s.Delete(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_GetUnknown(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestSQLiteStore_SaveNil(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Save(context.Background(), "SELECT 1 FROM t", nil)
	assert.Error(t, err)
}

func TestSQLiteStore_NotOpen(t *testing.T) {
	s := &SQLiteStore{}
	ctx := context.Background()

	_, err := s.Save(ctx, "", &lineage.Result{})
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.List(ctx, 0)
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, s.Delete(ctx, "x"), ErrNotOpen)
	assert.ErrorIs(t, s.Migrate(ctx), ErrNotOpen)
	assert.NoError(t, s.Close())
}

func TestBuildDSN(t *testing.T) {
	mem := buildDSN(":memory:")
	assert.Contains(t, mem, "file::memory:?")
	assert.Contains(t, mem, "foreign_keys%281%29")
	assert.NotContains(t, mem, "journal_mode")

	file := buildDSN("/tmp/h.db")
	assert.Contains(t, file, "file:/tmp/h.db?")
	assert.Contains(t, file, "journal_mode%28WAL%29")
}

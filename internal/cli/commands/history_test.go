package commands

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitestutil "github.com/leapstack-labs/collineage/internal/cli/testutil"
	"github.com/leapstack-labs/collineage/internal/config"
	"github.com/leapstack-labs/collineage/internal/store"
	"github.com/leapstack-labs/collineage/pkg/lineage"
)

// seedHistory saves one extraction per statement under cfg.StatePath and
// returns their IDs.
func seedHistory(t *testing.T, cfg *config.Config, statements ...string) []string {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg.StatePath)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	ex := lineage.New()
	ids := make([]string, 0, len(statements))
	for _, sql := range statements {
		res, err := ex.Extract(sql)
		require.NoError(t, err)
		e, err := st.Save(ctx, sql, res)
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	return ids
}

func TestHistory_List(t *testing.T) {
	cfg := testConfig(t, "json")
	ids := seedHistory(t, cfg, "SELECT a FROM t", "SELECT b, MAX(c) AS m FROM u")

	out, _, err := runCommand(t, NewHistoryCommand(), cfg, "", "list")
	require.NoError(t, err)

	var list []store.Extraction
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.ElementsMatch(t, ids, []string{list[0].ID, list[1].ID})
	for _, e := range list {
		assert.Empty(t, e.Records, "list does not load records")
	}

	out, _, err = runCommand(t, NewHistoryCommand(), cfg, "", "list", "--limit", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 1)
}

func TestHistory_ListTable(t *testing.T) {
	cfg := testConfig(t, "table")

	out, _, err := runCommand(t, NewHistoryCommand(), cfg, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved extractions")

	ids := seedHistory(t, cfg, "SELECT a FROM t")
	out, _, err = runCommand(t, NewHistoryCommand(), cfg, "", "list")
	require.NoError(t, err)
	clitestutil.AssertNoANSI(t, out)
	assert.Contains(t, out, ids[0])
	assert.Contains(t, out, "SELECT a FROM t")
	assert.Contains(t, out, "shallow")
}

func TestHistory_ListCSVUnsupported(t *testing.T) {
	cfg := testConfig(t, "csv")
	_, _, err := runCommand(t, NewHistoryCommand(), cfg, "", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported for history")
}

func TestHistory_Show(t *testing.T) {
	cfg := testConfig(t, "json")
	ids := seedHistory(t, cfg, "SELECT b, MAX(c) AS m FROM u")

	out, _, err := runCommand(t, NewHistoryCommand(), cfg, "", "show", ids[0])
	require.NoError(t, err)

	var e store.Extraction
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, ids[0], e.ID)
	assert.Equal(t, []string{"u"}, e.SourceTables)
	require.Len(t, e.Records, 2)
	assert.Equal(t, "MAX(c)", e.Records[1].ProcessingLogic)
}

func TestHistory_ShowMarkdown(t *testing.T) {
	cfg := testConfig(t, "markdown")
	ids := seedHistory(t, cfg, "SELECT b FROM u")

	out, _, err := runCommand(t, NewHistoryCommand(), cfg, "", "show", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "## Extraction "+ids[0])
	assert.Contains(t, out, "SELECT b FROM u")
	assert.Contains(t, out, "| b | b | u | none |")
}

func TestHistory_Delete(t *testing.T) {
	cfg := testConfig(t, "json")
	ids := seedHistory(t, cfg, "SELECT a FROM t")

	out, _, err := runCommand(t, NewHistoryCommand(), cfg, "", "delete", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+ids[0])

	_, _, err = runCommand(t, NewHistoryCommand(), cfg, "", "show", ids[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, _, err = runCommand(t, NewHistoryCommand(), cfg, "", "delete", ids[0])
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestPreviewSQL(t *testing.T) {
	assert.Equal(t, "SELECT a FROM t", previewSQL("SELECT a\n   FROM\tt"))

	long := previewSQL("SELECT " + strings.Repeat("é", 70) + " FROM t")
	assert.Len(t, []rune(long), sqlPreviewWidth)
	assert.True(t, len(long) > sqlPreviewWidth, "multi-byte runes are kept whole")
	assert.Equal(t, "...", long[len(long)-3:])
}

package cli

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgstitch/internal/db"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

func TestRunLoad_SQLite(t *testing.T) {
	resetFlags(t)
	dir := writeProfitFiles(t)
	dbPath := filepath.Join(t.TempDir(), "out.db")
	loadFlags.conn.connection = "sqlite://" + dbPath
	loadFlags.table = "sales"
	stdout, _ := captureOutput(t, loadCmd)

	require.NoError(t, runLoad(loadCmd, []string{dir}))

	out := stdout.String()
	assert.Contains(t, out, "4 row(s) into new table sales")
	assert.Contains(t, out, "2022.csv")
	assert.Contains(t, out, "policy fail")

	conn, err := db.OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	defer conn.Close()

	var count, nullProfit2 int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM "sales"`).Scan(&count))
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM "sales" WHERE "profit2" IS NULL`).Scan(&nullProfit2))
	assert.Equal(t, 4, count)
	assert.Equal(t, 3, nullProfit2)

	var profit2 sql.NullString
	require.NoError(t, conn.QueryRow(`SELECT "profit2" FROM "sales" WHERE "date" = '2024-01-01'`).Scan(&profit2))
	assert.Equal(t, sql.NullString{String: "21", Valid: true}, profit2)
}

func TestRunLoad_FailPolicyOnSecondRun(t *testing.T) {
	resetFlags(t)
	dir := writeProfitFiles(t)
	dbPath := filepath.Join(t.TempDir(), "out.db")
	loadFlags.conn.connection = "sqlite://" + dbPath
	loadFlags.table = "sales"
	captureOutput(t, loadCmd)

	require.NoError(t, runLoad(loadCmd, []string{dir}))

	failOut, _ := captureOutput(t, loadCmd)
	err := runLoad(loadCmd, []string{dir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgstitch.ErrTableExists), "got %v", err)
	assert.NotContains(t, failOut.String(), "into existing table")
	assert.Equal(t, pgstitch.ExitSchemaConflict, pgstitch.ExitCodeForError(err))

	loadFlags.ifExists = "append"
	stdout, _ := captureOutput(t, loadCmd)
	require.NoError(t, runLoad(loadCmd, []string{dir}))
	assert.Contains(t, stdout.String(), "4 row(s) into existing table sales")
}

func TestRunLoad_DryRunNeedsNoConnection(t *testing.T) {
	resetFlags(t)
	dir := writeProfitFiles(t)
	loadFlags.dryRun = true
	loadFlags.table = "sales"
	stdout, _ := captureOutput(t, loadCmd)

	require.NoError(t, runLoad(loadCmd, []string{dir}))
	assert.Contains(t, stdout.String(), "dry run: 4 row(s) in 3 batch(es) from 3 file(s)")
}

func TestRunLoad_UnreadableFileIsReported(t *testing.T) {
	resetFlags(t)
	dir := writeProfitFiles(t)
	loadFlags.dryRun = true
	stdout, _ := captureOutput(t, loadCmd)

	missing := filepath.Join(dir, "missing.csv")
	require.NoError(t, runLoad(loadCmd, []string{dir, missing}))
	out := stdout.String()
	assert.Contains(t, out, "skipped "+missing)
	assert.Contains(t, out, "from 3 file(s)")
}

func TestRunLoad_InvalidPolicy(t *testing.T) {
	resetFlags(t)
	dir := writeProfitFiles(t)
	loadFlags.dryRun = true
	loadFlags.ifExists = "truncate"
	captureOutput(t, loadCmd)

	err := runLoad(loadCmd, []string{dir})
	require.Error(t, err)
	assert.Equal(t, pgstitch.ExitConfigError, pgstitch.ExitCodeForError(err))
}

func TestRunLoad_NoReadableFiles(t *testing.T) {
	resetFlags(t)
	loadFlags.dryRun = true
	loadFlags.table = "sales"
	captureOutput(t, loadCmd)

	err := runLoad(loadCmd, []string{filepath.Join(t.TempDir(), "nope.csv")})
	require.Error(t, err)
	assert.Equal(t, pgstitch.ExitNoInput, pgstitch.ExitCodeForError(err))
	assert.True(t, strings.HasPrefix(err.Error(), "load failed:"), err.Error())
}

func TestSelectApprover(t *testing.T) {
	assert.NotNil(t, selectApprover(true, false))
	assert.NotNil(t, selectApprover(false, true))
}

package migration

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyRunsInOrder(t *testing.T) {
	db := openTestDB(t)
	migrations := []Migration{
		{Name: "0002_add_col", SQL: `ALTER TABLE widgets ADD COLUMN tag TEXT`},
		{Name: "0001_init", SQL: `CREATE TABLE widgets (id INTEGER PRIMARY KEY)`},
	}

	m := New(db, migrations)
	require.NoError(t, m.Apply(context.Background()))

	_, err := db.Exec(`INSERT INTO widgets (id, tag) VALUES (1, 'x')`)
	require.NoError(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	migrations := []Migration{
		{Name: "0001_init", SQL: `CREATE TABLE widgets (id INTEGER PRIMARY KEY)`},
	}

	m := New(db, migrations)
	require.NoError(t, m.Apply(context.Background()))
	require.NoError(t, m.Apply(context.Background())) // re-running must not re-execute the CREATE TABLE
}

func TestApplyRecordsAppliedMigrations(t *testing.T) {
	db := openTestDB(t)
	m := New(db, []Migration{{Name: "0001_init", SQL: `CREATE TABLE widgets (id INTEGER PRIMARY KEY)`}})
	require.NoError(t, m.Apply(context.Background()))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM migrations WHERE name = ?`, "0001_init").Scan(&count))
	require.Equal(t, 1, count)
}

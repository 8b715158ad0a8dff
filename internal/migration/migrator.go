// Package migration applies the embedded schema migrations for the Store's
// sqlite database: an ordered, idempotent sequence of Go-literal statements,
// each recorded by name once applied.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration is one named, ordered schema change. Name must sort
// lexicographically in application order (e.g. "0001_init", "0002_...").
type Migration struct {
	Name string
	SQL  string
}

// Migrator applies Migrations against a sqlite *sql.DB, tracking which have
// already run in a `migrations` table.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
}

// New returns a Migrator over db for the given ordered migration list.
func New(db *sql.DB, migrations []Migration) *Migrator {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Migrator{db: db, migrations: sorted}
}

// Apply runs every migration not yet recorded, in lexicographic name order,
// each inside its own transaction. It is safe to call on every process
// start — already-applied migrations are skipped (spec §4.1).
func (m *Migrator) Apply(ctx context.Context) error {
	if err := m.ensureTrackingTable(ctx); err != nil {
		return fmt.Errorf("ensuring migrations table: %w", err)
	}

	applied, err := m.appliedNames(ctx)
	if err != nil {
		return fmt.Errorf("loading applied migrations: %w", err)
	}

	for _, mig := range m.migrations {
		if applied[mig.Name] {
			continue
		}
		if err := m.applyOne(ctx, mig); err != nil {
			return fmt.Errorf("migration %s: %w", mig.Name, err)
		}
	}
	return nil
}

func (m *Migrator) ensureTrackingTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL
)`
	_, err := m.db.ExecContext(ctx, ddl)
	return err
}

func (m *Migrator) appliedNames(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT name FROM migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) applyOne(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO migrations (name, applied_at) VALUES (?, ?)`,
		mig.Name, time.Now().UTC(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

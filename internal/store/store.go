// Package store is the single-writer transactional persistence layer for
// Projects, Conversations, ConversationMessages, ProjectFiles,
// ContentChunks, and the RetrievalIndex (spec §4.1).
//
// Building against this package requires the "sqlite_fts5" build tag
// (go build -tags sqlite_fts5 ./...) so mattn/go-sqlite3 compiles in the
// FTS5 extension the retrieval_index virtual table depends on.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "turn-orchestrator/internal/errors"
	"turn-orchestrator/internal/logging"
	"turn-orchestrator/internal/migration"
)

// Store wraps the embedded sqlite database.
type Store struct {
	db     *sql.DB
	log    logging.Logger
	maxTry int
}

// Config is the subset of internal/config.StoreConfig the Store needs,
// kept narrow so this package does not import internal/config.
type Config struct {
	Path        string
	BusyTimeout time.Duration
	JournalMode string
	SyncMode    string
}

// Open creates (if needed) and migrates the sqlite database at cfg.Path,
// then seeds the default project if one is not already recorded.
func Open(ctx context.Context, cfg Config, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.WithComponent("store")
	}

	busyMS := cfg.BusyTimeout.Milliseconds()
	if busyMS <= 0 {
		busyMS = 5000
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=%s&_synchronous=%s&_foreign_keys=on",
		cfg.Path, busyMS, orDefault(cfg.JournalMode, "WAL"), orDefault(cfg.SyncMode, "NORMAL"))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer embedded engine, per spec §5

	s := &Store{db: db, log: log, maxTry: 5}

	m := migration.New(db, Migrations)
	if err := m.Apply(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	if err := s.ensureDefaultProject(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seeding default project: %w", err)
	}
	return s, nil
}

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, retrying with exponential backoff on
// SQLITE_BUSY (lock-wait timeout) before surfacing a Conflict (spec §4.1).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	backoff := 10 * time.Millisecond

	for attempt := 0; attempt < s.maxTry; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			if isBusy(err) {
				lastErr = err
				time.Sleep(jitter(backoff))
				backoff *= 2
				continue
			}
			return fmt.Errorf("begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isBusy(err) {
				lastErr = err
				time.Sleep(jitter(backoff))
				backoff *= 2
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				lastErr = err
				time.Sleep(jitter(backoff))
				backoff *= 2
				continue
			}
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	}
	return apperrors.NewConflictError(fmt.Sprintf("lock-wait timeout exceeded: %v", lastErr))
}

func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)+1))
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func (s *Store) ensureDefaultProject(ctx context.Context) error {
	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = ?`, DefaultProjectSettingKey).Scan(&existing)
	if err == nil && existing != "" {
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	now := time.Now().UTC()
	id := NewID()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, description, settings, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, "default", "default project, seeded at first boot", "{}", now, now,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO app_settings (key, value) VALUES (?, ?)`, DefaultProjectSettingKey, id)
		return err
	})
}

// DefaultProjectID returns the id of the auto-seeded default project.
func (s *Store) DefaultProjectID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = ?`, DefaultProjectSettingKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NewNotFoundError("default project setting", DefaultProjectSettingKey)
	}
	return id, err
}

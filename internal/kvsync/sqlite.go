package kvsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/workhub/internal/logger"
)

// defaultPollInterval is how often Watch looks for new revisions.
const defaultPollInterval = 500 * time.Millisecond

const upsertEntry = `
	INSERT INTO kv_entries (key, value, origin, revision, updated_at)
	VALUES (?, ?, ?, (SELECT COALESCE(MAX(revision), 0) + 1 FROM kv_entries), ?)
	ON CONFLICT(key) DO UPDATE SET
		value      = excluded.value,
		origin     = excluded.origin,
		revision   = excluded.revision,
		updated_at = excluded.updated_at`

// entryRow is a kv_entries row as read by the change poller.
type entryRow struct {
	Key      string         `db:"key"`
	Value    sql.NullString `db:"value"`
	Origin   string         `db:"origin"`
	Revision int64          `db:"revision"`
}

// SQLiteBackend implements Backend on a local SQLite database file. Every
// process opening the same file shares the entries; changes made by other
// processes are discovered by polling the revision counter.
type SQLiteBackend struct {
	db           *sqlx.DB
	pollInterval time.Duration
	logger       *slog.Logger
}

// SQLiteOption customizes a SQLiteBackend.
type SQLiteOption func(*SQLiteBackend)

// WithPollInterval sets how often Watch polls for changes.
func WithPollInterval(d time.Duration) SQLiteOption {
	return func(s *SQLiteBackend) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithSQLiteLogger sets the logger used by the change poller.
func WithSQLiteLogger(l *slog.Logger) SQLiteOption {
	return func(s *SQLiteBackend) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSQLiteBackend opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteBackend(dbPath string, opts ...SQLiteOption) (*SQLiteBackend, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode so readers in other processes are not blocked.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteBackend{
		db:           db,
		pollInterval: defaultPollInterval,
		logger:       logger.WithComponent("kvsync.sqlite"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteBackend) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// GetItem implements Backend.
func (s *SQLiteBackend) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv_entries WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key %q: %w", key, err)
	}
	return value.String, value.Valid, nil
}

// SetItem implements Backend.
func (s *SQLiteBackend) SetItem(ctx context.Context, key, value, origin string) error {
	_, err := s.db.ExecContext(ctx, upsertEntry, key, value, origin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements Backend. The row is kept as a tombstone so that
// other processes can observe the removal.
func (s *SQLiteBackend) RemoveItem(ctx context.Context, key, origin string) error {
	_, err := s.db.ExecContext(ctx, upsertEntry, key, nil, origin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("removing key %q: %w", key, err)
	}
	return nil
}

// Watch implements Backend by polling for revisions newer than the one
// current when Watch was called.
func (s *SQLiteBackend) Watch(ctx context.Context, fn func(StorageEvent)) (func(), error) {
	var last int64
	if err := s.db.GetContext(ctx, &last, "SELECT COALESCE(MAX(revision), 0) FROM kv_entries"); err != nil {
		return nil, fmt.Errorf("reading current revision: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				last = s.poll(ctx, last, fn)
			}
		}
	}()

	return cancel, nil
}

// poll emits every entry with a revision above last and returns the
// highest revision seen.
func (s *SQLiteBackend) poll(ctx context.Context, last int64, fn func(StorageEvent)) int64 {
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT key, value, origin, revision FROM kv_entries WHERE revision > ? ORDER BY revision",
		last,
	)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("polling kv changes failed", "error", err)
		}
		return last
	}

	for _, r := range rows {
		ev := StorageEvent{Key: r.Key, Origin: r.Origin}
		if r.Value.Valid {
			ev.Value = strPtr(r.Value.String)
		}
		fn(ev)
		last = r.Revision
	}
	return last
}

// Package sqlite implements locks.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	msqlite "modernc.org/sqlite"

	"go.uber.org/zap"

	"github.com/ebogdum/easylock/locks"
)

// Primary result codes that mean the database file itself is unusable
const (
	sqliteIOErr    = 10
	sqliteCantOpen = 14
	sqliteNotADB   = 26
)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	closed atomic.Bool
	now    func() time.Time
}

func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time keeps the upsert race free
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", classify(err))
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	store := &SQLiteStore{db: db, logger: logger, now: time.Now}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// SetClock replaces the time source used for expiration.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SQLiteStore) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS lock_keys (
    key_id TEXT NOT NULL PRIMARY KEY,
    key_token TEXT NOT NULL,
    key_expiration INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lock_keys_expiration ON lock_keys(key_expiration);
`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Acquire(ctx context.Context, key locks.Key, ttl time.Duration) (bool, error) {
	if s.closed.Load() {
		return false, &locks.ConnectionError{Err: locks.ErrStoreClosed}
	}

	query := `
		INSERT INTO lock_keys (key_id, key_token, key_expiration)
		VALUES (?, ?, ?)
		ON CONFLICT(key_id) DO UPDATE
		SET key_token = excluded.key_token, key_expiration = excluded.key_expiration
		WHERE lock_keys.key_expiration <= ? OR lock_keys.key_token = excluded.key_token`

	now := s.now()
	res, err := s.db.ExecContext(ctx, query, key.Resource, key.Token, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock for key %s: %w", key.Resource, classify(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read acquire result: %w", classify(err))
	}

	acquired := rows == 1
	s.logger.Debug("Lock acquire attempted",
		zap.String("key", key.Resource),
		zap.Bool("acquired", acquired))
	return acquired, nil
}

func (s *SQLiteStore) Release(ctx context.Context, key locks.Key) error {
	if s.closed.Load() {
		return &locks.ConnectionError{Err: locks.ErrStoreClosed}
	}

	query := `DELETE FROM lock_keys WHERE key_id = ? AND key_token = ?`
	if _, err := s.db.ExecContext(ctx, query, key.Resource, key.Token); err != nil {
		return fmt.Errorf("failed to release lock for key %s: %w", key.Resource, classify(err))
	}
	return nil
}

func (s *SQLiteStore) Refresh(ctx context.Context, key locks.Key, ttl time.Duration) error {
	if s.closed.Load() {
		return &locks.ConnectionError{Err: locks.ErrStoreClosed}
	}

	query := `
		UPDATE lock_keys
		SET key_expiration = ?
		WHERE key_id = ? AND key_token = ? AND key_expiration > ?`

	now := s.now()
	res, err := s.db.ExecContext(ctx, query, now.Add(ttl).UnixMilli(), key.Resource, key.Token, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to refresh lock for key %s: %w", key.Resource, classify(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read refresh result: %w", classify(err))
	}
	if rows == 0 {
		return locks.ErrNotHeld
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key locks.Key) (bool, error) {
	if s.closed.Load() {
		return false, &locks.ConnectionError{Err: locks.ErrStoreClosed}
	}

	query := `
		SELECT COUNT(1) FROM lock_keys
		WHERE key_id = ? AND key_token = ? AND key_expiration > ?`

	var count int
	if err := s.db.QueryRowContext(ctx, query, key.Resource, key.Token, s.now().UnixMilli()).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to read lock for key %s: %w", key.Resource, classify(err))
	}
	return count > 0, nil
}

// PruneExpired removes expired records and returns how many were deleted
func (s *SQLiteStore) PruneExpired(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, &locks.ConnectionError{Err: locks.ErrStoreClosed}
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM lock_keys WHERE key_expiration <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired locks: %w", classify(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read prune result: %w", classify(err))
	}
	return int(rows), nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return &locks.ConnectionError{Err: locks.ErrStoreClosed}
	}
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// classify maps file level SQLite failures to a ConnectionError carrying the
// SQLite result code.
func classify(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch code := sqliteErr.Code() & 0xff; code {
		case sqliteIOErr, sqliteCantOpen, sqliteNotADB:
			return &locks.ConnectionError{Code: code, Err: err}
		}
		return err
	}
	return locks.WrapConnError(err)
}

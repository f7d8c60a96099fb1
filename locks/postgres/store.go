// Package postgres implements locks.Store on a PostgreSQL lock_keys table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ebogdum/easylock/locks"
)

const undefinedTable = pq.ErrorCode("42P01")

// PostgresStore implements the locks.Store interface using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL lock store
func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresStoreFromDB(db, logger), nil
}

// NewPostgresStoreFromDB wraps an open database handle
func NewPostgresStoreFromDB(db *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// Acquire upserts the lock record for key
func (s *PostgresStore) Acquire(ctx context.Context, key locks.Key, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, _SQL_ACQUIRE_LOCK, key.Resource, key.Token, ttl.Seconds())
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

// Release deletes the record if it still carries our token
func (s *PostgresStore) Release(ctx context.Context, key locks.Key) error {
	if _, err := s.db.ExecContext(ctx, _SQL_RELEASE_LOCK, key.Resource, key.Token); err != nil {
		return fmt.Errorf("failed to release lock for key %s: %w", key.Resource, classify(err))
	}
	return nil
}

// Refresh extends the expiration of our live record
func (s *PostgresStore) Refresh(ctx context.Context, key locks.Key, ttl time.Duration) error {
	res, err := s.db.ExecContext(ctx, _SQL_REFRESH_LOCK, key.Resource, key.Token, ttl.Seconds())
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

// Exists reports whether our record is live
func (s *PostgresStore) Exists(ctx context.Context, key locks.Key) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, _SQL_EXISTS_LOCK, key.Resource, key.Token).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to read lock for key %s: %w", key.Resource, classify(err))
	}
	return exists, nil
}

// PruneExpired removes expired records and returns how many were deleted
func (s *PostgresStore) PruneExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, _SQL_PRUNE_EXPIRED)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired locks: %w", classify(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read prune result: %w", classify(err))
	}
	return int(rows), nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("lock_keys table missing, run migrations: %w", err)
	}
	return locks.WrapConnError(err)
}

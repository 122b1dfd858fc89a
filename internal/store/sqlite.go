package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/autopodbor/intake-bot/internal/domain"
	"github.com/autopodbor/intake-bot/internal/shared"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var _ Journal = (*SQLiteStore)(nil)

// SQLiteStore implements Journal using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the journal database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sync_dispatches (
		id TEXT PRIMARY KEY,
		identity_key TEXT NOT NULL,
		phone TEXT,
		payload_json TEXT NOT NULL,
		status TEXT NOT NULL,
		http_status INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dispatches_identity ON sync_dispatches(identity_key, created_at);
	CREATE INDEX IF NOT EXISTS idx_dispatches_created ON sync_dispatches(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordDispatch appends one delivery attempt, retrying briefly while the
// database is locked.
func (s *SQLiteStore) RecordDispatch(ctx context.Context, rec domain.DispatchRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var phone, errText any
	if rec.Phone != "" {
		phone = rec.Phone
	}
	if rec.Error != "" {
		errText = rec.Error
	}

	query := `
	INSERT INTO sync_dispatches (id, identity_key, phone, payload_json, status, http_status, error, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		http_status = excluded.http_status,
		error = excluded.error,
		duration_ms = excluded.duration_ms`

	err := shared.RetryOnConflict(ctx, 3, 50*time.Millisecond, func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.ID, rec.IdentityKey, phone, rec.PayloadJSON, string(rec.Status),
			rec.HTTPStatus, errText, rec.Duration.Milliseconds(), rec.CreatedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("record dispatch %s: %w", rec.ID, err)
	}
	return nil
}

// ListDispatches returns the most recent attempts for identityKey.
func (s *SQLiteStore) ListDispatches(ctx context.Context, identityKey string, limit int) ([]domain.DispatchRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	query := `
		SELECT id, identity_key, phone, payload_json, status, http_status, error, duration_ms, created_at
		FROM sync_dispatches
		WHERE identity_key = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, identityKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var out []domain.DispatchRecord
	for rows.Next() {
		var (
			rec        domain.DispatchRecord
			phone      sql.NullString
			errText    sql.NullString
			status     string
			durationMS int64
			createdAt  int64
		)
		if err := rows.Scan(&rec.ID, &rec.IdentityKey, &phone, &rec.PayloadJSON, &status,
			&rec.HTTPStatus, &errText, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dispatch row: %w", err)
		}
		rec.Phone = phone.String
		rec.Error = errText.String
		rec.Status = domain.DispatchStatus(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return out, nil
}

// DispatchStats aggregates all attempts by status.
func (s *SQLiteStore) DispatchStats(ctx context.Context) (domain.DispatchStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			MAX(created_at)
		FROM sync_dispatches`

	var (
		stats  domain.DispatchStats
		lastAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query,
		string(domain.DispatchDelivered), string(domain.DispatchFailed), string(domain.DispatchDropped),
	).Scan(&stats.Total, &stats.Delivered, &stats.Failed, &stats.Dropped, &lastAt)
	if err != nil {
		return domain.DispatchStats{}, fmt.Errorf("query dispatch stats: %w", err)
	}
	if lastAt.Valid {
		t := time.UnixMilli(lastAt.Int64)
		stats.LastAt = &t
	}
	return stats, nil
}

// PurgeDispatches deletes attempts older than olderThan.
func (s *SQLiteStore) PurgeDispatches(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := time.Now().Add(-olderThan).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM sync_dispatches WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("purge dispatches: %w", err)
	}
	return result.RowsAffected()
}

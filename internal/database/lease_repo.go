package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/altomsoft/aimail/pkg/models"
)

// AcquireThreadLease attempts to take the per-thread lease for workerID.
// One row exists per (org, thread key). Acquire rules:
//   - no row yet: insert a fresh lease
//   - row expired, or already held by workerID: overwrite (takeover /
//     idempotent re-entry)
//   - unexpired row held by someone else: the write is a no-op
//
// The write is a single conditional upsert so it stays atomic under
// concurrent workers; acquisition succeeds iff the re-read holder is
// workerID.
func (db *DB) AcquireThreadLease(ctx context.Context, orgID int64, threadKey, workerID string, window, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	bucketStart := now.Truncate(window)

	query := db.rebind(`
		INSERT INTO reply_thread_locks (org_id, thread_key, bucket_start, worker_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, thread_key) DO UPDATE
		SET bucket_start = excluded.bucket_start,
		    worker_id    = excluded.worker_id,
		    expires_at   = excluded.expires_at
		WHERE reply_thread_locks.worker_id = ?
		   OR reply_thread_locks.expires_at IS NULL
		   OR reply_thread_locks.expires_at <= ?
	`)
	_, err := db.ExecContext(ctx, query,
		orgID, threadKey, bucketStart, workerID, expiresAt, now,
		workerID, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert thread lease: %w", err)
	}

	var holder string
	readQuery := db.rebind(`SELECT worker_id FROM reply_thread_locks WHERE org_id = ? AND thread_key = ?`)
	err = db.GetContext(ctx, &holder, readQuery, orgID, threadKey)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read thread lease: %w", err)
	}

	return holder == workerID, nil
}

// GetThreadLease returns the current lease row, if any.
func (db *DB) GetThreadLease(ctx context.Context, orgID int64, threadKey string) (*models.ThreadLease, error) {
	var lease models.ThreadLease
	query := db.rebind(`SELECT * FROM reply_thread_locks WHERE org_id = ? AND thread_key = ?`)
	err := db.GetContext(ctx, &lease, query, orgID, threadKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread lease: %w", err)
	}
	return &lease, nil
}

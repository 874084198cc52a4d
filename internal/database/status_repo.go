package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/altomsoft/aimail/pkg/models"
)

// Heartbeat carries the fields of one worker status update. Zero-value
// optional fields are stored as-is; the row is replaced wholesale
// (latest wins).
type Heartbeat struct {
	WorkerID             string
	LastRunAt            time.Time
	LastEmailProcessedAt time.Time
	LastEmailMessageID   string
	LastThreadKey        string
	LockHealthOK         bool
	CreditsHealthOK      bool
	LastError            string
}

// UpsertWorkerStatus writes the heartbeat row for one worker identity.
func (db *DB) UpsertWorkerStatus(ctx context.Context, hb Heartbeat) error {
	var processedAt sql.NullTime
	if !hb.LastEmailProcessedAt.IsZero() {
		processedAt = sql.NullTime{Time: hb.LastEmailProcessedAt, Valid: true}
	}

	query := db.rebind(`
		INSERT INTO worker_status (worker_id, last_run_at, last_email_processed_at, last_email_message_id, last_thread_key, lock_health_ok, credits_health_ok, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (worker_id) DO UPDATE SET
			last_run_at             = excluded.last_run_at,
			last_email_processed_at = excluded.last_email_processed_at,
			last_email_message_id   = excluded.last_email_message_id,
			last_thread_key         = excluded.last_thread_key,
			lock_health_ok          = excluded.lock_health_ok,
			credits_health_ok       = excluded.credits_health_ok,
			last_error              = excluded.last_error,
			updated_at              = excluded.updated_at
	`)
	_, err := db.ExecContext(ctx, query,
		hb.WorkerID,
		hb.LastRunAt,
		processedAt,
		hb.LastEmailMessageID,
		hb.LastThreadKey,
		hb.LockHealthOK,
		hb.CreditsHealthOK,
		hb.LastError,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert worker status: %w", err)
	}
	return nil
}

// GetWorkerStatus returns the heartbeat row for one worker identity.
func (db *DB) GetWorkerStatus(ctx context.Context, workerID string) (*models.WorkerStatus, error) {
	var status models.WorkerStatus
	query := db.rebind(`SELECT * FROM worker_status WHERE worker_id = ?`)
	err := db.GetContext(ctx, &status, query, workerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worker status: %w", err)
	}
	return &status, nil
}

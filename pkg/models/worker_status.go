package models

import (
	"database/sql"
	"time"
)

// WorkerStatus is the per-worker heartbeat row, upserted with
// latest-wins semantics once per poll cycle and after every processed
// message. An external liveness probe reads it.
type WorkerStatus struct {
	ID                   int64        `db:"id"`
	WorkerID             string       `db:"worker_id"`
	LastRunAt            time.Time    `db:"last_run_at"`
	LastEmailProcessedAt sql.NullTime `db:"last_email_processed_at"`
	LastEmailMessageID   string       `db:"last_email_message_id"`
	LastThreadKey        string       `db:"last_thread_key"`
	LockHealthOK         bool         `db:"lock_health_ok"`
	CreditsHealthOK      bool         `db:"credits_health_ok"`
	LastError            string       `db:"last_error"`
	UpdatedAt            time.Time    `db:"updated_at"`
}

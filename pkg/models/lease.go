package models

import "time"

// ThreadLease is the mutual-exclusion record for one (org, thread) pair.
// Exactly one row exists per pair; ownership transfers only when the
// prior lease has expired or the requester already holds it.
type ThreadLease struct {
	ID          int64     `db:"id"`
	OrgID       int64     `db:"org_id"`
	ThreadKey   string    `db:"thread_key"`
	BucketStart time.Time `db:"bucket_start"`
	WorkerID    string    `db:"worker_id"`
	ExpiresAt   time.Time `db:"expires_at"`
	CreatedAt   time.Time `db:"created_at"`
}

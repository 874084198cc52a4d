package models

import "time"

// OrgCredits tracks a tenant's reply quota. credits_used resets daily
// when credits_reset_at falls behind the current day.
type OrgCredits struct {
	ID             int64     `db:"id"`
	OrgID          int64     `db:"org_id"`
	Plan           string    `db:"plan"`
	CreditsTotal   int       `db:"credits_total"`
	CreditsUsed    int       `db:"credits_used"`
	CreditsResetAt time.Time `db:"credits_reset_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Remaining returns the credits still available.
func (c *OrgCredits) Remaining() int {
	return c.CreditsTotal - c.CreditsUsed
}

// UsageEvent is one append-only usage ledger row.
type UsageEvent struct {
	ID        int64     `db:"id"`
	OrgID     int64     `db:"org_id"`
	Event     string    `db:"event"`
	Qty       int       `db:"qty"`
	Meta      string    `db:"meta"` // JSON object
	CreatedAt time.Time `db:"created_at"`
}

// Usage event names written by the worker.
const (
	UsageReplySent        = "reply_sent"
	UsageSMTPFailed       = "smtp_failed"
	UsageBlockedNoCredits = "blocked_no_credits"
)

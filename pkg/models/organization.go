package models

import "time"

// Subscription statuses that allow automated replies.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
)

// Organization represents one tenant's configuration. The worker only
// reads this table; billing and admin surfaces own the writes.
type Organization struct {
	ID                 int64     `db:"id"`
	Name               string    `db:"name"`
	SupportName        string    `db:"support_name"`
	SupportEmail       string    `db:"support_email"`
	Website            string    `db:"website"`
	KBText             string    `db:"kb_text"`
	SystemPrompt       string    `db:"system_prompt"`
	AutoReply          int       `db:"auto_reply"` // legacy flag, 0/1
	AutoReplyEnabled   bool      `db:"auto_reply_enabled"`
	MaxRepliesPerHour  int       `db:"max_replies_per_hour"`
	CooldownHours      int       `db:"cooldown_hours"`
	SubscriptionStatus string    `db:"subscription_status"`
	CreatedAt          time.Time `db:"created_at"`
}

// CanProcess reports whether the subscription state permits automated
// replies at all.
func (o *Organization) CanProcess() bool {
	switch o.SubscriptionStatus {
	case SubscriptionActive, SubscriptionTrialing:
		return true
	}
	return false
}

// Cooldown returns the per-thread cooldown as a duration.
func (o *Organization) Cooldown() time.Duration {
	hours := o.CooldownHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

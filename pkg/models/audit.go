package models

import "time"

// Audit turn directions.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// AuditTurn is one immutable row of the conversation audit trail. Rows
// are append-only; the worker never updates or deletes them.
type AuditTurn struct {
	ID               int64     `db:"id"`
	OrgID            int64     `db:"org_id"`
	ThreadKey        string    `db:"thread_key"`
	Direction        string    `db:"direction"`
	CustomerEmail    string    `db:"customer_email"`
	Subject          string    `db:"subject"`
	BodyText         string    `db:"body_text"`
	EmailMessageID   string    `db:"email_message_id"`
	InReplyTo        string    `db:"in_reply_to"`
	ReferencesHeader string    `db:"references_header"`
	AIModel          string    `db:"ai_model"`
	AITokensIn       int       `db:"ai_tokens_in"`
	AITokensOut      int       `db:"ai_tokens_out"`
	CreatedAt        time.Time `db:"created_at"`
}

package database

import "strings"

// The schema is shared between SQLite and Postgres; only the
// auto-increment primary key type differs per driver.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS organizations (
    id {{pk}},
    name TEXT NOT NULL,
    support_name TEXT NOT NULL DEFAULT '',
    support_email TEXT NOT NULL DEFAULT '',
    website TEXT NOT NULL DEFAULT '',
    kb_text TEXT NOT NULL DEFAULT '',
    system_prompt TEXT NOT NULL DEFAULT '',
    auto_reply INTEGER NOT NULL DEFAULT 1,
    auto_reply_enabled BOOLEAN NOT NULL DEFAULT true,
    max_replies_per_hour INTEGER NOT NULL DEFAULT 10,
    cooldown_hours INTEGER NOT NULL DEFAULT 24,
    subscription_status TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS email_accounts (
    id {{pk}},
    org_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    label TEXT NOT NULL DEFAULT 'Primary',
    email TEXT NOT NULL,
    imap_host TEXT NOT NULL,
    imap_port INTEGER NOT NULL DEFAULT 993,
    imap_username TEXT NOT NULL,
    imap_password TEXT NOT NULL,
    smtp_host TEXT NOT NULL,
    smtp_port INTEGER NOT NULL DEFAULT 587,
    from_name TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversation_audit (
    id {{pk}},
    org_id INTEGER NOT NULL,
    thread_key TEXT NOT NULL,
    direction TEXT NOT NULL,
    customer_email TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    body_text TEXT NOT NULL DEFAULT '',
    email_message_id TEXT NOT NULL DEFAULT '',
    in_reply_to TEXT NOT NULL DEFAULT '',
    references_header TEXT NOT NULL DEFAULT '',
    ai_model TEXT NOT NULL DEFAULT '',
    ai_tokens_in INTEGER NOT NULL DEFAULT 0,
    ai_tokens_out INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS reply_thread_locks (
    id {{pk}},
    org_id INTEGER NOT NULL,
    thread_key TEXT NOT NULL,
    bucket_start TIMESTAMP NOT NULL,
    worker_id TEXT NOT NULL DEFAULT '',
    expires_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (org_id, thread_key)
);

CREATE TABLE IF NOT EXISTS org_credits (
    id {{pk}},
    org_id INTEGER NOT NULL UNIQUE REFERENCES organizations(id) ON DELETE CASCADE,
    plan TEXT NOT NULL DEFAULT 'free',
    credits_total INTEGER NOT NULL DEFAULT 0,
    credits_used INTEGER NOT NULL DEFAULT 0,
    credits_reset_at TIMESTAMP,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS org_usage (
    id {{pk}},
    org_id INTEGER NOT NULL,
    event TEXT NOT NULL,
    qty INTEGER NOT NULL DEFAULT 1,
    meta TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS worker_status (
    id {{pk}},
    worker_id TEXT NOT NULL UNIQUE,
    last_run_at TIMESTAMP,
    last_email_processed_at TIMESTAMP,
    last_email_message_id TEXT NOT NULL DEFAULT '',
    last_thread_key TEXT NOT NULL DEFAULT '',
    lock_health_ok BOOLEAN NOT NULL DEFAULT true,
    credits_health_ok BOOLEAN NOT NULL DEFAULT true,
    last_error TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_org ON email_accounts(org_id);
CREATE INDEX IF NOT EXISTS idx_audit_org_thread ON conversation_audit(org_id, thread_key);
CREATE INDEX IF NOT EXISTS idx_audit_org_sender ON conversation_audit(org_id, customer_email);
CREATE INDEX IF NOT EXISTS idx_usage_org_event ON org_usage(org_id, event, created_at);

-- At most one OUT row per (org, message id) with a non-empty message id.
CREATE UNIQUE INDEX IF NOT EXISTS uq_audit_out_message
    ON conversation_audit(org_id, email_message_id)
    WHERE direction = 'OUT' AND email_message_id <> '';
`

func (db *DB) schema() string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "pgx" {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	return strings.ReplaceAll(schemaTemplate, "{{pk}}", pk)
}

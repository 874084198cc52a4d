package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/altomsoft/aimail/pkg/models"
)

// AppendTurn appends one audit row. A duplicate OUT row for the same
// (org, message id) is rejected by the partial unique index and
// reported as ErrAlreadyExists; the row is never updated in place.
func (db *DB) AppendTurn(ctx context.Context, turn *models.AuditTurn) error {
	query := db.rebind(`
		INSERT INTO conversation_audit (org_id, thread_key, direction, customer_email, subject, body_text, email_message_id, in_reply_to, references_header, ai_model, ai_tokens_in, ai_tokens_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	result, err := db.ExecContext(ctx, query,
		turn.OrgID,
		turn.ThreadKey,
		turn.Direction,
		strings.ToLower(strings.TrimSpace(turn.CustomerEmail)),
		turn.Subject,
		turn.BodyText,
		turn.EmailMessageID,
		turn.InReplyTo,
		turn.ReferencesHeader,
		turn.AIModel,
		turn.AITokensIn,
		turn.AITokensOut,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit turn: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// AlreadyReplied reports whether an OUT row exists for this exact
// message id. This is the idempotent redelivery guard.
func (db *DB) AlreadyReplied(ctx context.Context, orgID int64, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var one int
	query := db.rebind(`
		SELECT 1 FROM conversation_audit
		WHERE org_id = ? AND email_message_id = ? AND direction = 'OUT'
		LIMIT 1
	`)
	err := db.GetContext(ctx, &one, query, orgID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check replied message: %w", err)
	}
	return true, nil
}

// RepliedToThreadRecently reports whether an OUT row exists for the
// thread inside the cooldown window.
func (db *DB) RepliedToThreadRecently(ctx context.Context, orgID int64, threadKey string, window time.Duration) (bool, error) {
	if threadKey == "" {
		return false, nil
	}
	var one int
	query := db.rebind(`
		SELECT 1 FROM conversation_audit
		WHERE org_id = ? AND thread_key = ? AND direction = 'OUT' AND created_at >= ?
		LIMIT 1
	`)
	cutoff := time.Now().UTC().Add(-window)
	err := db.GetContext(ctx, &one, query, orgID, threadKey, cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check thread cooldown: %w", err)
	}
	return true, nil
}

// RepliedToSenderRecently reports whether any OUT row went to this
// sender inside the cooldown window. Used only when no thread key was
// derivable from headers.
func (db *DB) RepliedToSenderRecently(ctx context.Context, orgID int64, senderEmail string, window time.Duration) (bool, error) {
	senderEmail = strings.ToLower(strings.TrimSpace(senderEmail))
	if senderEmail == "" {
		return false, nil
	}
	var one int
	query := db.rebind(`
		SELECT 1 FROM conversation_audit
		WHERE org_id = ? AND customer_email = ? AND direction = 'OUT' AND created_at >= ?
		LIMIT 1
	`)
	cutoff := time.Now().UTC().Add(-window)
	err := db.GetContext(ctx, &one, query, orgID, senderEmail, cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sender cooldown: %w", err)
	}
	return true, nil
}

// ThreadNeedsReply reports whether the latest IN turn is strictly newer
// than the latest OUT turn (or no OUT exists yet). Prevents re-answering
// a thread already closed by a newer assistant turn.
func (db *DB) ThreadNeedsReply(ctx context.Context, orgID int64, threadKey string) (bool, error) {
	if threadKey == "" {
		return true, nil
	}

	lastIn, err := db.lastTurnAt(ctx, orgID, threadKey, models.DirectionIn)
	if err != nil {
		return false, err
	}
	lastOut, err := db.lastTurnAt(ctx, orgID, threadKey, models.DirectionOut)
	if err != nil {
		return false, err
	}

	if lastOut.IsZero() {
		return true, nil
	}
	return !lastIn.IsZero() && lastIn.After(lastOut), nil
}

func (db *DB) lastTurnAt(ctx context.Context, orgID int64, threadKey, direction string) (time.Time, error) {
	var at time.Time
	query := db.rebind(`
		SELECT created_at FROM conversation_audit
		WHERE org_id = ? AND thread_key = ? AND direction = ?
		ORDER BY created_at DESC LIMIT 1
	`)
	err := db.GetContext(ctx, &at, query, orgID, threadKey, direction)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last %s turn: %w", direction, err)
	}
	return at, nil
}

// RecentTurns returns the most recent turns of a thread, oldest first.
// limit counts exchanges; each exchange is one IN plus one OUT row.
func (db *DB) RecentTurns(ctx context.Context, orgID int64, threadKey string, limit int) ([]*models.AuditTurn, error) {
	if threadKey == "" {
		return nil, nil
	}
	var turns []*models.AuditTurn
	query := db.rebind(`
		SELECT * FROM conversation_audit
		WHERE org_id = ? AND thread_key = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)
	err := db.SelectContext(ctx, &turns, query, orgID, threadKey, limit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

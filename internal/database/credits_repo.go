package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ensureCreditsRow creates the credits row for an org on first use.
func (db *DB) ensureCreditsRow(ctx context.Context, orgID int64) error {
	query := db.rebind(`
		INSERT INTO org_credits (org_id, plan, credits_total, credits_used, credits_reset_at, updated_at)
		VALUES (?, 'free', 100, 0, ?, ?)
		ON CONFLICT (org_id) DO NOTHING
	`)
	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	if _, err := db.ExecContext(ctx, query, orgID, today, now); err != nil {
		return fmt.Errorf("failed to ensure credits row: %w", err)
	}
	return nil
}

// resetCreditsIfNeeded zeroes credits_used once per day.
func (db *DB) resetCreditsIfNeeded(ctx context.Context, orgID int64) error {
	query := db.rebind(`
		UPDATE org_credits
		SET credits_used = 0, credits_reset_at = ?, updated_at = ?
		WHERE org_id = ? AND credits_reset_at IS NOT NULL AND credits_reset_at < ?
	`)
	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	if _, err := db.ExecContext(ctx, query, today, now, orgID, today); err != nil {
		return fmt.Errorf("failed to reset credits: %w", err)
	}
	return nil
}

// RemainingCredits returns the credits still available for an org,
// creating the row and applying the daily reset as needed.
func (db *DB) RemainingCredits(ctx context.Context, orgID int64) (int, error) {
	if err := db.ensureCreditsRow(ctx, orgID); err != nil {
		return 0, err
	}
	if err := db.resetCreditsIfNeeded(ctx, orgID); err != nil {
		return 0, err
	}

	var remaining int
	query := db.rebind(`SELECT credits_total - credits_used FROM org_credits WHERE org_id = ?`)
	err := db.GetContext(ctx, &remaining, query, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining credits: %w", err)
	}
	return remaining, nil
}

// ConsumeCredits decrements the quota only when enough credits remain.
// The decrement-if-sufficient is one conditional statement; the boolean
// result reports whether it took effect.
func (db *DB) ConsumeCredits(ctx context.Context, orgID int64, qty int) (bool, error) {
	if qty <= 0 {
		return true, nil
	}
	if err := db.ensureCreditsRow(ctx, orgID); err != nil {
		return false, err
	}
	if err := db.resetCreditsIfNeeded(ctx, orgID); err != nil {
		return false, err
	}

	query := db.rebind(`
		UPDATE org_credits
		SET credits_used = credits_used + ?, updated_at = ?
		WHERE org_id = ? AND credits_total - credits_used >= ?
	`)
	result, err := db.ExecContext(ctx, query, qty, time.Now().UTC(), orgID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to consume credits: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// LogUsage appends one usage event. Callers treat failures as
// non-fatal; a sent reply is never rolled back over a ledger write.
func (db *DB) LogUsage(ctx context.Context, orgID int64, event string, qty int, meta map[string]any) error {
	if event == "" {
		return nil
	}
	if qty <= 0 {
		qty = 1
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	query := db.rebind(`
		INSERT INTO org_usage (org_id, event, qty, meta, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := db.ExecContext(ctx, query, orgID, event, qty, string(metaJSON), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to log usage: %w", err)
	}
	return nil
}

// RepliesSentLastHour counts reply_sent usage events in the trailing
// 60 minutes. This feeds the hourly rate cap.
func (db *DB) RepliesSentLastHour(ctx context.Context, orgID int64) (int, error) {
	var count int
	query := db.rebind(`
		SELECT COALESCE(SUM(qty), 0) FROM org_usage
		WHERE org_id = ? AND event = 'reply_sent' AND created_at >= ?
	`)
	cutoff := time.Now().UTC().Add(-time.Hour)
	err := db.GetContext(ctx, &count, query, orgID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent replies: %w", err)
	}
	return count, nil
}

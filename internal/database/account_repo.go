package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/altomsoft/aimail/pkg/models"
)

// GetOrganization returns one tenant's configuration by id.
func (db *DB) GetOrganization(ctx context.Context, orgID int64) (*models.Organization, error) {
	var org models.Organization
	query := db.rebind(`SELECT * FROM organizations WHERE id = ?`)
	err := db.GetContext(ctx, &org, query, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// ListAutoReplyAccounts returns every mail account belonging to a
// tenant with the auto-reply toggle enabled. This is the candidate set
// for one poll cycle.
func (db *DB) ListAutoReplyAccounts(ctx context.Context) ([]*models.EmailAccount, error) {
	var accounts []*models.EmailAccount
	query := `
		SELECT a.* FROM email_accounts a
		JOIN organizations o ON a.org_id = o.id
		WHERE o.auto_reply_enabled = true
		ORDER BY a.id
	`
	err := db.SelectContext(ctx, &accounts, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// GetAccountByID returns an account by ID
func (db *DB) GetAccountByID(ctx context.Context, id int64) (*models.EmailAccount, error) {
	var account models.EmailAccount
	query := db.rebind(`SELECT * FROM email_accounts WHERE id = ?`)
	err := db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

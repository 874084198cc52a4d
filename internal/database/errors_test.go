package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/altomsoft/aimail/pkg/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sdb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := &DB{sqlx.NewDb(sdb, "sqlite3")}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestGetOrganizationQueryError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM organizations`).
		WillReturnError(errors.New("connection reset"))

	_, err := db.GetOrganization(context.Background(), 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to get organization")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTurnExecError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`INSERT INTO conversation_audit`).
		WillReturnError(errors.New("database is locked"))

	err := db.AppendTurn(context.Background(), &models.AuditTurn{
		OrgID:     1,
		ThreadKey: "s:abc",
		Direction: models.DirectionIn,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to append audit turn")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireThreadLeaseUpsertError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`INSERT INTO reply_thread_locks`).
		WillReturnError(errors.New("database is locked"))

	_, err := db.AcquireThreadLease(context.Background(), 1, "s:abc", "worker-a", leaseWindow, leaseTTL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to upsert thread lease")
	require.NoError(t, mock.ExpectationsWereMet())
}

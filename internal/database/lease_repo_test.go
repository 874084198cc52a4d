package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	leaseWindow = 10 * time.Minute
	leaseTTL    = 12 * time.Minute
)

func TestAcquireThreadLeaseFresh(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.AcquireThreadLease(ctx, 1, "s:abc", "worker-a", leaseWindow, leaseTTL)
	require.NoError(t, err)
	require.True(t, got)

	lease, err := db.GetThreadLease(ctx, 1, "s:abc")
	require.NoError(t, err)
	require.Equal(t, "worker-a", lease.WorkerID)
	require.True(t, lease.ExpiresAt.After(time.Now().UTC()))
}

func TestAcquireThreadLeaseContended(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.AcquireThreadLease(ctx, 1, "s:abc", "worker-a", leaseWindow, leaseTTL)
	require.NoError(t, err)
	require.True(t, got)

	// A live lease held by someone else is not transferable.
	got, err = db.AcquireThreadLease(ctx, 1, "s:abc", "worker-b", leaseWindow, leaseTTL)
	require.NoError(t, err)
	require.False(t, got)

	lease, err := db.GetThreadLease(ctx, 1, "s:abc")
	require.NoError(t, err)
	require.Equal(t, "worker-a", lease.WorkerID)

	// The holder can re-enter its own lease.
	got, err = db.AcquireThreadLease(ctx, 1, "s:abc", "worker-a", leaseWindow, leaseTTL)
	require.NoError(t, err)
	require.True(t, got)
}

func TestAcquireThreadLeaseExpiredTakeover(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Negative TTL writes an already-expired lease.
	got, err := db.AcquireThreadLease(ctx, 1, "s:abc", "worker-a", leaseWindow, -time.Minute)
	require.NoError(t, err)
	require.True(t, got)

	got, err = db.AcquireThreadLease(ctx, 1, "s:abc", "worker-b", leaseWindow, leaseTTL)
	require.NoError(t, err)
	require.True(t, got)

	lease, err := db.GetThreadLease(ctx, 1, "s:abc")
	require.NoError(t, err)
	require.Equal(t, "worker-b", lease.WorkerID)
}

func TestAcquireThreadLeaseScopedPerThread(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.AcquireThreadLease(ctx, 1, "s:abc", "worker-a", leaseWindow, leaseTTL)
	require.NoError(t, err)
	require.True(t, got)

	// Other threads and other orgs are independent.
	got, err = db.AcquireThreadLease(ctx, 1, "s:def", "worker-b", leaseWindow, leaseTTL)
	require.NoError(t, err)
	require.True(t, got)

	got, err = db.AcquireThreadLease(ctx, 2, "s:abc", "worker-b", leaseWindow, leaseTTL)
	require.NoError(t, err)
	require.True(t, got)
}

func TestGetThreadLeaseNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetThreadLease(context.Background(), 1, "s:missing")
	require.ErrorIs(t, err, ErrNotFound)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invariantHolds(t *testing.T, l *StockLedger) {
	t.Helper()
	assert.Equal(t, l.Total, l.Available+l.Reserved, "available + reserved must equal total")
}

func TestLedgerReserveReleaseConfirm(t *testing.T) {
	l := NewStockLedger("led-1", "prod-1", "SKU-1", 10, 2, 5)
	invariantHolds(t, l)

	require.NoError(t, l.Reserve(3))
	assert.Equal(t, 7, l.Available)
	assert.Equal(t, 3, l.Reserved)
	invariantHolds(t, l)

	l.Release(3)
	assert.Equal(t, 10, l.Available)
	assert.Equal(t, 0, l.Reserved)
	invariantHolds(t, l)

	require.NoError(t, l.Reserve(4))
	l.Confirm(4)
	assert.Equal(t, 6, l.Available)
	assert.Equal(t, 0, l.Reserved)
	assert.Equal(t, 6, l.Total)
	invariantHolds(t, l)
}

func TestLedgerReserveInsufficient(t *testing.T) {
	l := NewStockLedger("led-1", "prod-1", "SKU-1", 3, 0, 0)

	err := l.Reserve(5)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 3, l.Available)
	invariantHolds(t, l)
}

func TestLedgerReserveExactlyAvailable(t *testing.T) {
	l := NewStockLedger("led-1", "prod-1", "SKU-1", 10, 0, 0)

	require.NoError(t, l.Reserve(10))
	assert.Equal(t, 0, l.Available)
	invariantHolds(t, l)

	assert.ErrorIs(t, l.Reserve(1), ErrInsufficientStock)
}

func TestLedgerAdjust(t *testing.T) {
	l := NewStockLedger("led-1", "prod-1", "SKU-1", 5, 0, 0)

	require.NoError(t, l.Adjust(10))
	assert.Equal(t, 15, l.Available)
	assert.Equal(t, 15, l.Total)
	invariantHolds(t, l)

	assert.ErrorIs(t, l.Adjust(-16), ErrInvalidAdjustment)
	assert.Equal(t, 15, l.Available)
}

func TestLedgerVersionBumpsOnMutation(t *testing.T) {
	l := NewStockLedger("led-1", "prod-1", "SKU-1", 5, 0, 0)
	v := l.Version

	require.NoError(t, l.Reserve(1))
	assert.Equal(t, v+1, l.Version)

	l.SetThresholds(2, 10)
	assert.Equal(t, v+2, l.Version)
}

func TestReservationLifecycle(t *testing.T) {
	r := NewReservation("led-1", "order-1", "user-1", 2, time.Minute)
	assert.True(t, r.Active())
	assert.False(t, r.Expired(time.Now().UTC()))

	now := time.Now().UTC()
	r.Complete(now)
	assert.Equal(t, ReservationCompleted, r.Status)
	require.NotNil(t, r.CompletedAt)
	assert.False(t, r.Expired(now.Add(2*time.Minute)), "terminal reservations never expire")
}

func TestReservationExpiry(t *testing.T) {
	r := NewReservation("led-1", "order-1", "user-1", 2, 0)
	assert.True(t, r.Expired(time.Now().UTC().Add(time.Millisecond)))

	r.Cancel(time.Now().UTC())
	assert.False(t, r.Expired(time.Now().UTC().Add(time.Hour)))
}

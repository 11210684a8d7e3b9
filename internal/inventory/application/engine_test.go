package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopflow/inventory-service/internal/inventory/application"
	"github.com/shopflow/inventory-service/internal/inventory/domain"
	"github.com/shopflow/inventory-service/internal/inventory/infrastructure/memory"
)

func newTestEngine(t *testing.T) (*application.Engine, *memory.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	return application.NewEngine(log, store), store
}

func seedLedger(t *testing.T, e *application.Engine, productID string, qty, reorderLevel int) *domain.StockLedger {
	t.Helper()
	l, err := e.CreateLedger(context.Background(), application.CreateLedgerCommand{
		ProductID:    productID,
		SKU:          "SKU-" + productID,
		InitialQty:   qty,
		ReorderLevel: reorderLevel,
		ReorderQty:   qty,
	})
	require.NoError(t, err)
	return l
}

func ledgerState(t *testing.T, s *memory.Store, productID string) (available, reserved, total int) {
	t.Helper()
	l, err := s.LedgerByProduct(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, l.Total, l.Available+l.Reserved, "ledger invariant violated")
	return l.Available, l.Reserved, l.Total
}

func reservationStatus(t *testing.T, s *memory.Store, orderID, ledgerID string) domain.ReservationStatus {
	t.Helper()
	var status domain.ReservationStatus
	err := s.WithinTx(context.Background(), func(tx application.Tx) error {
		r, err := tx.ReservationForUpdate(context.Background(), orderID, ledgerID)
		if err != nil {
			return err
		}
		status = r.Status
		return nil
	})
	require.NoError(t, err)
	return status
}

func eventsOfType(s *memory.Store, eventType string) []memory.Event {
	var out []memory.Event
	for _, ev := range s.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestReserveThenConfirm(t *testing.T) {
	e, s := newTestEngine(t)
	l := seedLedger(t, e, "p1", 10, 0)

	res, err := e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O1", UserID: "u1", Quantity: 3, TTL: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationActive, res.Status)

	av, rv, tot := ledgerState(t, s, "p1")
	assert.Equal(t, [3]int{7, 3, 10}, [3]int{av, rv, tot})

	require.NoError(t, e.Confirm(context.Background(), "O1"))
	av, rv, tot = ledgerState(t, s, "p1")
	assert.Equal(t, [3]int{7, 0, 7}, [3]int{av, rv, tot})
	assert.Equal(t, domain.ReservationCompleted, reservationStatus(t, s, "O1", l.ID))
}

func TestReserveThenCancel(t *testing.T) {
	e, s := newTestEngine(t)
	l := seedLedger(t, e, "p1", 10, 0)

	_, err := e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O2", UserID: "u1", Quantity: 10, TTL: time.Minute,
	})
	require.NoError(t, err)
	av, rv, _ := ledgerState(t, s, "p1")
	assert.Equal(t, 0, av)
	assert.Equal(t, 10, rv)

	require.NoError(t, e.Cancel(context.Background(), "O2"))
	av, rv, tot := ledgerState(t, s, "p1")
	assert.Equal(t, [3]int{10, 0, 10}, [3]int{av, rv, tot})
	assert.Equal(t, domain.ReservationCancelled, reservationStatus(t, s, "O2", l.ID))
	assert.Len(t, eventsOfType(s, domain.EventStockReleased), 1)
}

func TestReserveInsufficientLeavesLedgerUntouched(t *testing.T) {
	e, s := newTestEngine(t)
	seedLedger(t, e, "p1", 3, 0)

	_, err := e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O3", UserID: "u1", Quantity: 5, TTL: time.Minute,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	av, rv, tot := ledgerState(t, s, "p1")
	assert.Equal(t, [3]int{3, 0, 3}, [3]int{av, rv, tot})
	assert.Empty(t, eventsOfType(s, domain.EventStockReserved))
}

func TestReserveBoundary(t *testing.T) {
	e, s := newTestEngine(t)
	seedLedger(t, e, "p1", 10, 0)

	_, err := e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O4", UserID: "u1", Quantity: 10, TTL: time.Minute,
	})
	require.NoError(t, err)
	av, _, _ := ledgerState(t, s, "p1")
	assert.Equal(t, 0, av)

	_, err = e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O5", UserID: "u1", Quantity: 1, TTL: time.Minute,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestReserveRedeliveryIsIdempotent(t *testing.T) {
	e, s := newTestEngine(t)
	seedLedger(t, e, "p1", 10, 0)

	cmd := application.ReserveCommand{
		ProductID: "p1", OrderID: "O6", UserID: "u1", Quantity: 4, TTL: time.Minute,
	}
	first, err := e.Reserve(context.Background(), cmd)
	require.NoError(t, err)
	second, err := e.Reserve(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "redelivery must return the original reservation")
	av, rv, _ := ledgerState(t, s, "p1")
	assert.Equal(t, 6, av)
	assert.Equal(t, 4, rv)
	assert.Len(t, eventsOfType(s, domain.EventStockReserved), 1)
}

func TestConfirmTwiceDeductsOnce(t *testing.T) {
	e, s := newTestEngine(t)
	seedLedger(t, e, "p1", 10, 0)

	_, err := e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O7", UserID: "u1", Quantity: 3, TTL: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, e.Confirm(context.Background(), "O7"))
	require.NoError(t, e.Confirm(context.Background(), "O7"))

	av, rv, tot := ledgerState(t, s, "p1")
	assert.Equal(t, [3]int{7, 0, 7}, [3]int{av, rv, tot})
}

func TestCancelTwiceReleasesOnce(t *testing.T) {
	e, s := newTestEngine(t)
	seedLedger(t, e, "p1", 10, 0)

	_, err := e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O8", UserID: "u1", Quantity: 3, TTL: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, e.Cancel(context.Background(), "O8"))
	require.NoError(t, e.Cancel(context.Background(), "O8"))

	av, rv, tot := ledgerState(t, s, "p1")
	assert.Equal(t, [3]int{10, 0, 10}, [3]int{av, rv, tot})
	assert.Len(t, eventsOfType(s, domain.EventStockReleased), 1)
}

func TestConfirmBeforeReserveIsNoop(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.NoError(t, e.Confirm(context.Background(), "never-reserved"))
	assert.NoError(t, e.Cancel(context.Background(), "never-reserved"))
}

func TestConfirmWinsOverLateCancel(t *testing.T) {
	e, s := newTestEngine(t)
	seedLedger(t, e, "p1", 10, 0)

	_, err := e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O9", UserID: "u1", Quantity: 2, TTL: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, e.Confirm(context.Background(), "O9"))
	require.NoError(t, e.Cancel(context.Background(), "O9"))

	av, rv, tot := ledgerState(t, s, "p1")
	assert.Equal(t, [3]int{8, 0, 8}, [3]int{av, rv, tot}, "cancel after confirm must not restock")
}

func TestAdjustStockAppendsAuditRow(t *testing.T) {
	e, s := newTestEngine(t)
	l := seedLedger(t, e, "p1", 5, 0)

	_, err := e.AdjustStock(context.Background(), application.AdjustCommand{
		LedgerID: l.ID, Delta: 20, Type: domain.TxPurchase, Reference: "po-77",
	})
	require.NoError(t, err)

	av, _, tot := ledgerState(t, s, "p1")
	assert.Equal(t, 25, av)
	assert.Equal(t, 25, tot)

	txs, total, err := s.Transactions(context.Background(), l.ID, application.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "initial stock row plus the adjustment")
	assert.Equal(t, domain.TxPurchase, txs[0].Type)
	assert.Equal(t, 20, txs[0].Quantity)
	assert.Equal(t, "po-77", txs[0].Reference)
}

func TestAdjustStockRejectsNegativeAvailable(t *testing.T) {
	e, s := newTestEngine(t)
	l := seedLedger(t, e, "p1", 5, 0)

	_, err := e.AdjustStock(context.Background(), application.AdjustCommand{
		LedgerID: l.ID, Delta: -6, Type: domain.TxDamage,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAdjustment)

	av, _, _ := ledgerState(t, s, "p1")
	assert.Equal(t, 5, av)
}

func TestLowStockAlertFiresOnceOnCrossing(t *testing.T) {
	e, s := newTestEngine(t)
	l := seedLedger(t, e, "p1", 10, 3)

	// 10 -> 3 crosses the threshold.
	_, err := e.AdjustStock(context.Background(), application.AdjustCommand{
		LedgerID: l.ID, Delta: -7, Type: domain.TxSale,
	})
	require.NoError(t, err)
	assert.Len(t, eventsOfType(s, domain.EventLowStock), 1)

	// Already below: no second alert.
	_, err = e.AdjustStock(context.Background(), application.AdjustCommand{
		LedgerID: l.ID, Delta: -1, Type: domain.TxSale,
	})
	require.NoError(t, err)
	assert.Len(t, eventsOfType(s, domain.EventLowStock), 1)

	// Restock above and cross again: a fresh alert.
	_, err = e.AdjustStock(context.Background(), application.AdjustCommand{
		LedgerID: l.ID, Delta: 10, Type: domain.TxPurchase,
	})
	require.NoError(t, err)
	_, err = e.AdjustStock(context.Background(), application.AdjustCommand{
		LedgerID: l.ID, Delta: -10, Type: domain.TxSale,
	})
	require.NoError(t, err)
	assert.Len(t, eventsOfType(s, domain.EventLowStock), 2)
}

func TestCreateLedgerDuplicate(t *testing.T) {
	e, _ := newTestEngine(t)
	seedLedger(t, e, "p1", 5, 0)

	_, err := e.CreateLedger(context.Background(), application.CreateLedgerCommand{
		ProductID: "p1", SKU: "SKU-p1", InitialQty: 1,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateLedger)
}

func TestCleanupExpiredReleasesStock(t *testing.T) {
	e, s := newTestEngine(t)
	l := seedLedger(t, e, "p1", 10, 0)

	_, err := e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O10", UserID: "u1", Quantity: 2, TTL: -time.Second,
	})
	require.NoError(t, err)

	released, err := e.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	av, rv, _ := ledgerState(t, s, "p1")
	assert.Equal(t, 10, av)
	assert.Equal(t, 0, rv)
	assert.Equal(t, domain.ReservationCancelled, reservationStatus(t, s, "O10", l.ID))

	released, err = e.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestCleanupSkipsUnexpired(t *testing.T) {
	e, s := newTestEngine(t)
	seedLedger(t, e, "p1", 10, 0)

	_, err := e.Reserve(context.Background(), application.ReserveCommand{
		ProductID: "p1", OrderID: "O11", UserID: "u1", Quantity: 2, TTL: time.Hour,
	})
	require.NoError(t, err)

	released, err := e.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, released)

	av, rv, _ := ledgerState(t, s, "p1")
	assert.Equal(t, 8, av)
	assert.Equal(t, 2, rv)
}

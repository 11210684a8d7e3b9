package application

import (
	"context"
	"time"

	"github.com/shopflow/inventory-service/internal/inventory/domain"
)

// Tx is the unit of work every engine mutation runs inside. Row locks
// are always taken ledger first, reservation second.
type Tx interface {
	LedgerForUpdate(ctx context.Context, productID string) (*domain.StockLedger, error)
	LedgerByIDForUpdate(ctx context.Context, id string) (*domain.StockLedger, error)
	CreateLedger(ctx context.Context, ledger *domain.StockLedger) error
	SaveLedger(ctx context.Context, ledger *domain.StockLedger) error

	ReservationsByOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error)
	ReservationForUpdate(ctx context.Context, orderID, ledgerID string) (*domain.Reservation, error)
	CreateReservation(ctx context.Context, res *domain.Reservation) error
	SaveReservation(ctx context.Context, res *domain.Reservation) error

	AppendTransaction(ctx context.Context, t *domain.StockTransaction) error
	AppendEvent(ctx context.Context, eventType, key string, payload []byte) error
}

type LedgerFilter struct {
	LowStock bool
	Page     int
	Limit    int
}

type Page struct {
	Page  int
	Limit int
}

type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	LedgerByID(ctx context.Context, id string) (*domain.StockLedger, error)
	LedgerByProduct(ctx context.Context, productID string) (*domain.StockLedger, error)
	ListLedgers(ctx context.Context, filter LedgerFilter) ([]domain.StockLedger, int64, error)
	ActiveReservations(ctx context.Context, ledgerID string) ([]domain.Reservation, error)
	ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
	Transactions(ctx context.Context, ledgerID string, page Page) ([]domain.StockTransaction, int64, error)

	// AppendEvent enqueues an outbound event outside any mutation,
	// e.g. a reserve-failed report from the saga coordinator.
	AppendEvent(ctx context.Context, eventType, key string, payload []byte) error
}

package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopflow/inventory-service/internal/inventory/domain"
)

func newLedgerID() string { return uuid.NewString() }

const cleanupBatchSize = 500

// Engine owns every quantity change on the stock ledgers. Consumers,
// the sweeper and the admin API all funnel through it; nothing else
// writes ledger or reservation rows.
type Engine struct {
	log   *slog.Logger
	store Store
	clock func() time.Time
}

func NewEngine(log *slog.Logger, store Store) *Engine {
	return &Engine{
		log:   log,
		store: store,
		clock: time.Now,
	}
}

type ReserveCommand struct {
	ProductID string
	OrderID   string
	UserID    string
	Quantity  int
	TTL       time.Duration
}

// Reserve holds stock for one order line. Redelivery of the same
// (order, product) pair returns the existing reservation untouched.
func (e *Engine) Reserve(ctx context.Context, cmd ReserveCommand) (*domain.Reservation, error) {
	if cmd.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var res *domain.Reservation
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		ledger, err := tx.LedgerForUpdate(ctx, cmd.ProductID)
		if err != nil {
			return err
		}

		existing, err := tx.ReservationForUpdate(ctx, cmd.OrderID, ledger.ID)
		if err == nil {
			res = existing
			return nil
		}
		if !errors.Is(err, domain.ErrReservationNotFound) {
			return err
		}

		wasLow := ledger.LowStock()
		if err := ledger.Reserve(cmd.Quantity); err != nil {
			return err
		}
		if err := tx.SaveLedger(ctx, ledger); err != nil {
			return err
		}

		res = domain.NewReservation(ledger.ID, cmd.OrderID, cmd.UserID, cmd.Quantity, cmd.TTL)
		if err := tx.CreateReservation(ctx, res); err != nil {
			return err
		}

		if err := e.appendEvent(ctx, tx, domain.EventStockReserved, cmd.OrderID, domain.StockReserved{
			OrderID:       cmd.OrderID,
			ProductID:     ledger.ProductID,
			Quantity:      cmd.Quantity,
			ReservationID: res.ID.String(),
		}); err != nil {
			return err
		}
		return e.alertIfCrossed(ctx, tx, ledger, wasLow)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("stock reserved",
		"order_id", cmd.OrderID, "product_id", cmd.ProductID, "quantity", cmd.Quantity)
	return res, nil
}

// Confirm turns every active reservation of the order into a completed
// sale, deducting the held quantity from the ledger total. A missing or
// already-terminal reservation is treated as handled.
func (e *Engine) Confirm(ctx context.Context, orderID string) error {
	return e.store.WithinTx(ctx, func(tx Tx) error {
		lines, err := tx.ReservationsByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			e.log.Info("confirm for unknown order, nothing to do", "order_id", orderID)
			return nil
		}

		now := e.clock().UTC()
		for _, line := range lines {
			ledger, err := tx.LedgerByIDForUpdate(ctx, line.LedgerID)
			if err != nil {
				return err
			}
			res, err := tx.ReservationForUpdate(ctx, orderID, ledger.ID)
			if err != nil {
				return err
			}
			if !res.Active() {
				continue
			}

			ledger.Confirm(res.Quantity)
			if err := tx.SaveLedger(ctx, ledger); err != nil {
				return err
			}
			res.Complete(now)
			if err := tx.SaveReservation(ctx, res); err != nil {
				return err
			}
			if err := tx.AppendTransaction(ctx, &domain.StockTransaction{
				LedgerID:  ledger.ID,
				Type:      domain.TxSale,
				Quantity:  -res.Quantity,
				Reference: orderID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			e.log.Info("reservation confirmed",
				"order_id", orderID, "product_id", ledger.ProductID, "quantity", res.Quantity)
		}
		return nil
	})
}

// Cancel releases every active reservation of the order back to the
// available pool. Safe to call any number of times.
func (e *Engine) Cancel(ctx context.Context, orderID string) error {
	return e.store.WithinTx(ctx, func(tx Tx) error {
		lines, err := tx.ReservationsByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			e.log.Info("cancel for unknown order, nothing to do", "order_id", orderID)
			return nil
		}
		for _, line := range lines {
			if _, err := e.releaseLine(ctx, tx, orderID, line.LedgerID); err != nil {
				return err
			}
		}
		return nil
	})
}

// releaseLine returns one held line to the available pool. Reports
// false when the reservation already reached a terminal state.
func (e *Engine) releaseLine(ctx context.Context, tx Tx, orderID, ledgerID string) (bool, error) {
	ledger, err := tx.LedgerByIDForUpdate(ctx, ledgerID)
	if err != nil {
		return false, err
	}
	res, err := tx.ReservationForUpdate(ctx, orderID, ledger.ID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return false, nil
		}
		return false, err
	}
	if !res.Active() {
		return false, nil
	}

	ledger.Release(res.Quantity)
	if err := tx.SaveLedger(ctx, ledger); err != nil {
		return false, err
	}
	res.Cancel(e.clock().UTC())
	if err := tx.SaveReservation(ctx, res); err != nil {
		return false, err
	}

	if err := e.appendEvent(ctx, tx, domain.EventStockReleased, orderID, domain.StockReleased{
		OrderID:   orderID,
		ProductID: ledger.ProductID,
		Quantity:  res.Quantity,
	}); err != nil {
		return false, err
	}
	e.log.Info("stock released",
		"order_id", orderID, "product_id", ledger.ProductID, "quantity", res.Quantity)
	return true, nil
}

type AdjustCommand struct {
	LedgerID  string
	Delta     int
	Type      domain.TransactionType
	Reference string
	Notes     string
}

// AdjustStock applies an administrative delta to available and total
// together and appends an audit row.
func (e *Engine) AdjustStock(ctx context.Context, cmd AdjustCommand) (*domain.StockLedger, error) {
	if !domain.ValidTransactionType(cmd.Type) {
		return nil, domain.ErrInvalidAdjustment
	}

	var updated *domain.StockLedger
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		ledger, err := tx.LedgerByIDForUpdate(ctx, cmd.LedgerID)
		if err != nil {
			return err
		}
		wasLow := ledger.LowStock()
		if err := ledger.Adjust(cmd.Delta); err != nil {
			return err
		}
		if err := tx.SaveLedger(ctx, ledger); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &domain.StockTransaction{
			LedgerID:  ledger.ID,
			Type:      cmd.Type,
			Quantity:  cmd.Delta,
			Reference: cmd.Reference,
			Notes:     cmd.Notes,
			CreatedAt: e.clock().UTC(),
		}); err != nil {
			return err
		}
		updated = ledger
		return e.alertIfCrossed(ctx, tx, ledger, wasLow)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("stock adjusted",
		"ledger_id", cmd.LedgerID, "delta", cmd.Delta, "type", string(cmd.Type))
	return updated, nil
}

// CleanupExpired releases every active reservation past its deadline
// and returns how many were released. The per-line release is status
// gated, so running concurrently with normal traffic is safe.
func (e *Engine) CleanupExpired(ctx context.Context) (int, error) {
	expired, err := e.store.ExpiredReservations(ctx, e.clock().UTC(), cleanupBatchSize)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, r := range expired {
		var ok bool
		err := e.store.WithinTx(ctx, func(tx Tx) error {
			var err error
			ok, err = e.releaseLine(ctx, tx, r.OrderID, r.LedgerID)
			return err
		})
		if err != nil {
			e.log.Error("expired reservation release failed",
				"order_id", r.OrderID, "ledger_id", r.LedgerID, "err", err)
			continue
		}
		if ok {
			released++
		}
	}
	return released, nil
}

type CreateLedgerCommand struct {
	ProductID    string
	SKU          string
	InitialQty   int
	ReorderLevel int
	ReorderQty   int
}

func (e *Engine) CreateLedger(ctx context.Context, cmd CreateLedgerCommand) (*domain.StockLedger, error) {
	if cmd.InitialQty < 0 || cmd.ReorderLevel < 0 || cmd.ReorderQty < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var created *domain.StockLedger
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.LedgerForUpdate(ctx, cmd.ProductID)
		if err == nil {
			return domain.ErrDuplicateLedger
		}
		if !errors.Is(err, domain.ErrLedgerNotFound) {
			return err
		}

		created = domain.NewStockLedger(newLedgerID(), cmd.ProductID, cmd.SKU,
			cmd.InitialQty, cmd.ReorderLevel, cmd.ReorderQty)
		if err := tx.CreateLedger(ctx, created); err != nil {
			return err
		}
		if cmd.InitialQty > 0 {
			return tx.AppendTransaction(ctx, &domain.StockTransaction{
				LedgerID:  created.ID,
				Type:      domain.TxPurchase,
				Quantity:  cmd.InitialQty,
				Notes:     "initial stock",
				CreatedAt: e.clock().UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("ledger created", "ledger_id", created.ID, "product_id", cmd.ProductID)
	return created, nil
}

func (e *Engine) UpdateThresholds(ctx context.Context, ledgerID string, reorderLevel, reorderQty int) (*domain.StockLedger, error) {
	if reorderLevel < 0 || reorderQty < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var updated *domain.StockLedger
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		ledger, err := tx.LedgerByIDForUpdate(ctx, ledgerID)
		if err != nil {
			return err
		}
		ledger.SetThresholds(reorderLevel, reorderQty)
		updated = ledger
		return tx.SaveLedger(ctx, ledger)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type LedgerDetail struct {
	Ledger       domain.StockLedger
	Reservations []domain.Reservation
}

// LedgerDetail returns one ledger with its active reservations.
func (e *Engine) LedgerDetail(ctx context.Context, productID string) (*LedgerDetail, error) {
	ledger, err := e.store.LedgerByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	active, err := e.store.ActiveReservations(ctx, ledger.ID)
	if err != nil {
		return nil, err
	}
	return &LedgerDetail{Ledger: *ledger, Reservations: active}, nil
}

func (e *Engine) ListLedgers(ctx context.Context, filter LedgerFilter) ([]domain.StockLedger, int64, error) {
	return e.store.ListLedgers(ctx, filter)
}

func (e *Engine) ListTransactions(ctx context.Context, ledgerID string, page Page) ([]domain.StockTransaction, int64, error) {
	if _, err := e.store.LedgerByID(ctx, ledgerID); err != nil {
		return nil, 0, err
	}
	return e.store.Transactions(ctx, ledgerID, page)
}

// alertIfCrossed emits a low-stock event only on the downward crossing
// of the reorder threshold, not on every mutation below it.
func (e *Engine) alertIfCrossed(ctx context.Context, tx Tx, ledger *domain.StockLedger, wasLow bool) error {
	if wasLow || !ledger.LowStock() {
		return nil
	}
	e.log.Warn("low stock threshold crossed",
		"product_id", ledger.ProductID, "available", ledger.Available, "reorder_level", ledger.ReorderLevel)
	return e.appendEvent(ctx, tx, domain.EventLowStock, ledger.ProductID, domain.LowStock{
		ProductID:    ledger.ProductID,
		SKU:          ledger.SKU,
		Available:    ledger.Available,
		ReorderLevel: ledger.ReorderLevel,
	})
}

func (e *Engine) appendEvent(ctx context.Context, tx Tx, eventType, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, eventType, key, body)
}

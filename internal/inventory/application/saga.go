package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopflow/inventory-service/internal/inventory/domain"
)

type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Coordinator reserves every line of an order as one business
// transaction. Lines reserve independently; when one fails, the lines
// already held for that order are compensated with an explicit cancel
// before the order-level failure is reported.
type Coordinator struct {
	log    *slog.Logger
	engine *Engine
	store  Store
	ttl    time.Duration
}

func NewCoordinator(log *slog.Logger, engine *Engine, store Store, ttl time.Duration) *Coordinator {
	return &Coordinator{log: log, engine: engine, store: store, ttl: ttl}
}

// ReserveOrder attempts every line of the order and rolls back the
// partial set on the first failure. Redelivered order signals are
// absorbed line by line by the engine's (order, product) idempotency.
func (c *Coordinator) ReserveOrder(ctx context.Context, orderID, userID string, items []LineItem) error {
	for _, item := range items {
		_, err := c.engine.Reserve(ctx, ReserveCommand{
			ProductID: item.ProductID,
			OrderID:   orderID,
			UserID:    userID,
			Quantity:  item.Quantity,
			TTL:       c.ttl,
		})
		if err == nil {
			continue
		}

		c.log.Error("order line reservation failed",
			"order_id", orderID, "product_id", item.ProductID, "err", err)
		c.compensate(ctx, orderID)
		c.reportFailure(ctx, orderID, item.ProductID, err)
		return err
	}
	return nil
}

// compensate cancels whatever the order managed to hold so far. Cancel
// is idempotent, so a compensation racing a real cancel signal is
// harmless.
func (c *Coordinator) compensate(ctx context.Context, orderID string) {
	if err := c.engine.Cancel(ctx, orderID); err != nil {
		// The sweeper releases anything left behind once the TTL runs out.
		c.log.Error("order compensation failed, leaving to expiry",
			"order_id", orderID, "err", err)
	}
}

func (c *Coordinator) reportFailure(ctx context.Context, orderID, productID string, cause error) {
	reason := "reservation failed"
	switch {
	case errors.Is(cause, domain.ErrInsufficientStock):
		reason = "insufficient stock"
	case errors.Is(cause, domain.ErrLedgerNotFound):
		reason = "no ledger for product"
	case errors.Is(cause, domain.ErrInvalidQuantity):
		reason = "invalid quantity"
	}

	payload, err := json.Marshal(domain.ReserveFailed{
		OrderID:   orderID,
		ProductID: productID,
		Reason:    reason,
	})
	if err != nil {
		return
	}
	if err := c.store.AppendEvent(ctx, domain.EventReserveFailed, orderID, payload); err != nil {
		c.log.Error("reserve-failed event enqueue failed", "order_id", orderID, "err", err)
	}
}

package kafka

import (
	"context"
	"encoding/json"

	"github.com/shopflow/inventory-service/internal/inventory/application"
)

// Inbound signal shapes owned by the order and payment services.

type OrderPlaced struct {
	OrderID string                 `json:"orderId"`
	UserID  string                 `json:"userId"`
	Items   []application.LineItem `json:"items"`
}

type OrderCancelled struct {
	OrderID string `json:"orderId"`
}

type PaymentAuthorized struct {
	OrderID string `json:"orderId"`
}

type PaymentFailed struct {
	OrderID string `json:"orderId"`
}

// OrderHandlers maps order lifecycle signals onto engine calls.
func OrderHandlers(coord *application.Coordinator, engine *application.Engine) map[string]Handler {
	return map[string]Handler{
		"order.placed": func(ctx context.Context, payload []byte) error {
			var ev OrderPlaced
			if err := json.Unmarshal(payload, &ev); err != nil {
				return err
			}
			return coord.ReserveOrder(ctx, ev.OrderID, ev.UserID, ev.Items)
		},
		"order.cancelled": func(ctx context.Context, payload []byte) error {
			var ev OrderCancelled
			if err := json.Unmarshal(payload, &ev); err != nil {
				return err
			}
			return engine.Cancel(ctx, ev.OrderID)
		},
	}
}

// PaymentHandlers maps payment outcome signals onto engine calls.
// A payment.authorized racing ahead of its order.placed finds no
// reservation and no-ops; the sweeper covers anything truly lost.
func PaymentHandlers(engine *application.Engine) map[string]Handler {
	return map[string]Handler{
		"payment.authorized": func(ctx context.Context, payload []byte) error {
			var ev PaymentAuthorized
			if err := json.Unmarshal(payload, &ev); err != nil {
				return err
			}
			return engine.Confirm(ctx, ev.OrderID)
		},
		"payment.failed": func(ctx context.Context, payload []byte) error {
			var ev PaymentFailed
			if err := json.Unmarshal(payload, &ev); err != nil {
				return err
			}
			return engine.Cancel(ctx, ev.OrderID)
		},
	}
}

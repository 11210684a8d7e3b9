package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopflow/inventory-service/internal/inventory/application"
	"github.com/shopflow/inventory-service/internal/inventory/infrastructure/memory"
)

func newHandlers(t *testing.T) (map[string]Handler, map[string]Handler, *memory.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	engine := application.NewEngine(log, store)
	coord := application.NewCoordinator(log, engine, store, time.Minute)

	_, err := engine.CreateLedger(context.Background(), application.CreateLedgerCommand{
		ProductID: "p1", SKU: "SKU-p1", InitialQty: 10,
	})
	require.NoError(t, err)

	return OrderHandlers(coord, engine), PaymentHandlers(engine), store
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestOrderPlacedReservesEachLine(t *testing.T) {
	orderHandlers, _, store := newHandlers(t)

	payload := mustJSON(t, OrderPlaced{
		OrderID: "O1",
		UserID:  "u1",
		Items:   []application.LineItem{{ProductID: "p1", Quantity: 4}},
	})
	require.NoError(t, orderHandlers["order.placed"](context.Background(), payload))

	l, err := store.LedgerByProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, l.Available)
	assert.Equal(t, 4, l.Reserved)
}

func TestOrderCancelledReleases(t *testing.T) {
	orderHandlers, _, store := newHandlers(t)

	placed := mustJSON(t, OrderPlaced{
		OrderID: "O1", UserID: "u1",
		Items: []application.LineItem{{ProductID: "p1", Quantity: 4}},
	})
	require.NoError(t, orderHandlers["order.placed"](context.Background(), placed))

	cancelled := mustJSON(t, OrderCancelled{OrderID: "O1"})
	require.NoError(t, orderHandlers["order.cancelled"](context.Background(), cancelled))

	l, err := store.LedgerByProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, l.Available)
	assert.Equal(t, 0, l.Reserved)
}

func TestPaymentAuthorizedConfirms(t *testing.T) {
	orderHandlers, paymentHandlers, store := newHandlers(t)

	placed := mustJSON(t, OrderPlaced{
		OrderID: "O1", UserID: "u1",
		Items: []application.LineItem{{ProductID: "p1", Quantity: 4}},
	})
	require.NoError(t, orderHandlers["order.placed"](context.Background(), placed))

	authorized := mustJSON(t, PaymentAuthorized{OrderID: "O1"})
	require.NoError(t, paymentHandlers["payment.authorized"](context.Background(), authorized))

	l, err := store.LedgerByProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, l.Available)
	assert.Equal(t, 0, l.Reserved)
	assert.Equal(t, 6, l.Total)
}

func TestPaymentEventsBeforeOrderAreSafe(t *testing.T) {
	_, paymentHandlers, store := newHandlers(t)

	authorized := mustJSON(t, PaymentAuthorized{OrderID: "unseen"})
	require.NoError(t, paymentHandlers["payment.authorized"](context.Background(), authorized))

	failed := mustJSON(t, PaymentFailed{OrderID: "unseen"})
	require.NoError(t, paymentHandlers["payment.failed"](context.Background(), failed))

	l, err := store.LedgerByProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, l.Available)
}

func TestMalformedPayloadIsRejected(t *testing.T) {
	orderHandlers, _, _ := newHandlers(t)
	err := orderHandlers["order.placed"](context.Background(), []byte(`{"orderId":`))
	assert.Error(t, err)
}

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopflow/inventory-service/internal/inventory/application"
	"github.com/shopflow/inventory-service/internal/inventory/domain"
)

type Handler struct {
	log    *slog.Logger
	engine *application.Engine
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, engine *application.Engine) *Handler {
	return &Handler{
		log:    log,
		engine: engine,
		tracer: otel.Tracer("inventory-http"),
	}
}

func (h *Handler) Routes(jwtSecret string) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.health)

	r.Route("/inventory", func(r chi.Router) {
		r.Use(Auth(jwtSecret))
		r.Get("/", h.listLedgers)
		r.Post("/", h.createLedger)
		r.Get("/product/{productID}", h.ledgerDetail)
		r.Put("/{id}", h.updateThresholds)
		r.Post("/{id}/adjust", h.adjustStock)
		r.Get("/{id}/transactions", h.listTransactions)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ok(w, "ok", nil)
}

type ledgerResponse struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"productId"`
	SKU          string    `json:"sku"`
	Available    int       `json:"availableQuantity"`
	Reserved     int       `json:"reservedQuantity"`
	Total        int       `json:"totalQuantity"`
	ReorderLevel int       `json:"reorderLevel"`
	ReorderQty   int       `json:"reorderQuantity"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toLedgerResponse(l domain.StockLedger) ledgerResponse {
	return ledgerResponse{
		ID:           l.ID,
		ProductID:    l.ProductID,
		SKU:          l.SKU,
		Available:    l.Available,
		Reserved:     l.Reserved,
		Total:        l.Total,
		ReorderLevel: l.ReorderLevel,
		ReorderQty:   l.ReorderQty,
		UpdatedAt:    l.UpdatedAt,
	}
}

type reservationResponse struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"orderId"`
	UserID    string     `json:"userId"`
	Quantity  int        `json:"quantity"`
	Status    string     `json:"status"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	Completed *time.Time `json:"completedAt,omitempty"`
}

func (h *Handler) listLedgers(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListLedgers")
	defer span.End()

	page, limit := queryPage(r)
	filter := application.LedgerFilter{
		LowStock: r.URL.Query().Get("lowStock") == "true",
		Page:     page,
		Limit:    limit,
	}
	ledgers, total, err := h.engine.ListLedgers(ctx, filter)
	if err != nil {
		writeError(h.log, w, err)
		return
	}

	out := make([]ledgerResponse, 0, len(ledgers))
	for _, l := range ledgers {
		out = append(out, toLedgerResponse(l))
	}
	okPaged(w, "inventory ledgers", out, pageMeta{Page: page, Limit: limit, Total: total})
}

func (h *Handler) ledgerDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "LedgerDetail")
	defer span.End()

	detail, err := h.engine.LedgerDetail(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeError(h.log, w, err)
		return
	}

	reservations := make([]reservationResponse, 0, len(detail.Reservations))
	for _, res := range detail.Reservations {
		reservations = append(reservations, reservationResponse{
			ID:        res.ID.String(),
			OrderID:   res.OrderID,
			UserID:    res.UserID,
			Quantity:  res.Quantity,
			Status:    string(res.Status),
			ExpiresAt: res.ExpiresAt,
			CreatedAt: res.CreatedAt,
			Completed: res.CompletedAt,
		})
	}
	ok(w, "inventory ledger", map[string]any{
		"ledger":       toLedgerResponse(detail.Ledger),
		"reservations": reservations,
	})
}

type createLedgerRequest struct {
	ProductID       string `json:"productId"`
	SKU             string `json:"sku"`
	InitialQuantity int    `json:"initialQuantity"`
	ReorderLevel    int    `json:"reorderLevel"`
	ReorderQuantity int    `json:"reorderQuantity"`
}

func (r createLedgerRequest) validate() map[string]string {
	errs := map[string]string{}
	if r.ProductID == "" {
		errs["productId"] = "required"
	}
	if r.SKU == "" {
		errs["sku"] = "required"
	}
	if r.InitialQuantity < 0 {
		errs["initialQuantity"] = "must not be negative"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (h *Handler) createLedger(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateLedger")
	defer span.End()

	var req createLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if errs := req.validate(); errs != nil {
		fail(w, http.StatusBadRequest, "validation failed", errs)
		return
	}

	ledger, err := h.engine.CreateLedger(ctx, application.CreateLedgerCommand{
		ProductID:    req.ProductID,
		SKU:          req.SKU,
		InitialQty:   req.InitialQuantity,
		ReorderLevel: req.ReorderLevel,
		ReorderQty:   req.ReorderQuantity,
	})
	if err != nil {
		writeError(h.log, w, err)
		return
	}
	created(w, "inventory ledger created", toLedgerResponse(*ledger))
}

type updateThresholdsRequest struct {
	ReorderLevel    int `json:"reorderLevel"`
	ReorderQuantity int `json:"reorderQuantity"`
}

func (h *Handler) updateThresholds(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateThresholds")
	defer span.End()

	var req updateThresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	ledger, err := h.engine.UpdateThresholds(ctx, chi.URLParam(r, "id"), req.ReorderLevel, req.ReorderQuantity)
	if err != nil {
		writeError(h.log, w, err)
		return
	}
	ok(w, "reorder thresholds updated", toLedgerResponse(*ledger))
}

type adjustRequest struct {
	Quantity  int    `json:"quantity"`
	Type      string `json:"type"`
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdjustStock")
	defer span.End()

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if !domain.ValidTransactionType(domain.TransactionType(req.Type)) {
		fail(w, http.StatusBadRequest, "validation failed",
			map[string]string{"type": "must be PURCHASE, SALE, RETURN, DAMAGE or ADJUSTMENT"})
		return
	}

	ledger, err := h.engine.AdjustStock(ctx, application.AdjustCommand{
		LedgerID:  chi.URLParam(r, "id"),
		Delta:     req.Quantity,
		Type:      domain.TransactionType(req.Type),
		Reference: req.Reference,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(h.log, w, err)
		return
	}
	ok(w, "stock adjusted", toLedgerResponse(*ledger))
}

type transactionResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Quantity  int       `json:"quantity"`
	Reference string    `json:"reference,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListTransactions")
	defer span.End()

	page, limit := queryPage(r)
	txs, total, err := h.engine.ListTransactions(ctx, chi.URLParam(r, "id"),
		application.Page{Page: page, Limit: limit})
	if err != nil {
		writeError(h.log, w, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionResponse{
			ID:        t.ID,
			Type:      string(t.Type),
			Quantity:  t.Quantity,
			Reference: t.Reference,
			Notes:     t.Notes,
			CreatedAt: t.CreatedAt,
		})
	}
	okPaged(w, "stock transactions", out, pageMeta{Page: page, Limit: limit, Total: total})
}

func queryPage(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

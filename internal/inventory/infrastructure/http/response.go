package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopflow/inventory-service/internal/inventory/domain"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Meta    *pageMeta         `json:"meta,omitempty"`
}

type pageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func ok(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func okPaged(w http.ResponseWriter, message string, data any, meta pageMeta) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data, Meta: &meta})
}

func created(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

func fail(w http.ResponseWriter, status int, message string, fieldErrors map[string]string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Errors: fieldErrors})
}

// writeError maps engine errors onto the uniform failure envelope.
func writeError(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrLedgerNotFound),
		errors.Is(err, domain.ErrReservationNotFound):
		fail(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidAdjustment),
		errors.Is(err, domain.ErrDuplicateLedger),
		errors.Is(err, domain.ErrInvalidQuantity):
		fail(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Error("request failed", "err", err)
		fail(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Reservation is a temporary hold of stock against one order line.
// The (OrderID, LedgerID) pair is unique; redelivered order signals
// find the existing row instead of creating a second hold.
type Reservation struct {
	ID          uuid.UUID
	LedgerID    string
	OrderID     string
	UserID      string
	Quantity    int
	Status      ReservationStatus
	ExpiresAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewReservation(ledgerID, orderID, userID string, quantity int, ttl time.Duration) *Reservation {
	now := time.Now().UTC()
	return &Reservation{
		ID:        uuid.New(),
		LedgerID:  ledgerID,
		OrderID:   orderID,
		UserID:    userID,
		Quantity:  quantity,
		Status:    ReservationActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Reservation) Active() bool {
	return r.Status == ReservationActive
}

func (r *Reservation) Expired(now time.Time) bool {
	return r.Active() && now.After(r.ExpiresAt)
}

// Complete marks the reservation as a finished sale. Terminal.
func (r *Reservation) Complete(now time.Time) {
	r.Status = ReservationCompleted
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// Cancel returns the hold without completing a sale. Terminal.
func (r *Reservation) Cancel(now time.Time) {
	r.Status = ReservationCancelled
	r.UpdatedAt = now
}

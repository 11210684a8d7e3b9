package domain

import "errors"

var (
	ErrLedgerNotFound      = errors.New("ledger not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidAdjustment   = errors.New("adjustment would drive available stock negative")
	ErrDuplicateLedger     = errors.New("ledger already exists for product")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrVersionConflict     = errors.New("ledger version conflict")
)

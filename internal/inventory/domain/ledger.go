package domain

import "time"

// StockLedger is the authoritative quantity record for one product.
// After every mutation Available + Reserved == Total must hold.
type StockLedger struct {
	ID           string
	ProductID    string
	SKU          string
	Available    int
	Reserved     int
	Total        int
	ReorderLevel int
	ReorderQty   int
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewStockLedger(id, productID, sku string, initialQty, reorderLevel, reorderQty int) *StockLedger {
	now := time.Now().UTC()
	return &StockLedger{
		ID:           id,
		ProductID:    productID,
		SKU:          sku,
		Available:    initialQty,
		Reserved:     0,
		Total:        initialQty,
		ReorderLevel: reorderLevel,
		ReorderQty:   reorderQty,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (l *StockLedger) CanReserve(quantity int) bool {
	return l.Available >= quantity
}

// Reserve moves stock from the available pool into the reserved pool.
func (l *StockLedger) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !l.CanReserve(quantity) {
		return ErrInsufficientStock
	}
	l.Available -= quantity
	l.Reserved += quantity
	l.touch()
	return nil
}

// Release returns previously reserved stock to the available pool.
func (l *StockLedger) Release(quantity int) {
	if quantity > l.Reserved {
		quantity = l.Reserved
	}
	l.Reserved -= quantity
	l.Available += quantity
	l.touch()
}

// Confirm removes reserved stock permanently; the goods have shipped.
func (l *StockLedger) Confirm(quantity int) {
	if quantity > l.Reserved {
		quantity = l.Reserved
	}
	l.Reserved -= quantity
	l.Total -= quantity
	l.touch()
}

// Adjust applies a signed delta to the available pool and total together.
func (l *StockLedger) Adjust(delta int) error {
	if l.Available+delta < 0 {
		return ErrInvalidAdjustment
	}
	l.Available += delta
	l.Total += delta
	l.touch()
	return nil
}

func (l *StockLedger) SetThresholds(reorderLevel, reorderQty int) {
	l.ReorderLevel = reorderLevel
	l.ReorderQty = reorderQty
	l.touch()
}

func (l *StockLedger) LowStock() bool {
	return l.Available <= l.ReorderLevel
}

func (l *StockLedger) touch() {
	l.Version++
	l.UpdatedAt = time.Now().UTC()
}

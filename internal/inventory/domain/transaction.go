package domain

import "time"

type TransactionType string

const (
	TxPurchase   TransactionType = "PURCHASE"
	TxSale       TransactionType = "SALE"
	TxReturn     TransactionType = "RETURN"
	TxDamage     TransactionType = "DAMAGE"
	TxAdjustment TransactionType = "ADJUSTMENT"
)

func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TxPurchase, TxSale, TxReturn, TxDamage, TxAdjustment:
		return true
	}
	return false
}

// StockTransaction is one row of the append-only audit log. Rows are
// never updated or deleted; ledger fields stay authoritative for reads.
type StockTransaction struct {
	ID        int64
	LedgerID  string
	Type      TransactionType
	Quantity  int
	Reference string
	Notes     string
	CreatedAt time.Time
}

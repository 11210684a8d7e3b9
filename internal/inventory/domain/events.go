package domain

const (
	EventStockReserved = "inventory.reserved"
	EventStockReleased = "inventory.released"
	EventReserveFailed = "inventory.reserve-failed"
	EventLowStock      = "inventory.low-stock"
)

type StockReserved struct {
	OrderID       string `json:"orderId"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	ReservationID string `json:"reservationId"`
}

type StockReleased struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type ReserveFailed struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
}

type LowStock struct {
	ProductID    string `json:"productId"`
	SKU          string `json:"sku"`
	Available    int    `json:"availableQuantity"`
	ReorderLevel int    `json:"reorderLevel"`
}

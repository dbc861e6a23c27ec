package models

import "time"

// Inventory log types
const (
	InventoryIn         = "in"
	InventoryOut        = "out"
	InventoryAdjustment = "adjustment"
	InventorySale       = "sale"
	InventoryReturn     = "return"
)

// InventoryLog is an append-only ledger row kept in PostgreSQL.
type InventoryLog struct {
	ID               int64     `db:"id" json:"id"`
	ProductID        string    `db:"product_id" json:"product"`
	UserID           string    `db:"user_id" json:"user,omitempty"`
	Type             string    `db:"type" json:"type"`
	QuantityChange   int       `db:"quantity_change" json:"quantityChange"`
	PreviousQuantity int       `db:"previous_quantity" json:"previousQuantity"`
	NewQuantity      int       `db:"new_quantity" json:"newQuantity"`
	Reason           string    `db:"reason" json:"reason,omitempty"`
	OrderID          string    `db:"order_id" json:"orderId,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

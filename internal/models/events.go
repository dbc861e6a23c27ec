package models

import "time"

// Event types
const (
	EventTypeOrderPlaced    = "ORDER_PLACED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderDelivered = "ORDER_DELIVERED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after an order commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	UserEmail     string          `json:"user_email,omitempty"`
	UserName      string          `json:"user_name,omitempty"`
	TotalAmount   float64         `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	Items         []OrderItemData `json:"items"`
}

// OrderStatusEvent published when an order is paid or delivered
type OrderStatusEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID        string  `json:"product_id"`
	Title            string  `json:"title,omitempty"`
	Quantity         int     `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	PreviousQuantity int     `json:"previous_quantity"`
	NewQuantity      int     `json:"new_quantity"`
}

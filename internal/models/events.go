package models

import "time"

// Event types
const (
	EventTypeProductCreated = "PRODUCT_CREATED"
	EventTypeProductUpdated = "PRODUCT_UPDATED"
	EventTypeProductDeleted = "PRODUCT_DELETED"
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderUpdated   = "ORDER_UPDATED"
	EventTypeOrderDeleted   = "ORDER_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductEvent is published when a catalog entry changes
type ProductEvent struct {
	BaseEvent
	ProductID string   `json:"product_id"`
	Product   *Product `json:"product,omitempty"`
}

// OrderCreatedEvent published when checkout persists an order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	Total   float64         `json:"total"`
	Items   []OrderItemData `json:"items"`
}

// OrderUpdatedEvent published when an admin changes an order
type OrderUpdatedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// OrderDeletedEvent published when an order is removed
type OrderDeletedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

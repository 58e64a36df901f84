package models

import "time"

// Meta holds the fields every persisted record carries
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordMeta gives the record store access to the identity and timestamps
func (m *Meta) RecordMeta() *Meta {
	return m
}

// Product represents a product in the catalog
type Product struct {
	Meta
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
	Stock       int      `json:"stock"`
}

// Clone returns a copy that shares no slices with p
func (p *Product) Clone() Product {
	c := *p
	if p.Images != nil {
		c.Images = append([]string(nil), p.Images...)
	}
	return c
}

// FirstImage returns the primary image reference or an empty string
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Customer is the buyer contact information captured at checkout
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Address is a postal shipping address
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// ProductSnapshot is the product data frozen into an order line
type ProductSnapshot struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// OrderItem represents a line in an order
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Product   ProductSnapshot `json:"product"`
}

// Order represents a customer order
type Order struct {
	Meta
	Customer         Customer    `json:"customer"`
	ShippingAddress  Address     `json:"shipping_address"`
	Items            []OrderItem `json:"items"`
	Subtotal         float64     `json:"subtotal"`
	Shipping         float64     `json:"shipping"`
	Tax              float64     `json:"tax"`
	Total            float64     `json:"total"`
	Status           string      `json:"status"`
	PaymentStatus    string      `json:"payment_status"`
	PaymentMethod    string      `json:"payment_method"`
	Notes            string      `json:"notes"`
	InventoryApplied bool        `json:"inventory_applied"`
}

// Clone returns a copy that shares no slices with o
func (o *Order) Clone() Order {
	c := *o
	if o.Items != nil {
		c.Items = append([]OrderItem(nil), o.Items...)
	}
	return c
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// ValidOrderStatus reports whether s is a known order status
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a known payment status
func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

package store

import (
	"context"
	"strings"

	"storefront/internal/models"
)

// OrderPatch carries the order fields an admin may change; nil fields are left as is
type OrderPatch struct {
	Status          *string          `json:"status"`
	PaymentStatus   *string          `json:"payment_status"`
	PaymentMethod   *string          `json:"payment_method"`
	Notes           *string          `json:"notes"`
	Customer        *models.Customer `json:"customer"`
	ShippingAddress *models.Address  `json:"shipping_address"`
}

func (p OrderPatch) apply(o *models.Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentMethod != nil {
		o.PaymentMethod = *p.PaymentMethod
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.Customer != nil {
		o.Customer = *p.Customer
	}
	if p.ShippingAddress != nil {
		o.ShippingAddress = *p.ShippingAddress
	}
}

// OrderStore persists orders
type OrderStore struct {
	records *RecordStore[models.Order, *models.Order]
}

// NewOrderStore creates an order store over backend
func NewOrderStore(backend Backend, opts ...Option) *OrderStore {
	return &OrderStore{
		records: NewRecordStore[models.Order, *models.Order]("orders", backend, sanitizeOrder, opts...),
	}
}

// Reload re-reads the backend
func (s *OrderStore) Reload(ctx context.Context) {
	s.records.Reload(ctx)
}

// GetOrders returns all orders in insertion order
func (s *OrderStore) GetOrders(ctx context.Context) []models.Order {
	return s.records.GetAll(ctx)
}

// GetOrderByID retrieves an order by ID
func (s *OrderStore) GetOrderByID(ctx context.Context, id string) (models.Order, error) {
	return s.records.GetByID(ctx, id)
}

// CreateOrder stores a new order
func (s *OrderStore) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	return s.records.Create(ctx, order)
}

// UpdateOrder merges patch into the stored order
func (s *OrderStore) UpdateOrder(ctx context.Context, id string, patch OrderPatch) (models.Order, error) {
	return s.records.Update(ctx, id, patch.apply)
}

// MarkInventoryApplied sets the inventory_applied flag and reports whether
// it was already set. The check and the write happen in one mutation, so only
// one caller ever sees false for a given order.
func (s *OrderStore) MarkInventoryApplied(ctx context.Context, id string) (alreadyApplied bool, err error) {
	_, err = s.records.Update(ctx, id, func(o *models.Order) {
		alreadyApplied = o.InventoryApplied
		o.InventoryApplied = true
	})
	return alreadyApplied, err
}

// DeleteOrder removes an order
func (s *OrderStore) DeleteOrder(ctx context.Context, id string) error {
	return s.records.Delete(ctx, id)
}

func sanitizeOrder(o *models.Order) {
	o.Customer.Name = strings.TrimSpace(o.Customer.Name)
	o.Customer.Email = strings.TrimSpace(o.Customer.Email)
	o.Customer.Phone = strings.TrimSpace(o.Customer.Phone)

	a := &o.ShippingAddress
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)

	items := make([]models.OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.Quantity = clampInt(item.Quantity)
		item.Product.ID = strings.TrimSpace(item.Product.ID)
		item.Product.Name = strings.TrimSpace(item.Product.Name)
		item.Product.Image = strings.TrimSpace(item.Product.Image)
		item.Product.Price = clampFloat(item.Product.Price)
		items = append(items, item)
	}
	o.Items = items

	o.Subtotal = clampFloat(o.Subtotal)
	o.Shipping = clampFloat(o.Shipping)
	o.Tax = clampFloat(o.Tax)
	o.Total = clampFloat(o.Total)

	o.Status = strings.TrimSpace(o.Status)
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	o.PaymentStatus = strings.TrimSpace(o.PaymentStatus)
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.PaymentStatusPending
	}
	o.PaymentMethod = strings.TrimSpace(o.PaymentMethod)
	o.Notes = strings.TrimSpace(o.Notes)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IdempotencyStore remembers which order a checkout key produced.
// redisclient.Client implements it.
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error
}

// CheckoutConfig holds the pricing rules applied at checkout
type CheckoutConfig struct {
	ShippingFlat          float64
	FreeShippingThreshold float64
	TaxRate               float64
	PlaceholderImage      string
	IdempotencyTTL        time.Duration
}

// OrderService handles order business logic
type OrderService struct {
	orders         *store.OrderStore
	products       *store.ProductStore
	carts          *CartService
	idempotency    IdempotencyStore
	eventPublisher *broker.EventPublisher
	config         CheckoutConfig
	logger         *zap.Logger
}

// NewOrderService creates a new order service. carts and idempotency may be
// nil, which disables cart clearing and idempotent checkout respectively.
func NewOrderService(
	orders *store.OrderStore,
	products *store.ProductStore,
	carts *CartService,
	idempotency IdempotencyStore,
	eventPublisher *broker.EventPublisher,
	config CheckoutConfig,
) *OrderService {
	return &OrderService{
		orders:         orders,
		products:       products,
		carts:          carts,
		idempotency:    idempotency,
		eventPublisher: eventPublisher,
		config:         config,
		logger:         util.Named("orders"),
	}
}

// CreateOrderRequest represents a checkout submission
type CreateOrderRequest struct {
	Customer        models.Customer    `json:"customer"`
	ShippingAddress models.Address     `json:"shipping_address"`
	Items           []OrderItemRequest `json:"items"`
	PaymentMethod   string             `json:"payment_method"`
	Notes           string             `json:"notes"`

	// IdempotencyKey and CartSession come from request headers
	IdempotencyKey string `json:"-"`
	CartSession    string `json:"-"`
}

// OrderItemRequest represents an item in a checkout. Name and Price are only
// used when the product no longer exists in the catalog.
type OrderItemRequest struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
}

// Totals are the monetary amounts of an order
type Totals struct {
	Subtotal float64
	Shipping float64
	Tax      float64
	Total    float64
}

// CreateOrder validates a checkout, snapshots the ordered products and
// persists the order
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if existing, ok := s.lookupIdempotent(ctx, req.IdempotencyKey); ok {
		return existing, nil
	}

	if err := validateCheckout(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return models.Order{}, err
	}

	items, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("product_lookup").Inc()
		return models.Order{}, err
	}

	totals := CalculateTotals(items, s.config)

	order, err := s.orders.CreateOrder(ctx, models.Order{
		Customer:        req.Customer,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		Subtotal:        totals.Subtotal,
		Shipping:        totals.Shipping,
		Tax:             totals.Tax,
		Total:           totals.Total,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("store_error").Inc()
		return models.Order{}, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Float64("total", order.Total),
		zap.Int("lines", len(order.Items)))

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, s.config.IdempotencyTTL); err != nil {
			s.logger.Error("Failed to store idempotency key",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		}
	}

	if req.CartSession != "" && s.carts != nil {
		s.carts.Clear(ctx, req.CartSession)
	}

	if err := s.eventPublisher.PublishOrderCreated(ctx, &order); err != nil {
		s.logger.Error("Failed to publish OrderCreated event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	return order, nil
}

func (s *OrderService) lookupIdempotent(ctx context.Context, key string) (models.Order, bool) {
	if key == "" || s.idempotency == nil {
		return models.Order{}, false
	}

	orderID, found, err := s.idempotency.GetIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed, processing request", zap.Error(err))
		return models.Order{}, false
	}
	if !found {
		return models.Order{}, false
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return models.Order{}, false
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", order.ID))
	return order, true
}

// snapshotItems freezes the authoritative name, price and image of every
// ordered product. A product missing from the catalog keeps the name and
// price the client sent, with the placeholder image.
func (s *OrderService) snapshotItems(ctx context.Context, reqItems []OrderItemRequest) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(reqItems))
	for _, it := range reqItems {
		productID := strings.TrimSpace(it.ProductID)

		snapshot := models.ProductSnapshot{
			ID:    productID,
			Name:  strings.TrimSpace(it.Name),
			Price: max(it.Price, 0),
			Image: s.config.PlaceholderImage,
		}

		product, err := s.products.GetProductByID(ctx, productID)
		switch {
		case err == nil:
			snapshot.Name = product.Name
			snapshot.Price = product.Price
			if img := product.FirstImage(); img != "" {
				snapshot.Image = img
			}
		case errors.Is(err, store.ErrNotFound):
			s.logger.Warn("Ordered product not in catalog, using submitted details",
				zap.String("product_id", productID))
		default:
			return nil, fmt.Errorf("failed to load product %s: %w", productID, err)
		}

		items = append(items, models.OrderItem{
			ProductID: productID,
			Quantity:  it.Quantity,
			Product:   snapshot,
		})
	}
	return items, nil
}

// CalculateTotals prices the items: shipping is flat unless the subtotal
// reaches a positive free-shipping threshold, and tax applies to the subtotal.
func CalculateTotals(items []models.OrderItem, cfg CheckoutConfig) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		price := decimal.NewFromFloat(item.Product.Price)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	subtotal = subtotal.Round(2)

	shipping := finiteDecimal(cfg.ShippingFlat).Round(2)
	threshold := finiteDecimal(cfg.FreeShippingThreshold)
	if threshold.IsPositive() && subtotal.GreaterThanOrEqual(threshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(finiteDecimal(cfg.TaxRate)).Round(2)
	total := subtotal.Add(shipping).Add(tax)

	return Totals{
		Subtotal: subtotal.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}
}

// finiteDecimal treats NaN and infinities as zero
func finiteDecimal(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func validateCheckout(req *CreateOrderRequest) error {
	required := []struct {
		field, value string
	}{
		{"customer.name", req.Customer.Name},
		{"customer.email", req.Customer.Email},
		{"shipping_address.line1", req.ShippingAddress.Line1},
		{"shipping_address.city", req.ShippingAddress.City},
		{"shipping_address.postal_code", req.ShippingAddress.PostalCode},
		{"shipping_address.country", req.ShippingAddress.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid(r.field, "is required")
		}
	}

	if _, err := mail.ParseAddress(strings.TrimSpace(req.Customer.Email)); err != nil {
		return invalid("customer.email", "is not a valid email address")
	}

	if len(req.Items) == 0 {
		return invalid("items", "must contain at least one item")
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return invalid(fmt.Sprintf("items[%d].product_id", i), "is required")
		}
		if item.Quantity < 1 {
			return invalid(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
	}
	return nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	return s.orders.GetOrderByID(ctx, orderID)
}

// ListOrders returns all orders, optionally only those with status
func (s *OrderService) ListOrders(ctx context.Context, status string) []models.Order {
	orders := s.orders.GetOrders(ctx)
	if status == "" {
		return orders
	}

	filtered := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// UpdateOrder applies an admin change such as a status transition
func (s *OrderService) UpdateOrder(ctx context.Context, orderID string, patch store.OrderPatch) (models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder")
	defer span.End()

	if patch.Status != nil && !models.ValidOrderStatus(*patch.Status) {
		return models.Order{}, invalid("status", fmt.Sprintf("unknown order status %q", *patch.Status))
	}
	if patch.PaymentStatus != nil && !models.ValidPaymentStatus(*patch.PaymentStatus) {
		return models.Order{}, invalid("payment_status", fmt.Sprintf("unknown payment status %q", *patch.PaymentStatus))
	}

	order, err := s.orders.UpdateOrder(ctx, orderID, patch)
	if err != nil {
		return models.Order{}, err
	}

	s.logger.Info("Order updated",
		zap.String("order_id", order.ID),
		zap.String("status", order.Status),
		zap.String("payment_status", order.PaymentStatus))

	if err := s.eventPublisher.PublishOrderUpdated(ctx, &order); err != nil {
		s.logger.Error("Failed to publish OrderUpdated event", zap.String("order_id", order.ID), zap.Error(err))
	}
	return order, nil
}

// DeleteOrder removes an order
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		return err
	}

	s.logger.Info("Order deleted", zap.String("order_id", orderID))
	if err := s.eventPublisher.PublishOrderDeleted(ctx, orderID); err != nil {
		s.logger.Error("Failed to publish OrderDeleted event", zap.String("order_id", orderID), zap.Error(err))
	}
	return nil
}

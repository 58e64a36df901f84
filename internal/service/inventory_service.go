package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// InventoryService applies the stock effects of orders
type InventoryService struct {
	products *store.ProductStore
	orders   *store.OrderStore
	logger   *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(products *store.ProductStore, orders *store.OrderStore) *InventoryService {
	return &InventoryService{
		products: products,
		orders:   orders,
		logger:   util.Named("inventory"),
	}
}

// ApplyOrder decrements stock for every line of the order, at most once per
// order. The order is marked before stock moves, so a failure halfway leaves
// stock too high rather than decremented twice on redelivery.
func (s *InventoryService) ApplyOrder(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.ApplyOrder")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	already, err := s.orders.MarkInventoryApplied(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark order %s: %w", orderID, err)
	}
	if already {
		s.logger.Debug("Inventory already applied", zap.String("order_id", orderID))
		return nil
	}

	var failed error
	for _, item := range order.Items {
		if _, err := s.products.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("Product gone, skipping stock decrement",
					zap.String("order_id", orderID),
					zap.String("product_id", item.ProductID))
				continue
			}
			s.logger.Error("Failed to decrement stock",
				zap.String("order_id", orderID),
				zap.String("product_id", item.ProductID),
				zap.Error(err))
			failed = errors.Join(failed, err)
		}
	}
	if failed != nil {
		return failed
	}

	util.InventoryAppliedTotal.Inc()
	s.logger.Info("Inventory applied", zap.String("order_id", orderID), zap.Int("lines", len(order.Items)))
	return nil
}

// HandleOrderCreated applies the inventory of a newly created order
func (s *InventoryService) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return s.ApplyOrder(ctx, event.OrderID)
}

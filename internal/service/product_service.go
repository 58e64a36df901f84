package service

import (
	"context"
	"strings"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ProductService manages the catalog
type ProductService struct {
	products       *store.ProductStore
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(products *store.ProductStore, eventPublisher *broker.EventPublisher) *ProductService {
	return &ProductService{
		products:       products,
		eventPublisher: eventPublisher,
		logger:         util.Named("products"),
	}
}

// ProductRequest is the payload for creating a product
type ProductRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
	Stock       int      `json:"stock"`
}

// ListProducts returns the catalog, optionally narrowed to one category
func (s *ProductService) ListProducts(ctx context.Context, category string) []models.Product {
	products := s.products.GetProducts(ctx)
	if category == "" {
		return products
	}

	filtered := make([]models.Product, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(p.Category, category) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// GetProduct retrieves a product by ID
func (s *ProductService) GetProduct(ctx context.Context, id string) (models.Product, error) {
	return s.products.GetProductByID(ctx, id)
}

// CreateProduct validates and stores a new product
func (s *ProductService) CreateProduct(ctx context.Context, req *ProductRequest) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	if strings.TrimSpace(req.Name) == "" {
		return models.Product{}, invalid("name", "is required")
	}

	product, err := s.products.CreateProduct(ctx, models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Images:      req.Images,
		Stock:       req.Stock,
	})
	if err != nil {
		return models.Product{}, err
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID))
	s.publish(ctx, models.EventTypeProductCreated, product.ID, &product)
	return product, nil
}

// UpdateProduct applies a partial update
func (s *ProductService) UpdateProduct(ctx context.Context, id string, patch store.ProductPatch) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct")
	defer span.End()

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return models.Product{}, invalid("name", "must not be empty")
	}

	product, err := s.products.UpdateProduct(ctx, id, patch)
	if err != nil {
		return models.Product{}, err
	}

	s.publish(ctx, models.EventTypeProductUpdated, product.ID, &product)
	return product, nil
}

// DeleteProduct removes a product. Orders keep their snapshots.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Product deleted", zap.String("product_id", id))
	s.publish(ctx, models.EventTypeProductDeleted, id, nil)
	return nil
}

func (s *ProductService) publish(ctx context.Context, eventType, id string, product *models.Product) {
	if err := s.eventPublisher.PublishProductEvent(ctx, eventType, id, product); err != nil {
		s.logger.Error("Failed to publish product event",
			zap.String("event_type", eventType),
			zap.String("product_id", id),
			zap.Error(err))
	}
}

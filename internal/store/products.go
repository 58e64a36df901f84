package store

import (
	"context"
	"math"
	"strings"

	"storefront/internal/models"
)

// ProductPatch carries the product fields to change; nil fields are left as is
type ProductPatch struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Price       *float64  `json:"price"`
	Category    *string   `json:"category"`
	Images      *[]string `json:"images"`
	Stock       *int      `json:"stock"`
}

func (p ProductPatch) apply(prod *models.Product) {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Category != nil {
		prod.Category = *p.Category
	}
	if p.Images != nil {
		prod.Images = append([]string(nil), (*p.Images)...)
	}
	if p.Stock != nil {
		prod.Stock = *p.Stock
	}
}

// ProductStore persists the catalog
type ProductStore struct {
	records *RecordStore[models.Product, *models.Product]
}

// NewProductStore creates a product store over backend
func NewProductStore(backend Backend, opts ...Option) *ProductStore {
	return &ProductStore{
		records: NewRecordStore[models.Product, *models.Product]("products", backend, sanitizeProduct, opts...),
	}
}

// Reload re-reads the backend
func (s *ProductStore) Reload(ctx context.Context) {
	s.records.Reload(ctx)
}

// GetProducts returns all products in insertion order
func (s *ProductStore) GetProducts(ctx context.Context) []models.Product {
	return s.records.GetAll(ctx)
}

// GetProductByID retrieves a product by ID
func (s *ProductStore) GetProductByID(ctx context.Context, id string) (models.Product, error) {
	return s.records.GetByID(ctx, id)
}

// CreateProduct stores a new product and returns it with id and timestamps set
func (s *ProductStore) CreateProduct(ctx context.Context, product models.Product) (models.Product, error) {
	return s.records.Create(ctx, product)
}

// UpdateProduct merges patch into the stored product
func (s *ProductStore) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (models.Product, error) {
	return s.records.Update(ctx, id, patch.apply)
}

// AdjustStock adds delta to the product stock, clamping at zero
func (s *ProductStore) AdjustStock(ctx context.Context, id string, delta int) (models.Product, error) {
	return s.records.Update(ctx, id, func(p *models.Product) {
		p.Stock += delta
	})
}

// DeleteProduct removes a product
func (s *ProductStore) DeleteProduct(ctx context.Context, id string) error {
	return s.records.Delete(ctx, id)
}

func sanitizeProduct(p *models.Product) {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Category = strings.TrimSpace(p.Category)
	p.Price = clampFloat(p.Price)
	p.Stock = clampInt(p.Stock)

	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	p.Images = images
}

func clampFloat(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

package service

import (
	"context"
	"errors"

	"storefront/internal/cart"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CartView is a cart with its derived values
type CartView struct {
	Items     []cart.LineItem `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     float64         `json:"total"`
}

// CartService opens per-session carts on the configured storage. Two
// concurrent requests for the same session each load, mutate and save the
// whole cart; the later save wins.
type CartService struct {
	products *store.ProductStore
	storage  cart.Storage
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(products *store.ProductStore, storage cart.Storage) *CartService {
	return &CartService{
		products: products,
		storage:  storage,
		logger:   util.Named("cart"),
	}
}

func (s *CartService) open(ctx context.Context, session string) *cart.Store {
	return cart.Open(ctx, s.storage, cart.Key(session), s.logger)
}

// GetCart returns the session cart
func (s *CartService) GetCart(ctx context.Context, session string) CartView {
	return view(s.open(ctx, session))
}

// AddItem adds qty of a catalog product, clamped to its current stock
func (s *CartService) AddItem(ctx context.Context, session, productID string, qty int) (CartView, cart.Outcome, error) {
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return CartView{}, cart.Outcome{}, err
	}

	c := s.open(ctx, session)
	out, err := c.Add(ctx, cart.Product{
		ID:     product.ID,
		Name:   product.Name,
		Price:  product.Price,
		Images: product.Images,
		Stock:  product.Stock,
	}, qty)
	if errors.Is(err, cart.ErrInvalidQuantity) {
		return CartView{}, out, invalid("quantity", err.Error())
	}
	if err != nil {
		return CartView{}, out, err
	}
	return view(c), out, nil
}

// UpdateItem sets the quantity of a line; zero or less removes it
func (s *CartService) UpdateItem(ctx context.Context, session, productID string, qty int) (CartView, cart.Outcome) {
	c := s.open(ctx, session)
	out := c.UpdateQuantity(ctx, productID, qty)
	return view(c), out
}

// RemoveItem drops a line from the cart
func (s *CartService) RemoveItem(ctx context.Context, session, productID string) (CartView, cart.Outcome) {
	c := s.open(ctx, session)
	out := c.Remove(ctx, productID)
	return view(c), out
}

// Clear empties the session cart
func (s *CartService) Clear(ctx context.Context, session string) {
	s.open(ctx, session).Clear(ctx)
}

func view(c *cart.Store) CartView {
	return CartView{
		Items:     c.Items(),
		ItemCount: c.ItemCount(),
		Total:     c.Total(),
	}
}

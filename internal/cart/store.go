package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"storefront/internal/util"

	"go.uber.org/zap"
)

// Observer is called with the committed items after every mutation
type Observer func(ctx context.Context, items []LineItem)

// Store holds one visitor's cart. Mutations are applied synchronously and
// observers run after the new state is committed; an observer failing never
// fails the mutation.
type Store struct {
	mu        sync.Mutex
	items     []LineItem
	observers []Observer
	logger    *zap.Logger
}

// NewStore creates an empty cart with the given observers and no persistence
func NewStore(logger *zap.Logger, observers ...Observer) *Store {
	if logger == nil {
		logger = util.Named("cart")
	}
	return &Store{
		items:     []LineItem{},
		observers: observers,
		logger:    logger,
	}
}

// Open loads the cart saved under key and persists every later mutation back
// to storage. Unreadable or corrupt saved data is discarded and the cart
// starts empty.
func Open(ctx context.Context, storage Storage, key string, logger *zap.Logger) *Store {
	s := NewStore(logger)
	log := s.logger.With(zap.String("key", key))

	data, err := storage.Load(ctx, key)
	if err != nil {
		log.Warn("Failed to load cart, starting empty", zap.Error(err))
	} else if items, err := Decode(data); err != nil {
		log.Warn("Discarding corrupt cart data", zap.Error(err))
	} else {
		s.items = items
	}

	s.Observe(PersistTo(storage, key, log))
	return s
}

// PersistTo returns an observer that writes the items under key. Write
// failures are logged and counted, never returned.
func PersistTo(storage Storage, key string, logger *zap.Logger) Observer {
	return func(ctx context.Context, items []LineItem) {
		data, err := Encode(items)
		if err == nil {
			err = storage.Save(ctx, key, data)
		}
		if err != nil {
			util.CartPersistFailures.Inc()
			logger.Error("Failed to persist cart", zap.String("key", key), zap.Error(err))
		}
	}
}

// Observe registers an observer for later mutations
func (s *Store) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Add merges qty of product into the cart
func (s *Store) Add(ctx context.Context, product Product, qty int) (Outcome, error) {
	s.mu.Lock()
	next, out, err := Add(s.items, product, qty)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("Ignoring add with invalid quantity",
			zap.String("product_id", product.ID),
			zap.Int("quantity", qty))
		return out, err
	}
	s.commit(ctx, "add", next, out)
	return out, nil
}

// Remove drops the line for productID
func (s *Store) Remove(ctx context.Context, productID string) Outcome {
	s.mu.Lock()
	next, out := Remove(s.items, productID)
	s.commit(ctx, "remove", next, out)
	return out
}

// UpdateQuantity sets the quantity of the line for productID
func (s *Store) UpdateQuantity(ctx context.Context, productID string, qty int) Outcome {
	s.mu.Lock()
	next, out := UpdateQuantity(s.items, productID, qty)
	s.commit(ctx, "update", next, out)
	return out
}

// Clear empties the cart
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.commit(ctx, "clear", []LineItem{}, Outcome{})
}

// Items returns a copy of the line items
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

// ItemCount is the sum of all quantities
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ItemCount(s.items)
}

// Total is the sum of unit price times quantity
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Total(s.items)
}

// commit must be called with s.mu held; it releases the lock before
// notifying observers.
func (s *Store) commit(ctx context.Context, op string, next []LineItem, out Outcome) {
	s.items = next
	snapshot := clone(next)
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	util.CartOperations.WithLabelValues(op).Inc()
	if out.Clamped {
		util.CartQuantityClamped.Inc()
		s.logger.Debug("Cart quantity clamped to stock",
			zap.String("product_id", out.ProductID),
			zap.Int("requested", out.Requested),
			zap.Int("quantity", out.Quantity))
	}

	for _, o := range observers {
		o(ctx, snapshot)
	}
}

// Encode serializes items for storage
func Encode(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

// Decode parses stored items. Empty data yields an empty cart.
func Decode(data []byte) ([]LineItem, error) {
	if len(data) == 0 {
		return []LineItem{}, nil
	}
	var items []LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, errors.New("cart data is not a list")
	}
	return items, nil
}

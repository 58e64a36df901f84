package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ErrNotFound is returned when no record has the requested id
var ErrNotFound = errors.New("record not found")

// Record is the constraint satisfied by pointers to persisted entities
type Record[T any] interface {
	*T
	RecordMeta() *models.Meta
	Clone() T
}

type options struct {
	reloadOnAccess bool
	now            func() time.Time
	logger         *zap.Logger
}

// Option configures a RecordStore
type Option func(*options)

// WithReloadOnAccess controls whether reads re-read the backend first. It is
// on by default so several processes can share one backend; tests turn it
// off and call Reload explicitly.
func WithReloadOnAccess(enabled bool) Option {
	return func(o *options) { o.reloadOnAccess = enabled }
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger overrides the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// RecordStore is a CRUD engine over a homogeneous record set kept as a
// single JSON array document.
//
// Every mutation re-reads the document inside Backend.Mutate before applying
// the change, so the in-memory copy is a cache only and never authoritative
// between calls.
type RecordStore[T any, P Record[T]] struct {
	entity   string
	backend  Backend
	sanitize func(P)
	opts     options

	mu      sync.RWMutex
	records []T
}

// NewRecordStore creates a store for entity over backend. sanitize normalizes
// a record before every write.
func NewRecordStore[T any, P Record[T]](entity string, backend Backend, sanitize func(P), opts ...Option) *RecordStore[T, P] {
	o := options{
		reloadOnAccess: true,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         util.Named("store." + entity),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &RecordStore[T, P]{
		entity:   entity,
		backend:  backend,
		sanitize: sanitize,
		opts:     o,
	}
}

// Reload replaces the in-memory records with the backend content. An
// unreadable or corrupt document is logged and treated as empty.
func (s *RecordStore[T, P]) Reload(ctx context.Context) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		util.RecordStoreLoadFailures.WithLabelValues(s.entity).Inc()
		s.opts.logger.Error("Failed to read records, using empty set", zap.Error(err))
		s.setRecords(nil)
		return
	}
	s.setRecords(s.decode(data))
}

// GetAll returns copies of all records in insertion order
func (s *RecordStore[T, P]) GetAll(ctx context.Context) []T {
	if s.opts.reloadOnAccess {
		s.Reload(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.records))
	for i := range s.records {
		out = append(out, P(&s.records[i]).Clone())
	}
	util.RecordStoreOperations.WithLabelValues(s.entity, "get_all", "ok").Inc()
	return out
}

// GetByID returns a copy of the record with id, or ErrNotFound
func (s *RecordStore[T, P]) GetByID(ctx context.Context, id string) (T, error) {
	if s.opts.reloadOnAccess {
		s.Reload(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := indexOf[T, P](s.records, id); i >= 0 {
		util.RecordStoreOperations.WithLabelValues(s.entity, "get", "ok").Inc()
		return P(&s.records[i]).Clone(), nil
	}

	util.RecordStoreOperations.WithLabelValues(s.entity, "get", "not_found").Inc()
	var zero T
	return zero, ErrNotFound
}

// Create assigns the next id, stamps both timestamps and persists rec
func (s *RecordStore[T, P]) Create(ctx context.Context, rec T) (T, error) {
	var created T
	err := s.mutate(ctx, "create", func(records []T) ([]T, error) {
		created = P(&rec).Clone()
		p := P(&created)
		s.sanitize(p)

		now := s.opts.now()
		meta := p.RecordMeta()
		meta.ID = nextID[T, P](records)
		meta.CreatedAt = now
		meta.UpdatedAt = now

		return append(records, P(&created).Clone()), nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return created, nil
}

// Update applies patch to the record with id. id and created_at always keep
// their stored values; updated_at is refreshed. A missing id returns
// ErrNotFound and leaves the document untouched.
func (s *RecordStore[T, P]) Update(ctx context.Context, id string, patch func(P)) (T, error) {
	var updated T
	err := s.mutate(ctx, "update", func(records []T) ([]T, error) {
		i := indexOf[T, P](records, id)
		if i < 0 {
			return nil, ErrNotFound
		}

		original := *P(&records[i]).RecordMeta()
		updated = P(&records[i]).Clone()
		p := P(&updated)
		patch(p)
		s.sanitize(p)

		meta := p.RecordMeta()
		meta.ID = original.ID
		meta.CreatedAt = original.CreatedAt
		meta.UpdatedAt = s.opts.now()
		if meta.UpdatedAt.Before(original.UpdatedAt) {
			meta.UpdatedAt = original.UpdatedAt
		}

		records[i] = P(&updated).Clone()
		return records, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return updated, nil
}

// Delete removes the record with id, or returns ErrNotFound
func (s *RecordStore[T, P]) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete", func(records []T) ([]T, error) {
		i := indexOf[T, P](records, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(records[:i], records[i+1:]...), nil
	})
}

// mutate runs fn inside the backend read-modify-write cycle and refreshes
// the in-memory records once the write succeeded.
func (s *RecordStore[T, P]) mutate(ctx context.Context, op string, fn func([]T) ([]T, error)) error {
	ctx, span := util.StartSpan(ctx, "RecordStore."+op)
	defer span.End()

	start := time.Now()
	defer func() {
		util.RecordStoreMutationLatency.WithLabelValues(s.entity, op).Observe(time.Since(start).Seconds())
	}()

	var committed []T
	err := s.backend.Mutate(ctx, func(current []byte) ([]byte, error) {
		next, err := fn(s.decode(current))
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []T{}
		}

		data, err := json.MarshalIndent(next, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", s.entity, err)
		}
		committed = next
		return data, nil
	})

	switch {
	case errors.Is(err, ErrNotFound):
		util.RecordStoreOperations.WithLabelValues(s.entity, op, "not_found").Inc()
		return err
	case err != nil:
		util.RecordStoreOperations.WithLabelValues(s.entity, op, "error").Inc()
		s.opts.logger.Error("Failed to persist records", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("failed to %s %s: %w", op, s.entity, err)
	}

	util.RecordStoreOperations.WithLabelValues(s.entity, op, "ok").Inc()
	s.setRecords(committed)
	return nil
}

func (s *RecordStore[T, P]) decode(data []byte) []T {
	if len(data) == 0 {
		return nil
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		util.RecordStoreLoadFailures.WithLabelValues(s.entity).Inc()
		s.opts.logger.Error("Corrupt records document, using empty set", zap.Error(err))
		return nil
	}
	return records
}

func (s *RecordStore[T, P]) setRecords(records []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

func indexOf[T any, P Record[T]](records []T, id string) int {
	for i := range records {
		if P(&records[i]).RecordMeta().ID == id {
			return i
		}
	}
	return -1
}

// nextID returns one past the highest numeric id, ignoring ids that are not
// decimal integers.
func nextID[T any, P Record[T]](records []T) string {
	var highest int64
	for i := range records {
		n, err := strconv.ParseInt(P(&records[i]).RecordMeta().ID, 10, 64)
		if err == nil && n > highest {
			highest = n
		}
	}
	return strconv.FormatInt(highest+1, 10)
}

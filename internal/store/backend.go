package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"storefront/internal/atomicfile"
)

// Backend persists one JSON document holding every record of an entity.
type Backend interface {
	// Read returns the current document, or nil when nothing was persisted yet.
	Read(ctx context.Context) ([]byte, error)

	// Mutate re-reads the document, hands it to fn and persists what fn
	// returns. A nil result from fn means nothing changed and no write happens.
	// Errors from fn are returned unchanged.
	Mutate(ctx context.Context, fn func(current []byte) ([]byte, error)) error
}

// Locker provides mutual exclusion across processes sharing a backend.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NopLocker relies on the single-writer deployment assumption: only one
// process mutates a given file at a time.
type NopLocker struct{}

// Lock always succeeds immediately
func (NopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// FileBackend keeps the document in a single file on local disk.
//
// Mutations within one process are serialized by a mutex. Across processes
// the configured Locker decides; with NopLocker two processes updating the
// same file concurrently can lose an update (the later full-file write wins).
type FileBackend struct {
	path   string
	locker Locker
	mu     sync.Mutex
}

// NewFileBackend creates a backend for the file at path
func NewFileBackend(path string, locker Locker) *FileBackend {
	if locker == nil {
		locker = NopLocker{}
	}
	return &FileBackend{path: path, locker: locker}
}

// Path returns the canonical file location
func (b *FileBackend) Path() string {
	return b.path
}

// Read loads the file; a missing file is not an error
func (b *FileBackend) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	return data, nil
}

// Mutate runs fn against the freshly read file and atomically replaces it
func (b *FileBackend) Mutate(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	unlock, err := b.locker.Lock(ctx, b.path)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", b.path, err)
	}
	defer unlock()

	current, err := b.Read(ctx)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	return atomicfile.WriteFile(b.path, next, 0o644)
}

package cart

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"storefront/internal/atomicfile"
)

// Storage is the durable place a cart is mirrored to
type Storage interface {
	// Load returns the saved data for key, or nil when nothing was saved
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Key returns the storage key of a cart session
func Key(sessionID string) string {
	return "cart:" + sessionID
}

// MemoryStorage keeps carts in process memory
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// FileStorage keeps one JSON file per cart in a directory
type FileStorage struct {
	dir string
}

// NewFileStorage creates a storage rooted at dir
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (f *FileStorage) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart %s: %w", key, err)
	}
	return data, nil
}

func (f *FileStorage) Save(_ context.Context, key string, data []byte) error {
	return atomicfile.WriteFile(f.path(key), data, 0o600)
}

// path hex-encodes the key so distinct sessions never share a file
func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, hex.EncodeToString([]byte(key))+".json")
}

package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseLockScript deletes the lock only while it still holds our token
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

const lockRetryInterval = 25 * time.Millisecond

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks that Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetIdempotencyKey remembers the order created for an idempotency key
func (c *Client) SetIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), orderID, ttl).Err()
}

// GetIdempotencyKey returns the order id stored for key, if any
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	orderID, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return orderID, true, nil
}

// AcquireLock tries once to take the lock and returns the owner token on success
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseLock releases the lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	return c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Err()
}

// Locker serializes record mutations across every process sharing the
// Redis instance. It satisfies store.Locker.
type Locker struct {
	client *Client
	ttl    time.Duration
}

// NewLocker creates a locker whose locks expire after ttl if never released
func NewLocker(client *Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

// Lock blocks until the lock for key is held or ctx is done
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		token, ok, err := l.client.AcquireLock(ctx, key, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// the caller's ctx may already be cancelled by the time we unlock
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = l.client.ReleaseLock(releaseCtx, key, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// CartStorage keeps carts in Redis with a sliding expiry. It satisfies
// cart.Storage.
type CartStorage struct {
	client *Client
	ttl    time.Duration
}

// NewCartStorage creates a cart storage whose entries expire ttl after the last save
func NewCartStorage(client *Client, ttl time.Duration) *CartStorage {
	return &CartStorage{client: client, ttl: ttl}
}

func (s *CartStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return data, nil
}

func (s *CartStorage) Save(ctx context.Context, key string, data []byte) error {
	return s.client.rdb.Set(ctx, key, data, s.ttl).Err()
}

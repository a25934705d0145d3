package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Store persists carts keyed by owner.
type Store interface {
	Load(ctx context.Context, owner uuid.UUID) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, owner uuid.UUID) error
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(ownerID string) string
}

// RedisStore keeps each cart as one JSON value. Every save slides the TTL.
type RedisStore struct {
	kv  kvStore
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore builds a cart store on the shared redis client.
func NewRedisStore(kv kvStore, ttl time.Duration) (*RedisStore, error) {
	if kv == nil {
		return nil, errors.New("redis client required")
	}
	if ttl < 0 {
		return nil, errors.New("cart ttl must be non-negative")
	}
	return &RedisStore{kv: kv, ttl: ttl, now: time.Now}, nil
}

// Load returns the stored cart, or an empty one when none exists.
func (s *RedisStore) Load(ctx context.Context, owner uuid.UUID) (*Cart, error) {
	raw, err := s.kv.Get(ctx, s.kv.CartKey(owner.String()))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return New(owner), nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	c.OwnerID = owner
	if c.Items == nil {
		c.Items = New(owner).Items
	}
	return &c, nil
}

// Save writes the cart and refreshes its TTL. An empty cart deletes the key.
func (s *RedisStore) Save(ctx context.Context, c *Cart) error {
	if c == nil {
		return errors.New("cart required")
	}
	if c.IsEmpty() {
		return s.Delete(ctx, c.OwnerID)
	}
	c.UpdatedAt = s.now().UTC()
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, s.kv.CartKey(c.OwnerID.String()), payload, s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete removes the stored cart.
func (s *RedisStore) Delete(ctx context.Context, owner uuid.UUID) error {
	if err := s.kv.Del(ctx, s.kv.CartKey(owner.String())); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"feedpos/backend/internal/pos"
)

const cartKeyPrefix = "feedpos:cart:"

type RedisCartStore struct {
	client *redis.Client
}

func NewRedisCartStore(addr string, password string, db int) *RedisCartStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCartStore{client: client}
}

func (c *RedisCartStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCartStore) Close() error {
	return c.client.Close()
}

func (c *RedisCartStore) Get(ctx context.Context, id string) (*pos.Cart, error) {
	val, err := c.client.Get(ctx, cartKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeCart(val)
}

func (c *RedisCartStore) Save(ctx context.Context, cart *pos.Cart, ttl time.Duration) error {
	if cart == nil {
		return nil
	}
	payload, err := encodeCart(cart)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cartKeyPrefix+cart.ID, payload, ttl).Err()
}

func (c *RedisCartStore) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, cartKeyPrefix+id).Err()
}

func encodeCart(cart *pos.Cart) ([]byte, error) {
	payload, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("encode cart %s: %w", cart.ID, err)
	}
	return payload, nil
}

func decodeCart(payload []byte) (*pos.Cart, error) {
	var cart pos.Cart
	if err := json.Unmarshal(payload, &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if cart.Lines == nil {
		cart.Lines = []pos.CartLine{}
	}
	return &cart, nil
}

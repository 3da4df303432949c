package redisx

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CartStore keeps one hash per user. Every write refreshes the TTL so an
// abandoned cart expires on its own.
type CartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCartStore(rdb *redis.Client, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = TTLCart
	}
	return &CartStore{rdb: rdb, ttl: ttl}
}

// Items returns the cart sorted by product id. Entries that do not parse
// as a positive quantity are skipped.
func (s *CartStore) Items(ctx context.Context, userID string) ([]CartLine, error) {
	raw, err := s.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	return parseCart(raw), nil
}

func parseCart(raw map[string]string) []CartLine {
	lines := make([]CartLine, 0, len(raw))
	for productID, qty := range raw {
		n, err := strconv.Atoi(qty)
		if err != nil || n <= 0 {
			continue
		}
		lines = append(lines, CartLine{ProductID: productID, Quantity: n})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

// SetItem stores an absolute quantity. Zero or less removes the line.
func (s *CartStore) SetItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	key := cartKey(userID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, productID, quantity)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cart set %s: %w", productID, err)
	}
	return nil
}

// AddItem increments the quantity and returns the new value.
func (s *CartStore) AddItem(ctx context.Context, userID, productID string, delta int) (int, error) {
	key := cartKey(userID)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, productID, int64(delta))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cart add %s: %w", productID, err)
	}
	return int(incr.Val()), nil
}

func (s *CartStore) Quantity(ctx context.Context, userID, productID string) (int, error) {
	qty, err := s.rdb.HGet(ctx, cartKey(userID), productID).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return qty, err
}

func (s *CartStore) RemoveItem(ctx context.Context, userID, productID string) error {
	return s.rdb.HDel(ctx, cartKey(userID), productID).Err()
}

func (s *CartStore) Clear(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, cartKey(userID)).Err()
}

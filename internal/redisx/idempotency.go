package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight means another request with the same key has not finished.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// Idempotency guards order creation. Reserve claims the key for a short
// in-flight window; Complete pins it to the created order for the full
// TTL; Release frees it after a failure so the client may retry.
type Idempotency struct {
	rdb      *redis.Client
	ttl      time.Duration
	inFlight time.Duration
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb, ttl: TTLIdempotency, inFlight: TTLInFlight}
}

// Reserve returns ("", nil) when the caller now owns the key, the stored
// order id when the request already completed, or ErrInFlight.
func (i *Idempotency) Reserve(ctx context.Context, userID, key string) (string, error) {
	k := idemKey(userID, key)
	ok, err := i.rdb.SetNX(ctx, k, idemPending, i.inFlight).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}

	existing, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		ok, err = i.rdb.SetNX(ctx, k, idemPending, i.inFlight).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return "", nil
		}
		return "", ErrInFlight
	}
	if err != nil {
		return "", err
	}
	if existing == idemPending {
		return "", ErrInFlight
	}
	return existing, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	return i.rdb.Set(ctx, idemKey(userID, key), orderID, i.ttl).Err()
}

func (i *Idempotency) Release(ctx context.Context, userID, key string) error {
	return i.rdb.Del(ctx, idemKey(userID, key)).Err()
}

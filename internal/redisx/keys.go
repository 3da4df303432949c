package redisx

import (
	"fmt"
	"time"
)

const (
	// cart:{userId} -> hash productId -> quantity
	KeyCart = "cart:%s"

	// idem:order:{userId}:{Idempotency-Key} -> order id, or idemPending while in flight
	KeyIdemOrderCreate = "idem:order:%s:%s"
)

var (
	TTLCart        = 30 * 24 * time.Hour
	TTLIdempotency = 24 * time.Hour
	TTLInFlight    = 30 * time.Second
)

const idemPending = "pending"

func cartKey(userID string) string {
	return fmt.Sprintf(KeyCart, userID)
}

func idemKey(userID, key string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, userID, key)
}

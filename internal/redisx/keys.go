package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{Idempotency-Key} -> "pending" | order_id
	KeyIdemOrderCreate = "idem:order:create:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// a claim left behind by a crashed request frees up after this
	TTLIdempotencyPending = time.Minute
)

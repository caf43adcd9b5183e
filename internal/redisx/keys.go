package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{token} -> order_id
	KeyIdemCheckout = "idem:checkout:%s"

	// Order status cache: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event fan-out: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Live viewer count per store: viewers:{seller_id} -> int
	KeyViewers = "viewers:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLViewers     = 6 * time.Hour
)

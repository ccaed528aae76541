package redisx

import "time"

const (
	// Idempotency for order creation: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cache of order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%d"

	// Dedup for the auto-release sweeper: dedup:autorelease:{order_id}
	KeyAutoReleaseDedup = "dedup:autorelease:%d"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

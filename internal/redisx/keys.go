package redisx

import "time"

const (
	// Cache order status for fast reads: order_status:{order_id}
	KeyOrderStatus = "order_status:%s"

	// Dedup payment-gateway callbacks: dedup:payment:{order_id}:{trans_id}
	KeyPaymentDedup = "dedup:payment:%s:%s"

	// Dedup notification events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache  = 5 * time.Minute
	TTLPaymentDedup = 48 * time.Hour
	TTLDedup        = 48 * time.Hour
)

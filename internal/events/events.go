package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventOrderDelivering  = "OrderDelivering"
	EventOrderDelivered   = "OrderDelivered"
	EventOrderCancelled   = "OrderCancelled"
	EventPaymentReceived  = "PaymentReceived"
	EventPaymentFailed    = "PaymentFailed"
	EventBookingCreated   = "BookingCreated"
	EventBookingConfirmed = "BookingConfirmed"
	EventBookingCancelled = "BookingCancelled"
)

const (
	TopicOrderNotify   = "notify.order"
	TopicBookingNotify = "notify.booking"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or booking_id
	Payload       json.RawMessage `json:"payload"`
}

// Partition key = entity id so all events of one order/booking stay ordered.
func PartitionKey(id string) []byte { return []byte(id) }

// ---- payloads ----

type OrderNotifyPayload struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Total         int64  `json:"total"`
}

type PaymentNotifyPayload struct {
	OrderID       string `json:"order_id"`
	TransID       string `json:"trans_id"`
	Amount        int64  `json:"amount"`
	CustomerEmail string `json:"customer_email"`
	Succeeded     bool   `json:"succeeded"`
}

type BookingNotifyPayload struct {
	BookingID     string `json:"booking_id"`
	Status        string `json:"status"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Date          string `json:"date"`
	Hours         string `json:"hours"`
}

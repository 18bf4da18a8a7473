package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/events"
	kafkax "github.com/petz-tuyendat09/PEZ-SERVER/internal/kafka"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/orders"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/redisx"
)

// ErrInvalidSignature carries no detail on purpose: nothing about the
// expected signature may leak to the caller or the logs.
var ErrInvalidSignature = errors.New("invalid payment signature")

type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	MarkPaid(ctx context.Context, orderID string) (bool, error)
	MarkPaymentFailed(ctx context.Context, orderID string) error
	ClaimPointsGrant(ctx context.Context, orderID string) (bool, error)
}

type Ledger interface {
	Credit(ctx context.Context, userID string, points int) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Cache is the slice of redis the reconciler touches; *redis.Client
// satisfies it.
type Cache interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Reconciler applies gateway callbacks to orders. Payment status is
// tracked independently of order status.
type Reconciler struct {
	Signer   Signer
	Orders   OrderStore
	Ledger   Ledger
	Redis    Cache // nil disables the cheap replay short-circuit
	Producer Publisher
	Name     string
}

// HandleCallback validates the signature before any lookup or mutation,
// then applies exactly one of the two outcomes. Gateway retries are
// absorbed: replays of an already-PAID order change nothing and never
// re-credit points.
func (r *Reconciler) HandleCallback(ctx context.Context, p CallbackPayload) error {
	if !r.Signer.VerifyCallback(p) {
		return ErrInvalidSignature
	}

	dedupKey := fmt.Sprintf(redisx.KeyPaymentDedup, p.OrderID, strconv.FormatInt(p.TransID, 10))
	if r.Redis != nil {
		if n, err := r.Redis.Exists(ctx, dedupKey).Result(); err == nil && n > 0 {
			return nil // exact replay, already handled
		}
	}

	o, err := r.Orders.Get(ctx, p.OrderID)
	if err != nil {
		return err // orders.ErrNotFound maps to 404 at the boundary
	}

	if !p.Succeeded() {
		if err := r.Orders.MarkPaymentFailed(ctx, p.OrderID); err != nil {
			return err
		}
		r.publish(o, p, false)
		r.settle(ctx, dedupKey, p.OrderID)
		return nil
	}

	changed, err := r.Orders.MarkPaid(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if !changed {
		r.settle(ctx, dedupKey, p.OrderID)
		return nil // replayed callback for a PAID order
	}

	if o.UserID != "" {
		claimed, err := r.Orders.ClaimPointsGrant(ctx, o.ID)
		if err != nil {
			log.Printf("payment: claim points grant for %s: %v", o.ID, err)
		} else if claimed {
			if err := r.Ledger.Credit(ctx, o.UserID, int(p.Amount/100)); err != nil {
				log.Printf("payment: credit points for %s: %v", o.ID, err)
			}
		}
	}
	r.publish(o, p, true)
	r.settle(ctx, dedupKey, p.OrderID)
	return nil
}

// settle records the callback as handled and drops the cached order so
// reads pick up the new payment status. The dedup key is written only
// after the outcome is in the database: a callback that failed on a
// transient store error must stay retryable.
func (r *Reconciler) settle(ctx context.Context, dedupKey, orderID string) {
	if r.Redis == nil {
		return
	}
	_ = r.Redis.Set(ctx, dedupKey, "1", redisx.TTLPaymentDedup).Err()
	_ = r.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}

func (r *Reconciler) publish(o *orders.Order, p CallbackPayload, ok bool) {
	if r.Producer == nil {
		return
	}
	typ := events.EventPaymentFailed
	if ok {
		typ = events.EventPaymentReceived
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     typ,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Name,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(events.PaymentNotifyPayload{
			OrderID:       o.ID,
			TransID:       strconv.FormatInt(p.TransID, 10),
			Amount:        p.Amount,
			CustomerEmail: o.CustomerEmail,
			Succeeded:     ok,
		}),
	}
	r.Producer.Publish(events.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(typ)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

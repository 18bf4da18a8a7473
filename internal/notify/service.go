package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/events"
	kafkax "github.com/petz-tuyendat09/PEZ-SERVER/internal/kafka"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/redisx"
)

// Sender is satisfied by *Mailer.
type Sender interface {
	Send(to, subject, body string)
}

type Service struct {
	Mailer Sender
	Redis  *redis.Client
	Name   string
}

// HandleEvent is the consumer handler: decode, dedup, mail. Unknown
// event types are ignored so new producers never break the worker.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, s.Name, env.EventID)
		exists, _ := redisx.Exists(ctx, s.Redis, dkey)
		if exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	switch env.EventType {
	case events.EventOrderDelivering, events.EventOrderDelivered,
		events.EventOrderCreated, events.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[events.OrderNotifyPayload](env.Payload)
		if err != nil {
			return err
		}
		s.Mailer.Send(p.CustomerEmail, orderSubject(env.EventType), orderBody(env.EventType, p))

	case events.EventPaymentReceived, events.EventPaymentFailed:
		p, err := kafkax.UnwrapPayload[events.PaymentNotifyPayload](env.Payload)
		if err != nil {
			return err
		}
		if p.Succeeded {
			s.Mailer.Send(p.CustomerEmail, "Payment received",
				fmt.Sprintf("We received your payment of %d for order %s.", p.Amount, p.OrderID))
		} else {
			s.Mailer.Send(p.CustomerEmail, "Payment failed",
				fmt.Sprintf("Payment for order %s did not go through. Please try again.", p.OrderID))
		}

	case events.EventBookingCreated, events.EventBookingConfirmed, events.EventBookingCancelled:
		p, err := kafkax.UnwrapPayload[events.BookingNotifyPayload](env.Payload)
		if err != nil {
			return err
		}
		s.Mailer.Send(p.CustomerEmail, bookingSubject(env.EventType),
			fmt.Sprintf("Hi %s, your appointment on %s at %s is now %s.",
				p.CustomerName, p.Date, p.Hours, p.Status))
	}
	return nil
}

func orderSubject(eventType string) string {
	switch eventType {
	case events.EventOrderCreated:
		return "Order received"
	case events.EventOrderDelivering:
		return "Your order is being delivered"
	case events.EventOrderDelivered:
		return "Your order was delivered"
	default:
		return "Your order was cancelled"
	}
}

func orderBody(eventType string, p events.OrderNotifyPayload) string {
	switch eventType {
	case events.EventOrderCreated:
		return fmt.Sprintf("Thank you %s! We are processing order %s (total %d).",
			p.CustomerName, p.OrderID, p.Total)
	case events.EventOrderDelivering:
		return fmt.Sprintf("Good news %s, order %s is on its way.", p.CustomerName, p.OrderID)
	case events.EventOrderDelivered:
		return fmt.Sprintf("Order %s was delivered. Enjoy!", p.OrderID)
	default:
		return fmt.Sprintf("Order %s was cancelled.", p.OrderID)
	}
}

func bookingSubject(eventType string) string {
	switch eventType {
	case events.EventBookingCreated:
		return "Booking received"
	case events.EventBookingConfirmed:
		return "Booking confirmed"
	default:
		return "Booking cancelled"
	}
}

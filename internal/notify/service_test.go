package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/events"
	kafkax "github.com/petz-tuyendat09/PEZ-SERVER/internal/kafka"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string // "to|subject"
}

func (r *recordingSender) Send(to, subject, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to+"|"+subject)
}

func message(eventType string, payload any) kafkago.Message {
	env := events.Envelope{
		EventID:      "ev-1",
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload:      kafkax.MustMarshal(payload),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleEventOrderMail(t *testing.T) {
	rec := &recordingSender{}
	svc := &Service{Mailer: rec, Name: "notify-test"}

	m := message(events.EventOrderDelivering, events.OrderNotifyPayload{
		OrderID:       "ord-1",
		Status:        "DELIVERING",
		CustomerName:  "Dat",
		CustomerEmail: "dat@example.com",
		Total:         450000,
	})
	if err := svc.HandleEvent(context.Background(), m); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(rec.sent) != 1 || rec.sent[0] != "dat@example.com|Your order is being delivered" {
		t.Errorf("sent = %v", rec.sent)
	}
}

func TestHandleEventPaymentOutcomes(t *testing.T) {
	rec := &recordingSender{}
	svc := &Service{Mailer: rec, Name: "notify-test"}

	ok := message(events.EventPaymentReceived, events.PaymentNotifyPayload{
		OrderID: "ord-1", CustomerEmail: "dat@example.com", Amount: 450000, Succeeded: true,
	})
	failed := message(events.EventPaymentFailed, events.PaymentNotifyPayload{
		OrderID: "ord-2", CustomerEmail: "dat@example.com", Succeeded: false,
	})
	if err := svc.HandleEvent(context.Background(), ok); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleEvent(context.Background(), failed); err != nil {
		t.Fatal(err)
	}
	if len(rec.sent) != 2 {
		t.Fatalf("sent %d mails, want 2", len(rec.sent))
	}
	if rec.sent[0] != "dat@example.com|Payment received" {
		t.Errorf("first mail = %s", rec.sent[0])
	}
	if rec.sent[1] != "dat@example.com|Payment failed" {
		t.Errorf("second mail = %s", rec.sent[1])
	}
}

func TestHandleEventIgnoresUnknownType(t *testing.T) {
	rec := &recordingSender{}
	svc := &Service{Mailer: rec, Name: "notify-test"}

	m := message("inventory.restocked", events.OrderNotifyPayload{})
	if err := svc.HandleEvent(context.Background(), m); err != nil {
		t.Fatalf("unknown type must not error: %v", err)
	}
	if len(rec.sent) != 0 {
		t.Errorf("unknown type sent mail: %v", rec.sent)
	}
}

func TestHandleEventBadEnvelope(t *testing.T) {
	svc := &Service{Mailer: &recordingSender{}, Name: "notify-test"}
	if err := svc.HandleEvent(context.Background(), kafkago.Message{Value: []byte("not json")}); err == nil {
		t.Fatal("expected decode error")
	}
}

package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/catalog"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/events"
	kafkax "github.com/petz-tuyendat09/PEZ-SERVER/internal/kafka"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/loyalty"
)

var (
	// ErrAlreadyInState signals an idempotent no-op, not a failure.
	ErrAlreadyInState = errors.New("booking already in requested state")
	ErrReviewDone     = errors.New("booking review already submitted")
)

type ValidationError struct{ Field string }

func (e *ValidationError) Error() string { return "missing or invalid field: " + e.Field }

type Store interface {
	Insert(ctx context.Context, b *Booking) error
	Get(ctx context.Context, bookingID string) (*Booking, error)
	SetStatusCAS(ctx context.Context, bookingID string, from, to Status) (bool, error)
	BookedOn(ctx context.Context, day time.Time) ([]Booking, error)
	ByDate(ctx context.Context, day time.Time) ([]Booking, error)
	ClaimReview(ctx context.Context, bookingID string) (bool, error)
}

type ServiceCatalog interface {
	ServicesByIDs(ctx context.Context, ids []string) ([]catalog.Service, error)
	AddServiceBookings(ctx context.Context, ids []string) error
}

type Ledger interface {
	Credit(ctx context.Context, userID string, points int) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Scheduler runs the appointment pipeline: Booked, then Confirm and
// Done, or Canceled any time before Done.
type Scheduler struct {
	Store    Store
	Catalog  ServiceCatalog
	Ledger   Ledger
	Producer Publisher
	Name     string
}

// Create persists the booking and fires the confirmation notification.
// The notification is fire-and-forget: its failure never rolls the
// booking back.
func (s *Scheduler) Create(ctx context.Context, in CreateInput) (*Booking, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	svcs, err := s.Catalog.ServicesByIDs(ctx, in.ServiceIDs)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, sv := range svcs {
		total += sv.Price
	}

	b := &Booking{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		ServiceIDs:    in.ServiceIDs,
		Date:          in.Date,
		Hours:         in.Hours,
		Status:        StatusBooked,
		Total:         total,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.Store.Insert(ctx, b); err != nil {
		return nil, err
	}
	if err := s.Catalog.AddServiceBookings(ctx, in.ServiceIDs); err != nil {
		log.Printf("booking: bump service counters for %s: %v", b.ID, err)
	}

	s.publish(events.EventBookingCreated, b)
	return b, nil
}

func (s *Scheduler) Cancel(ctx context.Context, bookingID string) (*Booking, error) {
	return s.setStatus(ctx, bookingID, StatusCanceled, events.EventBookingCancelled)
}

func (s *Scheduler) Confirm(ctx context.Context, bookingID string) (*Booking, error) {
	return s.setStatus(ctx, bookingID, StatusConfirm, events.EventBookingConfirmed)
}

func (s *Scheduler) Done(ctx context.Context, bookingID string) (*Booking, error) {
	return s.setStatus(ctx, bookingID, StatusDone, "")
}

func (s *Scheduler) setStatus(ctx context.Context, bookingID string, to Status, event string) (*Booking, error) {
	b, err := s.Store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == to {
		return nil, ErrAlreadyInState
	}
	ok, err := s.Store.SetStatusCAS(ctx, bookingID, b.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyInState
	}
	b.Status = to

	if event != "" {
		s.publish(event, b)
	}
	return b, nil
}

func (s *Scheduler) Get(ctx context.Context, bookingID string) (*Booking, error) {
	return s.Store.Get(ctx, bookingID)
}

func (s *Scheduler) ByDate(ctx context.Context, day time.Time) ([]Booking, error) {
	return s.Store.ByDate(ctx, day)
}

// SweepLapsed cancels today's Booked bookings whose time-of-day has
// passed. Each cancel is a status CAS, so overlapping sweeps act once.
func (s *Scheduler) SweepLapsed(ctx context.Context, now time.Time) (int, error) {
	booked, err := s.Store.BookedOn(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, b := range booked {
		tod, err := time.ParseInLocation(HoursLayout, b.Hours, now.Location())
		if err != nil {
			log.Printf("booking: unparseable hours %q on %s, skipping", b.Hours, b.ID)
			continue
		}
		at := time.Date(now.Year(), now.Month(), now.Day(),
			tod.Hour(), tod.Minute(), 0, 0, now.Location())
		if !at.Before(now) {
			continue
		}
		ok, err := s.Store.SetStatusCAS(ctx, b.ID, StatusBooked, StatusCanceled)
		if err != nil {
			return swept, err
		}
		if ok {
			swept++
			b.Status = StatusCanceled
			s.publish(events.EventBookingCancelled, &b)
		}
	}
	return swept, nil
}

// SubmitReview grants the review point bonus once per booking.
func (s *Scheduler) SubmitReview(ctx context.Context, bookingID, content string) (int, error) {
	b, err := s.Store.Get(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	ok, err := s.Store.ClaimReview(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrReviewDone
	}

	bonus := loyalty.ReviewBonus(content)
	if b.UserID != "" {
		if err := s.Ledger.Credit(ctx, b.UserID, bonus); err != nil {
			log.Printf("booking: credit review bonus for %s: %v", b.ID, err)
		}
	}
	return bonus, nil
}

func (s *Scheduler) publish(eventType string, b *Booking) {
	if s.Producer == nil {
		return
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Name,
		CorrelationID: b.ID,
		Payload: kafkax.MustMarshal(events.BookingNotifyPayload{
			BookingID:     b.ID,
			Status:        string(b.Status),
			CustomerName:  b.CustomerName,
			CustomerEmail: b.CustomerEmail,
			Date:          b.Date.Format("2006-01-02"),
			Hours:         b.Hours,
		}),
	}
	s.Producer.Publish(events.PartitionKey(b.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func validateCreate(in CreateInput) error {
	switch {
	case in.CustomerName == "":
		return &ValidationError{Field: "customer_name"}
	case in.CustomerEmail == "":
		return &ValidationError{Field: "customer_email"}
	case in.CustomerPhone == "":
		return &ValidationError{Field: "customer_phone"}
	case len(in.ServiceIDs) == 0:
		return &ValidationError{Field: "service_ids"}
	case in.Date.IsZero():
		return &ValidationError{Field: "date"}
	}
	if _, err := time.Parse(HoursLayout, in.Hours); err != nil {
		return &ValidationError{Field: "hours"}
	}
	return nil
}

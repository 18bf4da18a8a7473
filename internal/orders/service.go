package orders

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
	// ErrInvalidTransition is the "unchanged" sentinel: the state
	// machine rejected the move and nothing was mutated.
	ErrInvalidTransition = errors.New("cannot move order to this status")
	ErrAlreadyCancelled  = errors.New("order already cancelled")
)

type ValidationError struct{ Field string }

func (e *ValidationError) Error() string { return "missing or invalid field: " + e.Field }

type Inventory interface {
	ReserveAll(ctx context.Context, orderID string, items []catalog.ItemQty) (bool, []catalog.StockReject, error)
	ReleaseAll(ctx context.Context, orderID string) error
}

type Catalog interface {
	VariantPrices(ctx context.Context, items []catalog.ItemQty) (map[string]int64, error)
	ProductNames(ctx context.Context, ids []string) (map[string]string, error)
	EnsureReviewPlaceholder(ctx context.Context, userID, productID, productName string) error
}

type Store interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	ByUser(ctx context.Context, userID string) ([]Order, error)
	CASStatus(ctx context.Context, orderID string, from, to Status) (bool, error)
	CancelCAS(ctx context.Context, orderID string) (bool, error)
	ClaimPointsGrant(ctx context.Context, orderID string) (bool, error)
}

type Ledger interface {
	Credit(ctx context.Context, userID string, points int) error
	VoucherByID(ctx context.Context, voucherID string) (*loyalty.Voucher, error)
	Consume(ctx context.Context, userID, voucherID string) error
	Restore(ctx context.Context, userID, voucherID string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store     Store
	Inventory Inventory
	Catalog   Catalog
	Ledger    Ledger
	Producer  Publisher // nil disables events
	Name      string

	// ReleaseStockOnCancel puts reserved quantities back when an order
	// is cancelled. Policy, not hard-coded: ops may prefer a separate
	// reconciliation job.
	ReleaseStockOnCancel bool
}

// Create runs the checkout pipeline: validate, snapshot prices, reserve
// every line item, apply the voucher, persist PENDING/UNPAID. Any
// failure past the reservation point releases what was reserved, so the
// order is all-or-nothing.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	items := make([]catalog.ItemQty, 0, len(in.Items))
	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, catalog.ItemQty{ProductID: it.ProductID, VariantName: it.VariantName, Qty: it.Qty})
		ids = append(ids, it.ProductID)
	}

	prices, err := s.Catalog.VariantPrices(ctx, items)
	if err != nil {
		return nil, err
	}
	names, err := s.Catalog.ProductNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	var itemsTotal int64
	snapshot := make([]Item, 0, len(in.Items))
	for _, it := range in.Items {
		price := prices[catalog.VariantKey(it.ProductID, it.VariantName)]
		itemsTotal += price * int64(it.Qty)
		snapshot = append(snapshot, Item{
			ProductID:   it.ProductID,
			ProductName: names[it.ProductID],
			VariantName: it.VariantName,
			Qty:         it.Qty,
			UnitPrice:   price,
		})
	}

	var discount int64
	if in.VoucherID != "" {
		if in.UserID == "" {
			return nil, &ValidationError{Field: "user_id (required to spend a voucher)"}
		}
		v, err := s.Ledger.VoucherByID(ctx, in.VoucherID)
		if err != nil {
			return nil, err
		}
		discount = v.Discount.Apply(itemsTotal, in.ShippingFee)
	}

	ok, rejects, err := s.Inventory.ReserveAll(ctx, orderID, items)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rejectErr(rejects)
	}

	if in.VoucherID != "" {
		if err := s.Ledger.Consume(ctx, in.UserID, in.VoucherID); err != nil {
			s.release(ctx, orderID)
			return nil, err
		}
	}

	total := itemsTotal + in.ShippingFee
	o := &Order{
		ID:              orderID,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   in.CustomerEmail,
		CustomerAddress: in.CustomerAddress,
		Items:           snapshot,
		UserID:          in.UserID,
		VoucherID:       in.VoucherID,
		ShippingFee:     in.ShippingFee,
		Total:           total,
		Discount:        discount,
		TotalAfter:      total - discount,
		PaymentMethod:   in.PaymentMethod,
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := s.Store.Insert(ctx, o); err != nil {
		s.release(ctx, orderID)
		if in.VoucherID != "" {
			if rerr := s.Ledger.Restore(ctx, in.UserID, in.VoucherID); rerr != nil {
				log.Printf("orders: restore voucher %s for %s: %v", in.VoucherID, in.UserID, rerr)
			}
		}
		return nil, err
	}

	s.publish(events.EventOrderCreated, o)
	return o, nil
}

// Transition applies one step of the status state machine. Rejections
// come back as ErrInvalidTransition with the order untouched.
func (s *Service) Transition(ctx context.Context, orderID string, to Status) (*Order, error) {
	if !ValidStatus(to) {
		return nil, ErrInvalidTransition
	}
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, ErrInvalidTransition
	}
	ok, err := s.Store.CASStatus(ctx, orderID, o.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// someone else moved the order first
		return nil, ErrInvalidTransition
	}
	o.Status = to

	switch to {
	case StatusDelivering:
		s.publish(events.EventOrderDelivering, o)
	case StatusDelivered:
		s.grantDeliveryRewards(ctx, o)
		s.publish(events.EventOrderDelivered, o)
	case StatusCancelled:
		if s.ReleaseStockOnCancel {
			s.release(ctx, orderID)
		}
		s.publish(events.EventOrderCancelled, o)
	}
	return o, nil
}

// Cancel is the direct entry point: any not-yet-cancelled order goes to
// CANCELLED, bypassing the transition table. Repeat calls get a
// distinct already-cancelled signal instead of an error.
func (s *Service) Cancel(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	ok, err := s.Store.CancelCAS(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyCancelled
	}
	o.Status = StatusCancelled

	if s.ReleaseStockOnCancel {
		s.release(ctx, orderID)
	}
	s.publish(events.EventOrderCancelled, o)
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.Store.Get(ctx, orderID)
}

func (s *Service) ByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.Store.ByUser(ctx, userID)
}

// grantDeliveryRewards fires the delivery side effects for owned
// orders: one loyalty credit of floor(total/100) guarded by the
// points-granted flag, and a pending review per distinct product.
func (s *Service) grantDeliveryRewards(ctx context.Context, o *Order) {
	if o.UserID == "" {
		return
	}
	claimed, err := s.Store.ClaimPointsGrant(ctx, o.ID)
	if err != nil {
		log.Printf("orders: claim points grant for %s: %v", o.ID, err)
	} else if claimed {
		if err := s.Ledger.Credit(ctx, o.UserID, int(o.TotalAfter/100)); err != nil {
			log.Printf("orders: credit points for %s: %v", o.ID, err)
		}
	}

	seen := make(map[string]bool, len(o.Items))
	for _, it := range o.Items {
		if seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		if err := s.Catalog.EnsureReviewPlaceholder(ctx, o.UserID, it.ProductID, it.ProductName); err != nil {
			log.Printf("orders: review placeholder for %s/%s: %v", o.UserID, it.ProductID, err)
		}
	}
}

func (s *Service) release(ctx context.Context, orderID string) {
	if err := s.Inventory.ReleaseAll(ctx, orderID); err != nil {
		log.Printf("orders: release stock for %s: %v", orderID, err)
	}
}

func (s *Service) publish(eventType string, o *Order) {
	if s.Producer == nil {
		return
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Name,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(events.OrderNotifyPayload{
			OrderID:       o.ID,
			Status:        string(o.Status),
			CustomerName:  o.CustomerName,
			CustomerEmail: o.CustomerEmail,
			Total:         o.TotalAfter,
		}),
	}
	s.Producer.Publish(events.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func rejectErr(rejects []catalog.StockReject) error {
	if len(rejects) == 0 {
		return errors.New("reservation rejected")
	}
	rj := rejects[0]
	if rj.Available < 0 {
		return catalog.ErrProductNotFound
	}
	return &catalog.InsufficientStockError{
		ProductID:   rj.ProductID,
		VariantName: rj.VariantName,
		Required:    rj.Required,
		Available:   rj.Available,
	}
}

func validateCreate(in CreateInput) error {
	switch {
	case in.CustomerName == "":
		return &ValidationError{Field: "customer_name"}
	case in.CustomerPhone == "":
		return &ValidationError{Field: "customer_phone"}
	case in.CustomerEmail == "":
		return &ValidationError{Field: "customer_email"}
	case in.CustomerAddress == "":
		return &ValidationError{Field: "customer_address"}
	case len(in.Items) == 0:
		return &ValidationError{Field: "items"}
	case in.ShippingFee < 0:
		return &ValidationError{Field: "shipping_fee"}
	}
	if in.PaymentMethod != MethodCOD && in.PaymentMethod != MethodBanking {
		return &ValidationError{Field: "payment_method"}
	}
	for _, it := range in.Items {
		if it.ProductID == "" || it.VariantName == "" {
			return &ValidationError{Field: "items.product_id"}
		}
		if it.Qty <= 0 {
			return &ValidationError{Field: "items.qty"}
		}
	}
	return nil
}

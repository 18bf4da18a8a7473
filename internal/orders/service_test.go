package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/catalog"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/loyalty"
)

type mockInventory struct {
	mu       sync.Mutex
	reserved map[string][]catalog.ItemQty
	released []string
	rejects  []catalog.StockReject
	err      error
}

func (m *mockInventory) ReserveAll(_ context.Context, orderID string, items []catalog.ItemQty) (bool, []catalog.StockReject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, nil, m.err
	}
	if len(m.rejects) > 0 {
		return false, m.rejects, nil
	}
	if m.reserved == nil {
		m.reserved = make(map[string][]catalog.ItemQty)
	}
	m.reserved[orderID] = items
	return true, nil, nil
}

func (m *mockInventory) ReleaseAll(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, orderID)
	return nil
}

type mockCatalog struct {
	prices       map[string]int64
	names        map[string]string
	placeholders []string // "userID/productID"
}

func (m *mockCatalog) VariantPrices(_ context.Context, items []catalog.ItemQty) (map[string]int64, error) {
	out := make(map[string]int64, len(items))
	for _, it := range items {
		k := catalog.VariantKey(it.ProductID, it.VariantName)
		p, ok := m.prices[k]
		if !ok {
			return nil, catalog.ErrProductNotFound
		}
		out[k] = p
	}
	return out, nil
}

func (m *mockCatalog) ProductNames(_ context.Context, ids []string) (map[string]string, error) {
	return m.names, nil
}

func (m *mockCatalog) EnsureReviewPlaceholder(_ context.Context, userID, productID, _ string) error {
	m.placeholders = append(m.placeholders, userID+"/"+productID)
	return nil
}

type mockStore struct {
	mu      sync.Mutex
	orders  map[string]*Order
	insErr  error
	claimed map[string]bool
}

func newMockStore() *mockStore {
	return &mockStore{orders: make(map[string]*Order), claimed: make(map[string]bool)}
}

func (m *mockStore) Insert(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insErr != nil {
		return m.insErr
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockStore) Get(_ context.Context, orderID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) ByUser(_ context.Context, userID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockStore) CASStatus(_ context.Context, orderID string, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *mockStore) CancelCAS(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status == StatusCancelled {
		return false, nil
	}
	o.Status = StatusCancelled
	return true, nil
}

func (m *mockStore) ClaimPointsGrant(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.PointsGranted {
		return false, nil
	}
	o.PointsGranted = true
	m.claimed[orderID] = true
	return true, nil
}

type mockLedger struct {
	mu       sync.Mutex
	credits  map[string]int
	vouchers map[string]*loyalty.Voucher
	consumed []string // "userID/voucherID"
	restored []string
	consErr  error
}

func newMockLedger() *mockLedger {
	return &mockLedger{credits: make(map[string]int), vouchers: make(map[string]*loyalty.Voucher)}
}

func (m *mockLedger) Credit(_ context.Context, userID string, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[userID] += points
	return nil
}

func (m *mockLedger) VoucherByID(_ context.Context, voucherID string) (*loyalty.Voucher, error) {
	v, ok := m.vouchers[voucherID]
	if !ok {
		return nil, loyalty.ErrVoucherNotFound
	}
	return v, nil
}

func (m *mockLedger) Consume(_ context.Context, userID, voucherID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consErr != nil {
		return m.consErr
	}
	m.consumed = append(m.consumed, userID+"/"+voucherID)
	return nil
}

func (m *mockLedger) Restore(_ context.Context, userID, voucherID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restored = append(m.restored, userID+"/"+voucherID)
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []string
}

func (m *mockPublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, string(value))
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func testService() (*Service, *mockStore, *mockInventory, *mockCatalog, *mockLedger, *mockPublisher) {
	st := newMockStore()
	inv := &mockInventory{}
	cat := &mockCatalog{
		prices: map[string]int64{
			catalog.VariantKey("p1", "500g"): 120000,
			catalog.VariantKey("p2", "1kg"):  300000,
		},
		names: map[string]string{"p1": "Royal Canin", "p2": "Me-O"},
	}
	led := newMockLedger()
	pub := &mockPublisher{}
	svc := &Service{
		Store: st, Inventory: inv, Catalog: cat, Ledger: led,
		Producer: pub, Name: "orders-test", ReleaseStockOnCancel: true,
	}
	return svc, st, inv, cat, led, pub
}

func validInput() CreateInput {
	return CreateInput{
		CustomerName:    "Tuyen Dat",
		CustomerPhone:   "0901234567",
		CustomerEmail:   "dat@example.com",
		CustomerAddress: "12 Nguyen Trai, Q1",
		Items: []ItemInput{
			{ProductID: "p1", VariantName: "500g", Qty: 2},
			{ProductID: "p2", VariantName: "1kg", Qty: 1},
		},
		ShippingFee:   30000,
		PaymentMethod: MethodCOD,
	}
}

func TestCreateSnapshotsPricesAndTotals(t *testing.T) {
	svc, st, inv, _, _, pub := testService()

	o, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.Status != StatusPending || o.PaymentStatus != PaymentUnpaid {
		t.Errorf("new order state = %s/%s, want PENDING/UNPAID", o.Status, o.PaymentStatus)
	}
	wantTotal := int64(2*120000 + 300000 + 30000)
	if o.Total != wantTotal || o.TotalAfter != wantTotal {
		t.Errorf("total = %d/%d, want %d", o.Total, o.TotalAfter, wantTotal)
	}
	if len(o.Items) != 2 || o.Items[0].UnitPrice != 120000 || o.Items[0].ProductName != "Royal Canin" {
		t.Errorf("bad item snapshot: %+v", o.Items)
	}
	if _, err := st.Get(context.Background(), o.ID); err != nil {
		t.Errorf("order not persisted: %v", err)
	}
	if len(inv.reserved[o.ID]) != 2 {
		t.Errorf("reserved %d items, want 2", len(inv.reserved[o.ID]))
	}
	if pub.count() != 1 {
		t.Errorf("published %d events, want 1", pub.count())
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _, _, _ := testService()

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"no name", func(in *CreateInput) { in.CustomerName = "" }},
		{"no items", func(in *CreateInput) { in.Items = nil }},
		{"zero qty", func(in *CreateInput) { in.Items[0].Qty = 0 }},
		{"negative shipping", func(in *CreateInput) { in.ShippingFee = -1 }},
		{"bad method", func(in *CreateInput) { in.PaymentMethod = "BITCOIN" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateInsufficientStock(t *testing.T) {
	svc, st, inv, _, _, pub := testService()
	inv.rejects = []catalog.StockReject{
		{ProductID: "p1", VariantName: "500g", Required: 2, Available: 1},
	}

	_, err := svc.Create(context.Background(), validInput())
	var ise *catalog.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	if ise.Available != 1 || ise.Required != 2 {
		t.Errorf("reject detail = %+v", ise)
	}
	if len(st.orders) != 0 {
		t.Error("order persisted despite failed reservation")
	}
	if pub.count() != 0 {
		t.Error("event published despite failed reservation")
	}
}

func TestCreateVoucherConsumeFailureReleasesStock(t *testing.T) {
	svc, st, inv, _, led, _ := testService()
	led.vouchers["v1"] = &loyalty.Voucher{ID: "v1", Discount: loyalty.FlatDiscount{Amount: 50000}}
	led.consErr = loyalty.ErrVoucherNotHeld

	in := validInput()
	in.UserID = "u1"
	in.VoucherID = "v1"

	_, err := svc.Create(context.Background(), in)
	if !errors.Is(err, loyalty.ErrVoucherNotHeld) {
		t.Fatalf("got %v, want ErrVoucherNotHeld", err)
	}
	if len(inv.released) != 1 {
		t.Errorf("released %d reservations, want 1", len(inv.released))
	}
	if len(st.orders) != 0 {
		t.Error("order persisted despite voucher failure")
	}
}

func TestCreateAppliesVoucherDiscount(t *testing.T) {
	svc, _, _, _, led, _ := testService()
	led.vouchers["v1"] = &loyalty.Voucher{ID: "v1", Discount: loyalty.PercentDiscount{Percent: 10}}

	in := validInput()
	in.UserID = "u1"
	in.VoucherID = "v1"

	o, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	itemsTotal := int64(2*120000 + 300000)
	wantDiscount := itemsTotal * 10 / 100
	if o.Discount != wantDiscount {
		t.Errorf("discount = %d, want %d", o.Discount, wantDiscount)
	}
	if o.TotalAfter != o.Total-wantDiscount {
		t.Errorf("total after = %d, want %d", o.TotalAfter, o.Total-wantDiscount)
	}
	if len(led.consumed) != 1 || led.consumed[0] != "u1/v1" {
		t.Errorf("consumed = %v", led.consumed)
	}
}

func TestCreateVoucherRequiresUser(t *testing.T) {
	svc, _, _, _, _, _ := testService()
	in := validInput()
	in.VoucherID = "v1"

	_, err := svc.Create(context.Background(), in)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestCreateInsertFailureReleasesStock(t *testing.T) {
	svc, st, inv, _, _, pub := testService()
	st.insErr = errors.New("db down")

	_, err := svc.Create(context.Background(), validInput())
	if err == nil {
		t.Fatal("expected insert error")
	}
	if len(inv.released) != 1 {
		t.Errorf("released %d reservations, want 1", len(inv.released))
	}
	if pub.count() != 0 {
		t.Error("event published despite failed insert")
	}
}

func TestCreateInsertFailureRestoresVoucher(t *testing.T) {
	// the holding was consumed before the insert; a failed insert must
	// give it back along with the stock
	svc, st, inv, _, led, _ := testService()
	led.vouchers["v1"] = &loyalty.Voucher{ID: "v1", Discount: loyalty.FlatDiscount{Amount: 50000}}
	st.insErr = errors.New("db down")

	in := validInput()
	in.UserID = "u1"
	in.VoucherID = "v1"

	if _, err := svc.Create(context.Background(), in); err == nil {
		t.Fatal("expected insert error")
	}
	if len(inv.released) != 1 {
		t.Errorf("released %d reservations, want 1", len(inv.released))
	}
	if len(led.restored) != 1 || led.restored[0] != "u1/v1" {
		t.Errorf("restored holdings = %v, want [u1/v1]", led.restored)
	}
}

// countingInventory reserves against a real quantity with the
// conditional-decrement semantics the repo's SQL has.
type countingInventory struct {
	mu    sync.Mutex
	stock int
}

func (c *countingInventory) ReserveAll(_ context.Context, _ string, items []catalog.ItemQty) (bool, []catalog.StockReject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	need := 0
	for _, it := range items {
		need += it.Qty
	}
	if c.stock < need {
		return false, []catalog.StockReject{{
			ProductID:   items[0].ProductID,
			VariantName: items[0].VariantName,
			Required:    need,
			Available:   c.stock,
		}}, nil
	}
	c.stock -= need
	return true, nil, nil
}

func (c *countingInventory) ReleaseAll(context.Context, string) error { return nil }

func TestConcurrentCreateNeverOversells(t *testing.T) {
	svc, _, _, _, _, _ := testService()
	inv := &countingInventory{stock: 5}
	svc.Inventory = inv

	in := validInput()
	in.Items = []ItemInput{{ProductID: "p1", VariantName: "500g", Qty: 2}}

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, short int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), in)
			mu.Lock()
			defer mu.Unlock()
			var stockErr *catalog.InsufficientStockError
			switch {
			case err == nil:
				created++
			case errors.As(err, &stockErr):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// stock 5, two units per order: exactly two orders fit
	if created != 2 {
		t.Errorf("%d orders created, want 2", created)
	}
	if short != n-2 {
		t.Errorf("%d stock rejections, want %d", short, n-2)
	}
	if inv.stock != 1 {
		t.Errorf("remaining stock = %d, want 1", inv.stock)
	}
}

func TestTransitionDeliveredGrantsRewardsOnce(t *testing.T) {
	svc, _, _, cat, led, _ := testService()
	in := validInput()
	in.UserID = "u1"
	o, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Transition(context.Background(), o.ID, StatusDelivering); err != nil {
		t.Fatalf("to DELIVERING: %v", err)
	}
	got, err := svc.Transition(context.Background(), o.ID, StatusDelivered)
	if err != nil {
		t.Fatalf("to DELIVERED: %v", err)
	}
	if got.Status != StatusDelivered {
		t.Errorf("status = %s, want DELIVERED", got.Status)
	}
	if want := int(o.TotalAfter / 100); led.credits["u1"] != want {
		t.Errorf("credited %d points, want %d", led.credits["u1"], want)
	}
	if len(cat.placeholders) != 2 {
		t.Errorf("created %d review placeholders, want 2", len(cat.placeholders))
	}

	// terminal: a second DELIVERED must be rejected with no extra credit
	if _, err := svc.Transition(context.Background(), o.ID, StatusDelivered); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("repeat DELIVERED: got %v, want ErrInvalidTransition", err)
	}
	if want := int(o.TotalAfter / 100); led.credits["u1"] != want {
		t.Errorf("points double-credited: %d", led.credits["u1"])
	}
}

func TestTransitionRejectsInvalidMoves(t *testing.T) {
	svc, _, _, _, _, _ := testService()
	o, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, to := range []Status{StatusDelivered, StatusPending, Status("SHIPPED")} {
		if _, err := svc.Transition(context.Background(), o.ID, to); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("PENDING -> %s: got %v, want ErrInvalidTransition", to, err)
		}
	}
}

func TestTransitionGuestOrderSkipsRewards(t *testing.T) {
	svc, _, _, cat, led, _ := testService()
	o, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Transition(context.Background(), o.ID, StatusDelivering); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transition(context.Background(), o.ID, StatusDelivered); err != nil {
		t.Fatal(err)
	}
	if len(led.credits) != 0 {
		t.Errorf("guest order credited points: %v", led.credits)
	}
	if len(cat.placeholders) != 0 {
		t.Errorf("guest order got review placeholders: %v", cat.placeholders)
	}
}

func TestCancelReleasesStockAndIsIdempotentSignal(t *testing.T) {
	svc, _, inv, _, _, _ := testService()
	o, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Cancel(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
	if len(inv.released) != 1 {
		t.Errorf("released %d reservations, want 1", len(inv.released))
	}

	if _, err := svc.Cancel(context.Background(), o.ID); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("repeat Cancel: got %v, want ErrAlreadyCancelled", err)
	}
	if len(inv.released) != 1 {
		t.Error("stock released twice")
	}
}

func TestCancelRespectsPolicy(t *testing.T) {
	svc, _, inv, _, _, _ := testService()
	svc.ReleaseStockOnCancel = false

	o, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), o.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(inv.released) != 0 {
		t.Error("stock released with policy disabled")
	}
}

func TestConcurrentTransitionsOneWinner(t *testing.T) {
	svc, _, _, _, led, _ := testService()
	in := validInput()
	in.UserID = "u1"
	o, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Transition(context.Background(), o.ID, StatusDelivering); err != nil {
		t.Fatal(err)
	}

	const n = 16
	var wg sync.WaitGroup
	var okCount int32
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Transition(context.Background(), o.ID, StatusDelivered); err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if okCount != 1 {
		t.Errorf("%d transitions succeeded, want exactly 1", okCount)
	}
	if want := int(o.TotalAfter / 100); led.credits["u1"] != want {
		t.Errorf("credited %d points under contention, want %d", led.credits["u1"], want)
	}
}

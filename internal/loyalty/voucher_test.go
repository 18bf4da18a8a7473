package loyalty

import (
	"testing"
	"time"
)

func TestDiscountApply(t *testing.T) {
	cases := []struct {
		name        string
		d           Discount
		itemsTotal  int64
		shippingFee int64
		want        int64
	}{
		{"percent off items", PercentDiscount{Percent: 10}, 500000, 30000, 50000},
		{"percent ignores shipping", PercentDiscount{Percent: 50}, 100000, 99999, 50000},
		{"percent floors", PercentDiscount{Percent: 15}, 99, 0, 14},
		{"flat off order", FlatDiscount{Amount: 40000}, 500000, 30000, 40000},
		{"flat capped at order total", FlatDiscount{Amount: 900000}, 500000, 30000, 530000},
		{"shipping off", ShippingDiscount{Amount: 20000}, 500000, 30000, 20000},
		{"shipping capped at fee", ShippingDiscount{Amount: 90000}, 500000, 30000, 30000},
		{"shipping free order", ShippingDiscount{Amount: 20000}, 500000, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.d.Apply(tc.itemsTotal, tc.shippingFee); got != tc.want {
				t.Errorf("Apply(%d, %d) = %d, want %d", tc.itemsTotal, tc.shippingFee, got, tc.want)
			}
		})
	}
}

func TestNewDiscount(t *testing.T) {
	cases := []struct {
		name    string
		typ     string
		percent int
		amount  int64
		wantErr bool
	}{
		{"valid percent", TypePerItemSavings, 10, 0, false},
		{"percent over 100", TypePerItemSavings, 120, 0, true},
		{"percent with amount", TypePerItemSavings, 10, 5000, true},
		{"valid flat", TypeOnOrderSavings, 0, 40000, false},
		{"flat with percent", TypeOnOrderSavings, 10, 40000, true},
		{"flat zero amount", TypeOnOrderSavings, 0, 0, true},
		{"valid shipping", TypeShipSavings, 0, 20000, false},
		{"unknown type", "BOGOF", 0, 20000, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewDiscount(tc.typ, tc.percent, tc.amount)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDiscount: %v", err)
			}
			if d.Type() != tc.typ {
				t.Errorf("Type() = %s, want %s", d.Type(), tc.typ)
			}
		})
	}
}

func TestVoucherExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if v := (&Voucher{ExpiresAt: &past}); !v.Expired(now) {
		t.Error("past expiry not detected")
	}
	if v := (&Voucher{ExpiresAt: &future}); v.Expired(now) {
		t.Error("future expiry flagged as expired")
	}
	if v := (&Voucher{}); v.Expired(now) {
		t.Error("nil expiry flagged as expired")
	}
}

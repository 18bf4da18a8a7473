package loyalty

import (
	"fmt"
	"time"
)

// Voucher types as stored. Each maps to exactly one Discount variant,
// so "exactly one magnitude field populated" holds by construction.
const (
	TypePerItemSavings = "PER_ITEM_SAVINGS" // percent off the items subtotal
	TypeOnOrderSavings = "ON_ORDER_SAVINGS" // flat amount off the order
	TypeShipSavings    = "SHIP_SAVINGS"     // amount off the shipping fee
)

// Discount is the tagged union of voucher kinds.
type Discount interface {
	// Apply returns the discount amount for an order given its items
	// subtotal and shipping fee. Never exceeds what it discounts.
	Apply(itemsTotal, shippingFee int64) int64
	Type() string
}

type PercentDiscount struct {
	Percent int `json:"percent"`
}

func (d PercentDiscount) Apply(itemsTotal, _ int64) int64 {
	if d.Percent <= 0 {
		return 0
	}
	return itemsTotal * int64(d.Percent) / 100
}

func (d PercentDiscount) Type() string { return TypePerItemSavings }

type FlatDiscount struct {
	Amount int64 `json:"amount"`
}

func (d FlatDiscount) Apply(itemsTotal, shippingFee int64) int64 {
	return min(d.Amount, itemsTotal+shippingFee)
}

func (d FlatDiscount) Type() string { return TypeOnOrderSavings }

type ShippingDiscount struct {
	Amount int64 `json:"amount"`
}

func (d ShippingDiscount) Apply(_, shippingFee int64) int64 {
	return min(d.Amount, shippingFee)
}

func (d ShippingDiscount) Type() string { return TypeShipSavings }

// NewDiscount builds the variant matching a stored (type, percent,
// amount) row. Rows carry both columns; only the one the type names is
// read, the other must be zero.
func NewDiscount(typ string, percent int, amount int64) (Discount, error) {
	switch typ {
	case TypePerItemSavings:
		if percent <= 0 || percent > 100 || amount != 0 {
			return nil, fmt.Errorf("voucher type %s: bad magnitude (percent=%d amount=%d)", typ, percent, amount)
		}
		return PercentDiscount{Percent: percent}, nil
	case TypeOnOrderSavings:
		if amount <= 0 || percent != 0 {
			return nil, fmt.Errorf("voucher type %s: bad magnitude (percent=%d amount=%d)", typ, percent, amount)
		}
		return FlatDiscount{Amount: amount}, nil
	case TypeShipSavings:
		if amount <= 0 || percent != 0 {
			return nil, fmt.Errorf("voucher type %s: bad magnitude (percent=%d amount=%d)", typ, percent, amount)
		}
		return ShippingDiscount{Amount: amount}, nil
	default:
		return nil, fmt.Errorf("unknown voucher type %q", typ)
	}
}

type Voucher struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Discount    Discount   `json:"discount"`
	PointCost   int        `json:"point_cost"`
	PerUserCap  int        `json:"per_user_cap"` // 0 = unlimited
	UsageCap    int        `json:"usage_cap"`    // 0 = unlimited
	UsedCount   int        `json:"used_count"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (v *Voucher) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

// Holding is one voucher a user has redeemed and not yet spent.
type Holding struct {
	VoucherID     string `json:"voucher_id"`
	Quantity      int    `json:"quantity"`
	RedeemedCount int    `json:"redeemed_count"`
}

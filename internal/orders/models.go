package orders

import "time"

type PaymentMethod string

const (
	MethodCOD     PaymentMethod = "COD"
	MethodBanking PaymentMethod = "BANKING"
)

// Item is a line-item snapshot: price and name are copied at order time
// and never re-read from the live product.
type Item struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
	Qty         int    `json:"qty"`
	UnitPrice   int64  `json:"unit_price"`
}

type Order struct {
	ID              string        `json:"id"`
	CustomerName    string        `json:"customer_name"`
	CustomerPhone   string        `json:"customer_phone"`
	CustomerEmail   string        `json:"customer_email"`
	CustomerAddress string        `json:"customer_address"`
	Items           []Item        `json:"items"`
	UserID          string        `json:"user_id,omitempty"`
	VoucherID       string        `json:"voucher_id,omitempty"`
	ShippingFee     int64         `json:"shipping_fee"`
	Total           int64         `json:"total"`
	Discount        int64         `json:"discount"`
	TotalAfter      int64         `json:"total_after_discount"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	Status          Status        `json:"order_status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	// PointsGranted guards loyalty crediting: both the delivery path and
	// the payment-callback path must claim it before crediting, so an
	// order can only ever grant points once.
	PointsGranted bool      `json:"points_granted"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ItemInput struct {
	ProductID   string `json:"product_id"`
	VariantName string `json:"variant_name"`
	Qty         int    `json:"qty"`
}

type CreateInput struct {
	CustomerName    string        `json:"customer_name"`
	CustomerPhone   string        `json:"customer_phone"`
	CustomerEmail   string        `json:"customer_email"`
	CustomerAddress string        `json:"customer_address"`
	Items           []ItemInput   `json:"items"`
	UserID          string        `json:"user_id"`
	VoucherID       string        `json:"voucher_id"`
	ShippingFee     int64         `json:"shipping_fee"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
}

package catalog

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	BuyCount    int       `json:"buy_count"`
	Variants    []Variant `json:"variants"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variant is one purchasable option of a product. Quantity never goes
// below zero: it is only mutated through guarded decrements.
type Variant struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Service is a spa service that bookings reference.
type Service struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	DurationMin  int    `json:"duration_min"`
	BookingCount int    `json:"booking_count"`
	Type         string `json:"type"` // NAIL_CARE | CLEAN | HAIR | MASSAGE | COMBO
}

type Reservation struct {
	OrderID     string
	ProductID   string
	VariantName string
	Qty         int
	Status      string // RESERVED | RELEASED
	CreatedAt   time.Time
}

// ProductReview starts life as a placeholder created on delivery
// (rating NULL) and is rated by the user afterwards. At most one row
// per (user, product).
type ProductReview struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	UserID      string    `json:"user_id"`
	Rating      *int      `json:"rating"` // nil = pending
	Content     string    `json:"content"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
}

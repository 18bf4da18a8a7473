package booking

import "time"

type Status string

const (
	StatusBooked   Status = "Booked"
	StatusConfirm  Status = "Confirm"
	StatusDone     Status = "Done"
	StatusCanceled Status = "Canceled"
)

// HoursLayout is the stored time-of-day format, e.g. "14:30".
const HoursLayout = "15:04"

type Booking struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id,omitempty"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerPhone   string    `json:"customer_phone"`
	ServiceIDs      []string  `json:"service_ids"`
	Date            time.Time `json:"date"` // calendar day
	Hours           string    `json:"hours"`
	Status          Status    `json:"booking_status"`
	ReviewSubmitted bool      `json:"review_submitted"`
	Total           int64     `json:"total"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CreateInput struct {
	UserID        string    `json:"user_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	ServiceIDs    []string  `json:"service_ids"`
	Date          time.Time `json:"date"`
	Hours         string    `json:"hours"`
}

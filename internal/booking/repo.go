package booking

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("booking not found")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Insert(ctx context.Context, b *Booking) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings(id, user_id, customer_name, customer_email, customer_phone,
			booking_date, booking_hours, booking_status, total)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.UserID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.Date, b.Hours, b.Status, b.Total)
	if err != nil {
		return err
	}
	for _, sid := range b.ServiceIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_services(booking_id, service_id) VALUES ($1, $2)`,
			b.ID, sid); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, bookingID string) (*Booking, error) {
	var b Booking
	err := r.DB.QueryRow(ctx, `
		SELECT id, COALESCE(user_id,''), customer_name, customer_email, customer_phone,
			booking_date, booking_hours, booking_status, review_submitted, total,
			created_at, updated_at
		FROM bookings WHERE id = $1`, bookingID).Scan(
		&b.ID, &b.UserID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
		&b.Date, &b.Hours, &b.Status, &b.ReviewSubmitted, &b.Total,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT service_id FROM booking_services WHERE booking_id = $1`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		b.ServiceIDs = append(b.ServiceIDs, sid)
	}
	return &b, rows.Err()
}

// SetStatusCAS moves the booking only if it is still in from.
func (r *Repo) SetStatusCAS(ctx context.Context, bookingID string, from, to Status) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE bookings SET booking_status = $3, updated_at = now()
		WHERE id = $1 AND booking_status = $2`, bookingID, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// BookedOn lists still-Booked bookings for one calendar day.
func (r *Repo) BookedOn(ctx context.Context, day time.Time) ([]Booking, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, COALESCE(user_id,''), customer_name, customer_email, customer_phone,
			booking_date, booking_hours, booking_status, review_submitted, total,
			created_at, updated_at
		FROM bookings
		WHERE booking_date = $1::date AND booking_status = $2`,
		day, StatusBooked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
			&b.Date, &b.Hours, &b.Status, &b.ReviewSubmitted, &b.Total,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ByDate serves the schedule view for one day, any status.
func (r *Repo) ByDate(ctx context.Context, day time.Time) ([]Booking, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, COALESCE(user_id,''), customer_name, customer_email, customer_phone,
			booking_date, booking_hours, booking_status, review_submitted, total,
			created_at, updated_at
		FROM bookings WHERE booking_date = $1::date ORDER BY booking_hours`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
			&b.Date, &b.Hours, &b.Status, &b.ReviewSubmitted, &b.Total,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ClaimReview flips the review flag for exactly one caller.
func (r *Repo) ClaimReview(ctx context.Context, bookingID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE bookings SET review_submitted = TRUE, updated_at = now()
		WHERE id = $1 AND NOT review_submitted`, bookingID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

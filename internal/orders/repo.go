package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

// Insert persists the order, its item snapshots, and (for owned orders)
// the user's order-history row in one transaction.
func (r *Repo) Insert(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, customer_name, customer_phone, customer_email, customer_address,
			user_id, voucher_id, shipping_fee, total, discount, total_after_discount,
			payment_method, order_status, payment_status)
		VALUES ($1,$2,$3,$4,$5, NULLIF($6,''), NULLIF($7,''), $8,$9,$10,$11, $12,$13,$14)`,
		o.ID, o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.CustomerAddress,
		o.UserID, o.VoucherID, o.ShippingFee, o.Total, o.Discount, o.TotalAfter,
		o.PaymentMethod, o.Status, o.PaymentStatus)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, variant_name, qty, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, it.ProductID, it.ProductName, it.VariantName, it.Qty, it.UnitPrice); err != nil {
			return err
		}
	}

	if o.UserID != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_orders(user_id, order_id, order_total)
			VALUES ($1,$2,$3)`, o.UserID, o.ID, o.TotalAfter); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, customer_name, customer_phone, customer_email, customer_address,
			COALESCE(user_id,''), COALESCE(voucher_id,''), shipping_fee, total, discount,
			total_after_discount, payment_method, order_status, payment_status,
			points_granted, created_at, updated_at
		FROM orders WHERE id = $1`, orderID).Scan(
		&o.ID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.CustomerAddress,
		&o.UserID, &o.VoucherID, &o.ShippingFee, &o.Total, &o.Discount,
		&o.TotalAfter, &o.PaymentMethod, &o.Status, &o.PaymentStatus,
		&o.PointsGranted, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, product_name, variant_name, qty, unit_price
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.VariantName, &it.Qty, &it.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (r *Repo) ByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, customer_name, customer_phone, customer_email, customer_address,
			COALESCE(user_id,''), COALESCE(voucher_id,''), shipping_fee, total, discount,
			total_after_discount, payment_method, order_status, payment_status,
			points_granted, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.CustomerAddress,
			&o.UserID, &o.VoucherID, &o.ShippingFee, &o.Total, &o.Discount,
			&o.TotalAfter, &o.PaymentMethod, &o.Status, &o.PaymentStatus,
			&o.PointsGranted, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// List pages through orders, optionally filtered by status, newest
// first. Returns the page and the unfiltered total for the filter.
func (r *Repo) List(ctx context.Context, status Status, page, limit int) ([]Order, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	where := ""
	args := []any{}
	if status != "" {
		where = `WHERE order_status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `
		SELECT id, customer_name, customer_phone, customer_email, customer_address,
			COALESCE(user_id,''), COALESCE(voucher_id,''), shipping_fee, total, discount,
			total_after_discount, payment_method, order_status, payment_status,
			points_granted, created_at, updated_at
		FROM orders ` + where + ` ORDER BY created_at DESC`
	if status != "" {
		q += ` LIMIT $2 OFFSET $3`
	} else {
		q += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, (page-1)*limit)

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.CustomerAddress,
			&o.UserID, &o.VoucherID, &o.ShippingFee, &o.Total, &o.Discount,
			&o.TotalAfter, &o.PaymentMethod, &o.Status, &o.PaymentStatus,
			&o.PointsGranted, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// CASStatus flips order_status only if it still equals from. A false
// return means the order moved under us (or never was in from).
func (r *Repo) CASStatus(ctx context.Context, orderID string, from, to Status) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET order_status = $3, updated_at = now()
		WHERE id = $1 AND order_status = $2`, orderID, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// CancelCAS is the direct-cancel entry point: any non-CANCELLED status
// goes straight to CANCELLED, bypassing the transition table.
func (r *Repo) CancelCAS(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET order_status = $2, updated_at = now()
		WHERE id = $1 AND order_status <> $2`, orderID, StatusCancelled)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkPaid is idempotent: replayed callbacks find payment_status
// already PAID and change nothing.
func (r *Repo) MarkPaid(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND payment_status <> $2`, orderID, PaymentPaid)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) MarkPaymentFailed(ctx context.Context, orderID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND payment_status = $3`, orderID, PaymentFailed, PaymentUnpaid)
	return err
}

// ClaimPointsGrant returns true for exactly one caller per order.
func (r *Repo) ClaimPointsGrant(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET points_granted = TRUE, updated_at = now()
		WHERE id = $1 AND NOT points_granted`, orderID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

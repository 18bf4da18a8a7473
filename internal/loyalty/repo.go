package loyalty

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrVoucherNotFound    = errors.New("voucher not found")
	ErrVoucherNotHeld     = errors.New("voucher not held")
	ErrVoucherExpired     = errors.New("voucher expired")
	ErrVoucherExhausted   = errors.New("voucher usage cap reached")
	ErrRedeemCapReached   = errors.New("per-user redemption cap reached")
	ErrInsufficientPoints = errors.New("insufficient points")
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Points(ctx context.Context, userID string) (int, error) {
	var p int
	err := r.DB.QueryRow(ctx, `SELECT points FROM users WHERE id = $1`, userID).Scan(&p)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return p, err
}

// Credit adds points to the balance in a single statement.
func (r *Repo) Credit(ctx context.Context, userID string, points int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE users SET points = points + $2 WHERE id = $1`, userID, points)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) VoucherByID(ctx context.Context, voucherID string) (*Voucher, error) {
	return r.scanVoucher(r.DB.QueryRow(ctx, `
		SELECT id, description, type, percent, amount, point_cost,
			per_user_cap, usage_cap, used_count, expires_at, created_at
		FROM vouchers WHERE id = $1`, voucherID))
}

type rowScanner interface{ Scan(dest ...any) error }

func (r *Repo) scanVoucher(row rowScanner) (*Voucher, error) {
	var (
		v       Voucher
		typ     string
		percent int
		amount  int64
	)
	err := row.Scan(&v.ID, &v.Description, &typ, &percent, &amount, &v.PointCost,
		&v.PerUserCap, &v.UsageCap, &v.UsedCount, &v.ExpiresAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}
	v.Discount, err = NewDiscount(typ, percent, amount)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// RedeemResult carries the state the caller shows the user.
type RedeemResult struct {
	Balance    int `json:"balance"`
	HoldingQty int `json:"holding_qty"`
}

// Redeem debits the voucher's point cost and increments the holding,
// atomically per user: the debit is conditional on the balance so
// concurrent redemptions can never overdraw.
func (r *Repo) Redeem(ctx context.Context, userID, voucherID string, now time.Time) (*RedeemResult, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	v, err := r.scanVoucher(tx.QueryRow(ctx, `
		SELECT id, description, type, percent, amount, point_cost,
			per_user_cap, usage_cap, used_count, expires_at, created_at
		FROM vouchers WHERE id = $1`, voucherID))
	if err != nil {
		return nil, err
	}
	if v.Expired(now) {
		return nil, ErrVoucherExpired
	}

	if v.UsageCap > 0 {
		ct, err := tx.Exec(ctx, `
			UPDATE vouchers SET used_count = used_count + 1
			WHERE id = $1 AND used_count < usage_cap`, voucherID)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() == 0 {
			return nil, ErrVoucherExhausted
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE vouchers SET used_count = used_count + 1 WHERE id = $1`, voucherID); err != nil {
			return nil, err
		}
	}

	if v.PerUserCap > 0 {
		var redeemed int
		err := tx.QueryRow(ctx, `
			SELECT redeemed_count FROM user_vouchers
			WHERE user_id = $1 AND voucher_id = $2`, userID, voucherID).Scan(&redeemed)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if redeemed >= v.PerUserCap {
			return nil, ErrRedeemCapReached
		}
	}

	// The conditional debit is the serialization point.
	var balance int
	err = tx.QueryRow(ctx, `
		UPDATE users SET points = points - $2
		WHERE id = $1 AND points >= $2
		RETURNING points`, userID, v.PointCost).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err2 := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err2 != nil {
			return nil, err2
		}
		if !exists {
			return nil, ErrUserNotFound
		}
		return nil, ErrInsufficientPoints
	}
	if err != nil {
		return nil, err
	}

	var qty int
	err = tx.QueryRow(ctx, `
		INSERT INTO user_vouchers(user_id, voucher_id, quantity, redeemed_count)
		VALUES ($1, $2, 1, 1)
		ON CONFLICT (user_id, voucher_id) DO UPDATE
		SET quantity = user_vouchers.quantity + 1,
			redeemed_count = user_vouchers.redeemed_count + 1
		RETURNING quantity`, userID, voucherID).Scan(&qty)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &RedeemResult{Balance: balance, HoldingQty: qty}, nil
}

// Consume spends one held voucher; the holding row disappears at zero.
func (r *Repo) Consume(ctx context.Context, userID, voucherID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var qty int
	err = tx.QueryRow(ctx, `
		UPDATE user_vouchers SET quantity = quantity - 1
		WHERE user_id = $1 AND voucher_id = $2 AND quantity > 0
		RETURNING quantity`, userID, voucherID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVoucherNotHeld
	}
	if err != nil {
		return err
	}
	if qty == 0 {
		if _, err := tx.Exec(ctx, `
			DELETE FROM user_vouchers WHERE user_id = $1 AND voucher_id = $2`,
			userID, voucherID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Restore puts one consumed holding back. Compensation path for a
// checkout that fails after the voucher was spent; it does not touch
// redeemed_count, the voucher was paid for once.
func (r *Repo) Restore(ctx context.Context, userID, voucherID string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO user_vouchers(user_id, voucher_id, quantity, redeemed_count)
		VALUES ($1, $2, 1, 0)
		ON CONFLICT (user_id, voucher_id) DO UPDATE
		SET quantity = user_vouchers.quantity + 1`, userID, voucherID)
	return err
}

func (r *Repo) Holdings(ctx context.Context, userID string) ([]Holding, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT voucher_id, quantity, redeemed_count FROM user_vouchers
		WHERE user_id = $1 ORDER BY voucher_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.VoucherID, &h.Quantity, &h.RedeemedCount); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListVouchers pages through the catalog with an optional type filter.
func (r *Repo) ListVouchers(ctx context.Context, typeFilter string, page, limit int) ([]Voucher, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	where := ""
	args := []any{}
	if typeFilter != "" {
		where = `WHERE type = $1`
		args = append(args, typeFilter)
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `
		SELECT id, description, type, percent, amount, point_cost,
			per_user_cap, usage_cap, used_count, expires_at, created_at
		FROM vouchers ` + where + ` ORDER BY point_cost, created_at DESC`
	if typeFilter != "" {
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

	var out []Voucher
	for rows.Next() {
		v, err := r.scanVoucher(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *v)
	}
	return out, total, rows.Err()
}

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product or variant not found")

// InsufficientStockError identifies the offending line item and how
// short the variant is.
type InsufficientStockError struct {
	ProductID   string
	VariantName string
	Required    int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s variant %q: need %d, have %d",
		e.ProductID, e.VariantName, e.Required, e.Available)
}

type ItemQty struct {
	ProductID   string `json:"product_id"`
	VariantName string `json:"variant_name"`
	Qty         int    `json:"qty"`
}

type StockReject struct {
	ProductID   string `json:"product_id"`
	VariantName string `json:"variant_name"`
	Required    int    `json:"required"`
	Available   int    `json:"available"`
}

type InventoryRepo struct{ DB *pgxpool.Pool }

// Reserve decrements one variant's stock. The check and the decrement
// are a single conditional statement so concurrent calls can never
// drive quantity below zero.
func (r *InventoryRepo) Reserve(ctx context.Context, productID, variantName string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid qty %d for product %s", qty, productID)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE product_variants SET quantity = quantity - $3
		WHERE product_id = $1 AND name = $2 AND quantity >= $3`,
		productID, variantName, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// Rejected: distinguish missing variant from short stock.
	var available int
	err = r.DB.QueryRow(ctx, `
		SELECT quantity FROM product_variants WHERE product_id = $1 AND name = $2`,
		productID, variantName).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{
		ProductID: productID, VariantName: variantName,
		Required: qty, Available: available,
	}
}

// AlreadyReserved reports whether the whole order is already RESERVED
// (idempotency short-circuit).
func (r *InventoryRepo) AlreadyReserved(ctx context.Context, orderID string, itemCount int) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE order_id = $1 AND status = 'RESERVED'`, orderID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == itemCount, nil
}

// ReserveAll locks each variant (FOR UPDATE), decrements, and records a
// reservation row per item. If any item comes up short nothing is
// committed and the shortages are returned.
func (r *InventoryRepo) ReserveAll(ctx context.Context, orderID string, items []ItemQty) (ok bool, rejects []StockReject, err error) {
	// a retried call for an order we already reserved is a no-op
	done, err := r.AlreadyReserved(ctx, orderID, len(items))
	if err != nil {
		return false, nil, err
	}
	if done {
		return true, nil, nil
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, err
	}
	defer tx.Rollback(ctx)

	for _, it := range items {
		var available int
		err := tx.QueryRow(ctx, `
			SELECT quantity FROM product_variants
			WHERE product_id = $1 AND name = $2 FOR UPDATE`,
			it.ProductID, it.VariantName).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			rejects = append(rejects, StockReject{
				ProductID: it.ProductID, VariantName: it.VariantName,
				Required: it.Qty, Available: -1,
			})
			continue
		}
		if err != nil {
			return false, nil, err
		}
		if available < it.Qty {
			rejects = append(rejects, StockReject{
				ProductID: it.ProductID, VariantName: it.VariantName,
				Required: it.Qty, Available: available,
			})
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE product_variants SET quantity = quantity - $3
			WHERE product_id = $1 AND name = $2`,
			it.ProductID, it.VariantName, it.Qty); err != nil {
			return false, nil, err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET buy_count = buy_count + $2 WHERE id = $1`,
			it.ProductID, it.Qty); err != nil {
			return false, nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations(order_id, product_id, variant_name, qty, status)
			VALUES ($1, $2, $3, $4, 'RESERVED')
			ON CONFLICT (order_id, product_id, variant_name) DO NOTHING`,
			orderID, it.ProductID, it.VariantName, it.Qty); err != nil {
			return false, nil, err
		}
	}

	if len(rejects) > 0 {
		return false, rejects, nil // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// ReleaseAll compensates an order's RESERVED rows: stock goes back,
// rows flip to RELEASED. Running it twice releases nothing twice.
func (r *InventoryRepo) ReleaseAll(ctx context.Context, orderID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT product_id, variant_name, qty FROM reservations
		WHERE order_id = $1 AND status = 'RESERVED'`, orderID)
	if err != nil {
		return err
	}
	type rec struct {
		pid, variant string
		qty          int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.variant, &x.qty); err != nil {
			rows.Close()
			return err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx, `
			UPDATE product_variants SET quantity = quantity + $3
			WHERE product_id = $1 AND name = $2`, x.pid, x.variant, x.qty); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET buy_count = buy_count - $2 WHERE id = $1`,
			x.pid, x.qty); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status = 'RELEASED'
		WHERE order_id = $1 AND status = 'RESERVED'`, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

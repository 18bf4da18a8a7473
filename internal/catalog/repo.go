package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrServiceNotFound = errors.New("service not found")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, slug, category, subcategory, buy_count, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Category, &p.Subcategory,
			&p.BuyCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		vs, err := r.variants(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Variants = vs
	}
	return out, nil
}

func (r *Repo) variants(ctx context.Context, productID string) ([]Variant, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, name, price, quantity FROM product_variants
		WHERE product_id = $1 ORDER BY name`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ProductID, &v.Name, &v.Price, &v.Quantity); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ProductNames resolves display names for order snapshots and review
// placeholders.
func (r *Repo) ProductNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	params := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx, `SELECT id, name FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

// VariantKey keys price lookups per (product, variant).
func VariantKey(productID, variantName string) string {
	return productID + "/" + variantName
}

// VariantPrices snapshots unit prices for order items straight from the
// catalog; client-supplied prices are never trusted.
func (r *Repo) VariantPrices(ctx context.Context, items []ItemQty) (map[string]int64, error) {
	out := make(map[string]int64, len(items))
	for _, it := range items {
		if _, ok := out[VariantKey(it.ProductID, it.VariantName)]; ok {
			continue
		}
		var price int64
		err := r.DB.QueryRow(ctx, `
			SELECT price FROM product_variants WHERE product_id = $1 AND name = $2`,
			it.ProductID, it.VariantName).Scan(&price)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if err != nil {
			return nil, err
		}
		out[VariantKey(it.ProductID, it.VariantName)] = price
	}
	return out, nil
}

func (r *Repo) ServicesByIDs(ctx context.Context, ids []string) ([]Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price, duration_min, booking_count, type
		FROM services WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.DurationMin, &s.BookingCount, &s.Type); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, ErrServiceNotFound
	}
	return out, nil
}

// ListServices returns the whole spa menu, optionally narrowed to one
// service type.
func (r *Repo) ListServices(ctx context.Context, typeFilter string) ([]Service, error) {
	q := `
		SELECT id, name, price, duration_min, booking_count, type
		FROM services`
	args := []any{}
	if typeFilter != "" {
		q += ` WHERE type = $1`
		args = append(args, typeFilter)
	}
	q += ` ORDER BY name`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.DurationMin, &s.BookingCount, &s.Type); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) AddServiceBookings(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := r.DB.Exec(ctx, `
			UPDATE services SET booking_count = booking_count + 1 WHERE id = $1`, id); err != nil {
			return err
		}
	}
	return nil
}

// EnsureReviewPlaceholder creates the pending review row for
// (user, product) if none exists yet. Safe to call repeatedly.
func (r *Repo) EnsureReviewPlaceholder(ctx context.Context, userID, productID, productName string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO product_reviews(id, user_id, product_id, product_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO NOTHING`,
		uuid.NewString(), userID, productID, productName)
	return err
}

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrBadRating      = errors.New("rating must be between 1 and 5")
)

// RateReview fills in a pending review.
func (r *Repo) RateReview(ctx context.Context, userID, productID string, rating int, content string) error {
	if rating < 1 || rating > 5 {
		return ErrBadRating
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE product_reviews SET rating = $3, content = $4, published = TRUE
		WHERE user_id = $1 AND product_id = $2`,
		userID, productID, rating, content)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (r *Repo) ReviewsByProduct(ctx context.Context, productID string) ([]ProductReview, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, product_id, product_name, rating, content, published, created_at
		FROM product_reviews
		WHERE product_id = $1 AND published ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductReview
	for rows.Next() {
		var rv ProductReview
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.ProductID, &rv.ProductName,
			&rv.Rating, &rv.Content, &rv.Published, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

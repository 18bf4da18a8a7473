package loyalty

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// Store is what the ledger needs from persistence; *Repo satisfies it.
type Store interface {
	Points(ctx context.Context, userID string) (int, error)
	Credit(ctx context.Context, userID string, points int) error
	VoucherByID(ctx context.Context, voucherID string) (*Voucher, error)
	Redeem(ctx context.Context, userID, voucherID string, now time.Time) (*RedeemResult, error)
	Consume(ctx context.Context, userID, voucherID string) error
	Restore(ctx context.Context, userID, voucherID string) error
}

// Ledger owns every point-balance and voucher-holding mutation. No
// other component touches those fields.
type Ledger struct {
	Store Store
}

// Credit never fails the enclosing operation: a missing user is logged
// and swallowed, anything else propagates.
func (l *Ledger) Credit(ctx context.Context, userID string, points int) error {
	if userID == "" || points <= 0 {
		return nil
	}
	err := l.Store.Credit(ctx, userID, points)
	if errors.Is(err, ErrUserNotFound) {
		log.Printf("loyalty: credit skipped, user %s not found", userID)
		return nil
	}
	return err
}

func (l *Ledger) Points(ctx context.Context, userID string) (int, error) {
	return l.Store.Points(ctx, userID)
}

func (l *Ledger) Redeem(ctx context.Context, userID, voucherID string) (*RedeemResult, error) {
	return l.Store.Redeem(ctx, userID, voucherID, time.Now())
}

func (l *Ledger) Consume(ctx context.Context, userID, voucherID string) error {
	return l.Store.Consume(ctx, userID, voucherID)
}

// Restore undoes one Consume when the operation that spent the voucher
// could not complete.
func (l *Ledger) Restore(ctx context.Context, userID, voucherID string) error {
	return l.Store.Restore(ctx, userID, voucherID)
}

func (l *Ledger) VoucherByID(ctx context.Context, voucherID string) (*Voucher, error) {
	return l.Store.VoucherByID(ctx, voucherID)
}

const (
	reviewBonusBase     = 50
	reviewBonusLong     = 50
	reviewBonusWordsMin = 50
)

// ReviewBonus is the fixed booking-review grant: 50 points, doubled
// when the review runs past 50 words.
func ReviewBonus(content string) int {
	bonus := reviewBonusBase
	if len(strings.Fields(content)) > reviewBonusWordsMin {
		bonus += reviewBonusLong
	}
	return bonus
}

package coupons

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CouponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// GetByCode returns the coupon with the given code, ignoring case, or nil.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	var (
		c         Coupon
		maxAmount decimal.NullDecimal
		expiresAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, description, discount_type, discount_value, minimum_order_amount,
			maximum_discount_amount, max_uses, used_count, starts_at, expires_at, is_active
		FROM coupons
		WHERE code = $1
	`, strings.ToUpper(code)).Scan(&c.ID, &c.Code, &c.Description, &c.DiscountType, &c.DiscountValue,
		&c.MinimumOrderAmount, &maxAmount, &c.MaxUses, &c.UsedCount, &c.StartsAt, &expiresAt, &c.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if maxAmount.Valid {
		c.MaximumDiscountAmount = &maxAmount.Decimal
	}
	if expiresAt.Valid {
		c.ExpiresAt = &expiresAt.Time
	}

	return &c, nil
}

// RecordRedemption counts one use of code for orderID. Replayed events for
// the same order are ignored. It reports whether a use was counted.
func (r *CouponRepository) RecordRedemption(ctx context.Context, code, orderID string, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO coupon_redemptions (order_id, coupon_code, redeemed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id) DO NOTHING
	`, orderID, strings.ToUpper(code), at)
	if err != nil {
		return false, err
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
		WHERE code = $1
	`, strings.ToUpper(code)); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

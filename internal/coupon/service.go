// Package coupon applies coupon codes to a cart through the external coupon
// validation API.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pawshop-checkout/internal/cart"
	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
)

var (
	ErrEmptyCode     = errors.New("coupon code is required")
	ErrEmptyCart     = errors.New("cannot apply a coupon to an empty cart")
	ErrApplyInFlight = errors.New("a coupon is already being applied")
	ErrCartChanged   = errors.New("cart changed while the coupon was being validated")
)

// RejectedError is returned when the coupon API refuses a code: unknown,
// expired, below the minimum order amount or out of uses.
type RejectedError struct {
	Code   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

type Validator interface {
	ValidateCoupon(ctx context.Context, code string, total decimal.Decimal) (domain.CouponApplication, error)
}

type Service struct {
	store     *cart.Store
	validator Validator
	logger    *slog.Logger
	applying  atomic.Bool
}

func NewService(store *cart.Store, validator Validator, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

// Apply validates code against the current subtotal and, on success, makes it
// the cart's only coupon. Any failure leaves the existing coupon in place.
func (s *Service) Apply(ctx context.Context, code string) (cart.Snapshot, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return s.store.Snapshot(), ErrEmptyCode
	}

	if !s.applying.CompareAndSwap(false, true) {
		return s.store.Snapshot(), ErrApplyInFlight
	}
	defer s.applying.Store(false)

	snap := s.store.Snapshot()
	if snap.IsEmpty() {
		return snap, ErrEmptyCart
	}

	subtotal := snap.Totals.Subtotal
	app, err := s.validator.ValidateCoupon(ctx, code, subtotal)
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			s.logger.Info("coupon rejected", "code", code, "reason", rejected.Reason)
		} else {
			s.logger.Error("failed to validate coupon", "error", err, "code", code)
		}
		return s.store.Snapshot(), fmt.Errorf("apply coupon %s: %w", code, err)
	}
	if app.Code == "" {
		app.Code = code
	}

	applied, ok := s.store.SetCouponFor(app, subtotal)
	if !ok {
		s.logger.Info("discarding stale coupon validation", "code", code)
		return applied, ErrCartChanged
	}

	s.logger.Info("coupon applied", "code", app.Code, "discount", applied.Totals.Discount.StringFixed(2))
	return applied, nil
}

// Remove drops the applied coupon. It never touches the network.
func (s *Service) Remove() cart.Snapshot {
	return s.store.ClearCoupon()
}

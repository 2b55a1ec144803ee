package coupons

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
)

// RedemptionHandler consumes order.created events and counts a use of the
// coupon each order redeemed.
type RedemptionHandler struct {
	store  Store
	logger *slog.Logger
}

func NewRedemptionHandler(store Store, logger *slog.Logger) *RedemptionHandler {
	return &RedemptionHandler{store: store, logger: logger}
}

func (h *RedemptionHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	if event.CouponCode == "" {
		return nil
	}

	counted, err := h.store.RecordRedemption(ctx, event.CouponCode, event.OrderID, event.Timestamp)
	if err != nil {
		h.logger.Error("failed to record coupon redemption", "error", err, "order_id", event.OrderID, "code", event.CouponCode)
		return fmt.Errorf("record redemption for order %s: %w", event.OrderID, err)
	}

	if !counted {
		h.logger.Info("coupon redemption already recorded", "order_id", event.OrderID, "code", event.CouponCode)
		return nil
	}

	h.logger.Info("coupon redemption recorded", "order_id", event.OrderID, "code", event.CouponCode)
	return nil
}

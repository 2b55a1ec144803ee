package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pawshop-checkout/internal/money"
)

type Store interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	RecordRedemption(ctx context.Context, code, orderID string, at time.Time) (bool, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

type validateRequest struct {
	Code        string `json:"code"`
	TotalAmount any    `json:"total_amount"`
}

type validateResponse struct {
	Code                  string           `json:"code"`
	Description           string           `json:"description,omitempty"`
	DiscountType          string           `json:"discount_type"`
	DiscountValue         decimal.Decimal  `json:"discount_value"`
	MinimumOrderAmount    decimal.Decimal  `json:"minimum_order_amount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximum_discount_amount,omitempty"`
	DiscountAmount        decimal.Decimal  `json:"discount_amount"`
}

func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		h.writeError(w, http.StatusUnprocessableEntity, "Please enter a coupon code")
		return
	}
	total := money.Parse(req.TotalAmount)

	c, err := h.store.GetByCode(r.Context(), code)
	if err != nil {
		h.logger.Error("failed to load coupon", "error", err, "code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if c == nil {
		h.logger.Info("unknown coupon code", "code", code)
		h.writeError(w, http.StatusUnprocessableEntity, "Invalid coupon code")
		return
	}

	discount, err := Evaluate(*c, total, h.now())
	if err != nil {
		var rejection *RejectionError
		if errors.As(err, &rejection) {
			h.logger.Info("coupon rejected", "code", code, "reason", rejection.Reason, "total", money.String(total))
			h.writeError(w, http.StatusUnprocessableEntity, rejection.Reason)
			return
		}
		h.logger.Error("failed to evaluate coupon", "error", err, "code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("coupon validated", "code", code, "discount", money.String(discount), "total", money.String(total))
	h.writeJSON(w, http.StatusOK, validateResponse{
		Code:                  c.Code,
		Description:           c.Description,
		DiscountType:          string(c.DiscountType),
		DiscountValue:         c.DiscountValue,
		MinimumOrderAmount:    c.MinimumOrderAmount,
		MaximumDiscountAmount: c.MaximumDiscountAmount,
		DiscountAmount:        discount,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
)

type memoryStore struct {
	coupons     map[string]*Coupon
	redemptions map[string]string
	err         error
}

func (m *memoryStore) GetByCode(_ context.Context, code string) (*Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.coupons[strings.ToUpper(code)], nil
}

func (m *memoryStore) RecordRedemption(_ context.Context, code, orderID string, _ time.Time) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.redemptions[orderID]; ok {
		return false, nil
	}
	m.redemptions[orderID] = code
	if c, ok := m.coupons[strings.ToUpper(code)]; ok {
		c.UsedCount++
	}
	return true, nil
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		coupons: map[string]*Coupon{
			"FIVEOFF": {
				Code:          "FIVEOFF",
				Description:   "£5 off",
				DiscountType:  domain.DiscountFixed,
				DiscountValue: d("5"),
				StartsAt:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
				IsActive:      true,
			},
			"BIGSPEND": {
				Code:               "BIGSPEND",
				DiscountType:       domain.DiscountPercentage,
				DiscountValue:      d("20"),
				MinimumOrderAmount: d("100"),
				StartsAt:           time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
				IsActive:           true,
			},
		},
		redemptions: map[string]string{},
	}
}

func validate(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/coupons/validate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleValidate(rec, req)
	return rec
}

func TestHandler_HandleValidate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid coupon", func(t *testing.T) {
		h := NewHandler(newMemoryStore(), logger)

		rec := validate(h, `{"code":"fiveoff","total_amount":"20.00"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp validateResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Code != "FIVEOFF" || resp.DiscountAmount.StringFixed(2) != "5.00" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("numeric total", func(t *testing.T) {
		h := NewHandler(newMemoryStore(), logger)

		rec := validate(h, `{"code":"FIVEOFF","total_amount":3.5}`)

		var resp validateResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.DiscountAmount.StringFixed(2) != "3.50" {
			t.Errorf("expected discount clamped to 3.50, got %s", resp.DiscountAmount)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		h := NewHandler(newMemoryStore(), logger)

		rec := validate(h, `{"code":"NOPE","total_amount":"20.00"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Invalid coupon code") {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("below minimum", func(t *testing.T) {
		h := NewHandler(newMemoryStore(), logger)

		rec := validate(h, `{"code":"BIGSPEND","total_amount":"20.00"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "£100.00") {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("empty code", func(t *testing.T) {
		h := NewHandler(newMemoryStore(), logger)

		rec := validate(h, `{"code":"  ","total_amount":"20.00"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rec.Code)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemoryStore()
		store.err = errors.New("connection refused")
		h := NewHandler(store, logger)

		rec := validate(h, `{"code":"FIVEOFF","total_amount":"20.00"}`)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
	})
}

func TestRedemptionHandler_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("counts one use per order", func(t *testing.T) {
		store := newMemoryStore()
		h := NewRedemptionHandler(store, logger)
		payload := []byte(`{"order_id":"order-1","coupon_code":"FIVEOFF","total":"22.99","timestamp":"2026-06-01T12:00:00Z"}`)

		if err := h.Handle(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := h.Handle(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error on replay: %v", err)
		}

		if got := store.coupons["FIVEOFF"].UsedCount; got != 1 {
			t.Errorf("expected used count 1, got %d", got)
		}
	})

	t.Run("ignores orders without a coupon", func(t *testing.T) {
		store := newMemoryStore()
		h := NewRedemptionHandler(store, logger)

		if err := h.Handle(context.Background(), []byte(`{"order_id":"order-2","total":"10.00"}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.redemptions) != 0 {
			t.Errorf("expected no redemptions, got %v", store.redemptions)
		}
	})

	t.Run("invalid payload", func(t *testing.T) {
		h := NewRedemptionHandler(newMemoryStore(), logger)

		if err := h.Handle(context.Background(), []byte(`not json`)); err == nil {
			t.Error("expected error for invalid payload")
		}
	})

	t.Run("store failure is returned for redelivery", func(t *testing.T) {
		store := newMemoryStore()
		store.err = errors.New("connection refused")
		h := NewRedemptionHandler(store, logger)

		if err := h.Handle(context.Background(), []byte(`{"order_id":"order-3","coupon_code":"FIVEOFF"}`)); err == nil {
			t.Error("expected error")
		}
	})
}

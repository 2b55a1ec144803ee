package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/pawshop-checkout/internal/cart"
	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/pricing"
)

type mockOrders struct {
	mu          sync.Mutex
	submissions []domain.OrderSubmission
	order       domain.Order
	err         error
	hook        func()
}

func (m *mockOrders) CreateOrder(_ context.Context, s domain.OrderSubmission) (domain.Order, error) {
	m.mu.Lock()
	m.submissions = append(m.submissions, s)
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if m.err != nil {
		return domain.Order{}, m.err
	}
	return m.order, nil
}

func (m *mockOrders) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

type fieldError struct {
	fields map[string]string
}

func (e *fieldError) Error() string                  { return "order api rejected submission" }
func (e *fieldError) FieldErrors() map[string]string { return e.fields }

func newAssembler(t *testing.T, orders OrderCreator) (*Assembler, *cart.Store) {
	t.Helper()
	store := cart.NewStore(pricing.Default())
	_, err := store.AddItem(domain.Product{ID: "harness", Name: "Harness", SKU: "H-1", Price: decimal.RequireFromString("10.00")}, 2)
	require.NoError(t, err)
	return NewAssembler(store, orders, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestAssembler_Submit(t *testing.T) {
	t.Run("submits and clears the cart", func(t *testing.T) {
		orders := &mockOrders{order: domain.Order{ID: "order-1", Status: domain.OrderStatusPending}}
		a, store := newAssembler(t, orders)
		store.SetCoupon(domain.CouponApplication{Code: "FIVEOFF", DiscountAmount: decimal.NewFromInt(5)})

		order, err := a.Submit(context.Background(), validDraft())
		require.NoError(t, err)

		assert.Equal(t, "order-1", order.ID)
		assert.Equal(t, StateSucceeded, a.State())
		snap := store.Snapshot()
		assert.True(t, snap.IsEmpty())
		assert.Nil(t, snap.AppliedCoupon)
		_, hasDraft := a.Draft()
		assert.False(t, hasDraft)

		require.Len(t, orders.submissions, 1)
		sub := orders.submissions[0]
		assert.NotEmpty(t, sub.IdempotencyKey)
		assert.Equal(t, "FIVEOFF", sub.CouponCode)
		assert.Equal(t, "4242424242424242", sub.Payment.CardNumber)
		assert.True(t, sub.BillingSameAsShipping)
		assert.Equal(t, sub.ShippingAddress, sub.BillingAddress)
		assert.Equal(t, "20", sub.Subtotal.String())
		assert.Equal(t, "5", sub.Discount.String())
		assert.Equal(t, "3", sub.Tax.String())
		assert.Equal(t, "22.99", sub.Total.String())
		require.Len(t, sub.Items, 1)
		assert.Equal(t, "harness", sub.Items[0].ProductID)
		assert.Equal(t, 2, sub.Items[0].Quantity)
	})

	t.Run("uses distinct billing address", func(t *testing.T) {
		orders := &mockOrders{order: domain.Order{ID: "order-2"}}
		a, _ := newAssembler(t, orders)
		d := validDraft()
		billing := validAddress()
		billing.City = "Leeds"
		billing.PostalCode = "ls1 4ap"
		d.Billing = domain.DistinctBilling(billing)

		_, err := a.Submit(context.Background(), d)
		require.NoError(t, err)

		sub := orders.submissions[0]
		assert.False(t, sub.BillingSameAsShipping)
		assert.Equal(t, "Leeds", sub.BillingAddress.City)
		assert.Equal(t, "LS1 4AP", sub.BillingAddress.PostalCode)
		assert.Equal(t, "London", sub.ShippingAddress.City)
	})

	t.Run("rejects an empty cart before any request", func(t *testing.T) {
		orders := &mockOrders{}
		a, store := newAssembler(t, orders)
		store.Clear()

		_, err := a.Submit(context.Background(), validDraft())

		assert.ErrorIs(t, err, ErrCartEmpty)
		assert.Equal(t, 0, orders.calls())
		assert.Equal(t, StateCollecting, a.State())
	})

	t.Run("validation failure makes no request and keeps the draft", func(t *testing.T) {
		orders := &mockOrders{}
		a, store := newAssembler(t, orders)
		d := validDraft()
		d.Shipping.PostalCode = "12345"

		_, err := a.Submit(context.Background(), d)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "shipping.postalCode")
		assert.Equal(t, 0, orders.calls())
		assert.Equal(t, StateCollecting, a.State())
		assert.Contains(t, a.FieldErrors(), "shipping.postalCode")
		kept, ok := a.Draft()
		require.True(t, ok)
		assert.Equal(t, "12345", kept.Shipping.PostalCode)
		assert.False(t, store.Snapshot().IsEmpty())
	})

	t.Run("api failure keeps the cart and allows a retry with the same key", func(t *testing.T) {
		orders := &mockOrders{err: errors.New("bad gateway")}
		a, store := newAssembler(t, orders)

		_, err := a.Submit(context.Background(), validDraft())

		var serr *SubmitError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, StateFailed, a.State())
		assert.Len(t, store.Snapshot().Items, 1)
		_, ok := a.Draft()
		assert.True(t, ok)

		orders.err = nil
		orders.order = domain.Order{ID: "order-3"}
		_, err = a.Submit(context.Background(), validDraft())
		require.NoError(t, err)

		require.Len(t, orders.submissions, 2)
		assert.Equal(t, orders.submissions[0].IdempotencyKey, orders.submissions[1].IdempotencyKey)
	})

	t.Run("new idempotency key once the cart changes", func(t *testing.T) {
		orders := &mockOrders{err: errors.New("timeout")}
		a, store := newAssembler(t, orders)

		_, err := a.Submit(context.Background(), validDraft())
		require.Error(t, err)

		store.SetQuantity("harness", 3)
		_, err = a.Submit(context.Background(), validDraft())
		require.Error(t, err)

		assert.NotEqual(t, orders.submissions[0].IdempotencyKey, orders.submissions[1].IdempotencyKey)
	})

	t.Run("surfaces server field errors", func(t *testing.T) {
		orders := &mockOrders{err: &fieldError{fields: map[string]string{"shipping.phone": "invalid phone"}}}
		a, _ := newAssembler(t, orders)

		_, err := a.Submit(context.Background(), validDraft())

		var serr *SubmitError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "invalid phone", serr.Fields()["shipping.phone"])
		assert.Equal(t, "invalid phone", a.FieldErrors()["shipping.phone"])
	})

	t.Run("rejects a second submit while one is in flight", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		orders := &mockOrders{order: domain.Order{ID: "order-4"}}
		orders.hook = func() {
			close(entered)
			<-release
		}
		a, _ := newAssembler(t, orders)

		done := make(chan error, 1)
		go func() {
			_, err := a.Submit(context.Background(), validDraft())
			done <- err
		}()
		<-entered

		assert.Equal(t, StateSubmitting, a.State())
		_, err := a.Submit(context.Background(), validDraft())
		assert.ErrorIs(t, err, ErrSubmissionInFlight)

		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, 1, orders.calls())
	})

	t.Run("does not clear the cart when the caller has gone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		orders := &mockOrders{order: domain.Order{ID: "order-5"}}
		orders.hook = cancel
		a, store := newAssembler(t, orders)

		order, err := a.Submit(ctx, validDraft())

		assert.ErrorIs(t, err, ErrSubmissionAbandoned)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "order-5", order.ID)
		assert.False(t, store.Snapshot().IsEmpty())
	})
}

func TestAssembler_Reset(t *testing.T) {
	a, _ := newAssembler(t, &mockOrders{err: errors.New("down")})
	_, err := a.Submit(context.Background(), validDraft())
	require.Error(t, err)

	a.Reset()

	assert.Equal(t, StateCollecting, a.State())
	_, ok := a.Draft()
	assert.False(t, ok)
	assert.NoError(t, a.LastError())
}

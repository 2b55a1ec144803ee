package storefront

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("storefront")

type Metrics struct {
	cartMutations metric.Int64Counter
	coupons       metric.Int64Counter
	checkouts     metric.Int64Counter
	orderTotal    metric.Float64Histogram
	sessions      metric.Int64ObservableGauge
}

func NewMetrics(registry *Registry) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.cartMutations, err = meter.Int64Counter("storefront.cart.mutations",
		metric.WithDescription("Cart commands handled, by operation"))
	if err != nil {
		return nil, err
	}

	m.coupons, err = meter.Int64Counter("storefront.coupon.applications",
		metric.WithDescription("Coupon apply attempts, by result"))
	if err != nil {
		return nil, err
	}

	m.checkouts, err = meter.Int64Counter("storefront.checkout.submissions",
		metric.WithDescription("Checkout submissions, by outcome"))
	if err != nil {
		return nil, err
	}

	m.orderTotal, err = meter.Float64Histogram("storefront.order.total",
		metric.WithDescription("Grand total of created orders"),
		metric.WithUnit("GBP"))
	if err != nil {
		return nil, err
	}

	m.sessions, err = meter.Int64ObservableGauge("storefront.sessions.active",
		metric.WithDescription("Live cart sessions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(registry.Len()))
			return nil
		}))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) cartMutation(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.cartMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *Metrics) couponResult(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.coupons.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) checkoutOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) orderCreated(ctx context.Context, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.orderTotal.Record(ctx, total.InexactFloat64())
}

package shopapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
)

// CreateOrder posts the submission once. The idempotency key lets the order
// API recognise a retry of the same checkout attempt.
func (c *Client) CreateOrder(ctx context.Context, sub domain.OrderSubmission) (domain.Order, error) {
	header := http.Header{}
	if sub.IdempotencyKey != "" {
		header.Set("Idempotency-Key", sub.IdempotencyKey)
	}

	resp, err := c.do(ctx, http.MethodPost, "/orders", sub, header)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	if !resp.ok() {
		return domain.Order{}, fmt.Errorf("create order: %w", decodeAPIError(resp))
	}

	var order domain.Order
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order response: %w", err)
	}

	c.logger.Info("order created", "order_id", order.ID, "total", order.Total.StringFixed(2))
	return order, nil
}

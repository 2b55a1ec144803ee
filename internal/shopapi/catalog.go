package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/money"
)

var ErrProductNotFound = errors.New("product not found")

type productPayload struct {
	ID    any    `json:"id"`
	Name  string `json:"name"`
	Price any    `json:"price"`
	SKU   string `json:"sku"`
}

func (p productPayload) toDomain() domain.Product {
	var id string
	switch v := p.ID.(type) {
	case string:
		id = v
	case json.Number:
		id = v.String()
	case nil:
	default:
		id = fmt.Sprint(v)
	}
	return domain.Product{
		ID:    id,
		Name:  p.Name,
		Price: money.Parse(p.Price),
		SKU:   p.SKU,
	}
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	resp, err := c.do(ctx, http.MethodGet, "/products", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if !resp.ok() {
		return nil, fmt.Errorf("list products: %w", decodeAPIError(resp))
	}

	products, err := decodeProducts(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	resp, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, ErrProductNotFound)
	}
	if !resp.ok() {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, decodeAPIError(resp))
	}

	var p productPayload
	if err := unmarshalNumbers(resp.Body, &p); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", id, err)
	}
	return p.toDomain(), nil
}

// decodeProducts accepts a bare array, a paginated {"results": [...]}
// envelope, or {"data": {"results": [...]}}.
func decodeProducts(body []byte) ([]domain.Product, error) {
	var raw []productPayload
	if err := unmarshalNumbers(body, &raw); err != nil {
		var envelope struct {
			Results []productPayload `json:"results"`
			Data    *struct {
				Results []productPayload `json:"results"`
			} `json:"data"`
		}
		if err := unmarshalNumbers(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
		raw = envelope.Results
		if raw == nil && envelope.Data != nil {
			raw = envelope.Data.Results
		}
	}

	products := make([]domain.Product, 0, len(raw))
	for _, p := range raw {
		products = append(products, p.toDomain())
	}
	return products, nil
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

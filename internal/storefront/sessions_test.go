package storefront

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joao-fontenele/pawshop-checkout/internal/pricing"
)

func TestRegistry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry := NewRegistry(pricing.Default(), newFakeShop(), 30*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	registry.now = func() time.Time { return now }

	first, created := registry.Get("")
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	again, created := registry.Get(first.ID)
	assert.False(t, created)
	assert.Same(t, first, again)

	unknown, created := registry.Get("not-a-session")
	assert.True(t, created)
	assert.NotEqual(t, "not-a-session", unknown.ID)
	assert.Equal(t, 2, registry.Len())

	now = now.Add(20 * time.Minute)
	registry.Get(first.ID)

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, registry.Sweep())
	assert.Equal(t, 1, registry.Len())

	_, created = registry.Get(first.ID)
	assert.False(t, created)
}

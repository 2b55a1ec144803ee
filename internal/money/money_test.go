package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"decimal string", "10.50", "10.5"},
		{"string with symbol", "£4.99", "4.99"},
		{"string with thousands separator", "1,250.00", "1250"},
		{"padded string", "  3.10 ", "3.1"},
		{"empty string", "", "0"},
		{"garbage", "ten pounds", "0"},
		{"NaN string", "NaN", "0"},
		{"float", 2.5, "2.5"},
		{"NaN float", math.NaN(), "0"},
		{"infinite float", math.Inf(1), "0"},
		{"int", 7, "7"},
		{"int64", int64(12), "12"},
		{"json number", json.Number("19.99"), "19.99"},
		{"nil", nil, "0"},
		{"unsupported type", struct{}{}, "0"},
		{"decimal", decimal.RequireFromString("0.20"), "0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input).String())
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "£28.99", Format(decimal.RequireFromString("28.99")))
	assert.Equal(t, "£0.00", Format(decimal.Zero))
	assert.Equal(t, "£4.00", Format(decimal.NewFromInt(4)))
	assert.Equal(t, "£3.34", Format(decimal.RequireFromString("3.335")))
	assert.Equal(t, "-£5.00", Format(decimal.NewFromInt(-5)))
}

func TestString(t *testing.T) {
	assert.Equal(t, "20.00", String(decimal.NewFromInt(20)))
	assert.Equal(t, "0.00", String(Parse("bogus")))
}

func TestTimes(t *testing.T) {
	got := Times(decimal.RequireFromString("10.00"), 3)
	assert.True(t, got.Equal(decimal.NewFromInt(30)), "got %s", got)
}

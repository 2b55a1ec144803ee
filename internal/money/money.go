// Package money parses and formats GBP amounts. Parsing never fails: input
// that cannot be read as a finite number becomes zero, so totals built from
// catalog or API values can never carry NaN or Inf.
package money

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const Symbol = "£"

// Parse reads a decimal from a string, number or decimal value.
func Parse(value any) decimal.Decimal {
	switch v := value.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		return *v
	case string:
		return parseString(v)
	case json.Number:
		return parseString(string(v))
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}
}

func parseString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.Replace(s, Symbol, "", 1)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// Round rounds half away from zero to whole pennies.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// String renders d with exactly two decimals and no symbol, e.g. "20.00".
func String(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Format renders d for display, e.g. "£28.99" or "-£5.00".
func Format(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + Symbol + d.Abs().StringFixed(2)
	}
	return Symbol + d.StringFixed(2)
}

// Times returns unit multiplied by a quantity.
func Times(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

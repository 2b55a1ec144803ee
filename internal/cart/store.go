// Package cart keeps the line items of one shopping session together with the
// applied coupon and the totals derived from both.
package cart

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/money"
	"github.com/joao-fontenele/pawshop-checkout/internal/pricing"
)

// MaxLineQuantity caps the units a single line can hold.
const MaxLineQuantity = 9999

var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrQuantityTooLarge = fmt.Errorf("%w and at most %d per item", ErrInvalidQuantity, MaxLineQuantity)
	ErrMissingProductID = errors.New("product id is required")
)

// Snapshot is a consistent, immutable view of the cart taken under the
// store's lock.
type Snapshot struct {
	Items         []domain.LineItem
	AppliedCoupon *domain.CouponApplication
	TotalItems    int
	TotalPrice    decimal.Decimal
	Totals        pricing.Totals
	Version       uint64
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Store is safe for concurrent use. Every mutation recomputes the derived
// totals before releasing the lock.
type Store struct {
	mu   sync.RWMutex
	calc pricing.Calculator

	items  []domain.LineItem
	coupon *domain.CouponApplication

	totalItems int
	totalPrice decimal.Decimal
	totals     pricing.Totals
	version    uint64
}

func NewStore(calc pricing.Calculator) *Store {
	s := &Store{calc: calc}
	s.recompute()
	return s
}

// AddItem adds quantity units of product. The unit price is captured now;
// later catalog price changes do not affect the line.
func (s *Store) AddItem(product domain.Product, quantity int) (Snapshot, error) {
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return s.Snapshot(), ErrMissingProductID
	}
	if quantity <= 0 {
		return s.Snapshot(), ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return s.Snapshot(), ErrQuantityTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		if s.items[i].Quantity > MaxLineQuantity-quantity {
			return s.snapshotLocked(), ErrQuantityTooLarge
		}
		s.items[i].Quantity += quantity
		s.items[i].LineTotal = money.Times(s.items[i].UnitPrice, s.items[i].Quantity)
	} else {
		s.items = append(s.items, domain.LineItem{
			ProductID: id,
			Name:      product.Name,
			SKU:       product.SKU,
			UnitPrice: product.Price,
			Quantity:  quantity,
			LineTotal: money.Times(product.Price, quantity),
		})
	}

	s.recompute()
	return s.snapshotLocked(), nil
}

// SetQuantity replaces the quantity of a line. Zero or less removes it; an
// unknown product is a no-op.
func (s *Store) SetQuantity(productID string, quantity int) (Snapshot, error) {
	if quantity <= 0 {
		return s.RemoveItem(productID), nil
	}
	if quantity > MaxLineQuantity {
		return s.Snapshot(), ErrQuantityTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(strings.TrimSpace(productID))
	if i < 0 {
		return s.snapshotLocked(), nil
	}

	s.items[i].Quantity = quantity
	s.items[i].LineTotal = money.Times(s.items[i].UnitPrice, quantity)

	s.recompute()
	return s.snapshotLocked(), nil
}

func (s *Store) RemoveItem(productID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(strings.TrimSpace(productID))
	if i < 0 {
		return s.snapshotLocked()
	}

	s.items = slices.Delete(s.items, i, i+1)
	if len(s.items) == 0 {
		s.coupon = nil
	}

	s.recompute()
	return s.snapshotLocked()
}

// Clear empties the cart and drops the coupon, whose discount was resolved
// against a subtotal that no longer exists.
func (s *Store) Clear() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.coupon = nil

	s.recompute()
	return s.snapshotLocked()
}

// ClearIfVersion clears the cart only when nothing changed since version was
// observed. It reports whether the cart was cleared.
func (s *Store) ClearIfVersion(version uint64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != version {
		return s.snapshotLocked(), false
	}

	s.items = nil
	s.coupon = nil

	s.recompute()
	return s.snapshotLocked(), true
}

// SetCoupon replaces any applied coupon.
func (s *Store) SetCoupon(app domain.CouponApplication) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coupon = &app

	s.recompute()
	return s.snapshotLocked()
}

// SetCouponFor applies app only if the cart subtotal still equals subtotal,
// the amount the coupon was validated against.
func (s *Store) SetCouponFor(app domain.CouponApplication, subtotal decimal.Decimal) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 || !s.totals.Subtotal.Equal(subtotal) {
		return s.snapshotLocked(), false
	}

	s.coupon = &app

	s.recompute()
	return s.snapshotLocked(), true
}

func (s *Store) ClearCoupon() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coupon = nil

	s.recompute()
	return s.snapshotLocked()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) indexOf(productID string) int {
	return slices.IndexFunc(s.items, func(item domain.LineItem) bool {
		return item.ProductID == productID
	})
}

// recompute must be called with mu held for writing.
func (s *Store) recompute() {
	totalItems := 0
	for _, item := range s.items {
		totalItems += item.Quantity
	}

	s.totals = s.calc.Calculate(s.items, s.coupon)
	s.totalItems = totalItems
	s.totalPrice = s.totals.Subtotal
	s.version++
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Items:      slices.Clone(s.items),
		TotalItems: s.totalItems,
		TotalPrice: s.totalPrice,
		Totals:     s.totals,
		Version:    s.version,
	}
	if snap.Items == nil {
		snap.Items = []domain.LineItem{}
	}
	if s.coupon != nil {
		c := *s.coupon
		snap.AppliedCoupon = &c
	}
	return snap
}

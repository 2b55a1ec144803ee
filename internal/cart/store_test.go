package cart

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/money"
	"github.com/joao-fontenele/pawshop-checkout/internal/pricing"
)

func product(id, price string) domain.Product {
	return domain.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: decimal.RequireFromString(price),
		SKU:   "SKU-" + id,
	}
}

func newStore() *Store {
	return NewStore(pricing.Default())
}

func TestStore_AddItem(t *testing.T) {
	t.Run("appends new product", func(t *testing.T) {
		s := newStore()

		snap, err := s.AddItem(product("lead", "12.50"), 2)
		require.NoError(t, err)

		require.Len(t, snap.Items, 1)
		assert.Equal(t, "lead", snap.Items[0].ProductID)
		assert.Equal(t, "SKU-lead", snap.Items[0].SKU)
		assert.Equal(t, 2, snap.Items[0].Quantity)
		assert.Equal(t, "25.00", money.String(snap.Items[0].LineTotal))
		assert.Equal(t, 2, snap.TotalItems)
		assert.Equal(t, "25.00", money.String(snap.TotalPrice))
	})

	t.Run("merges the same product into one line", func(t *testing.T) {
		s := newStore()

		_, err := s.AddItem(product("bowl", "3.00"), 2)
		require.NoError(t, err)
		snap, err := s.AddItem(product("bowl", "3.00"), 3)
		require.NoError(t, err)

		require.Len(t, snap.Items, 1)
		assert.Equal(t, 5, snap.Items[0].Quantity)
		assert.Equal(t, "15.00", money.String(snap.Items[0].LineTotal))
	})

	t.Run("keeps the price captured at first add", func(t *testing.T) {
		s := newStore()

		_, err := s.AddItem(product("toy", "4.00"), 1)
		require.NoError(t, err)
		snap, err := s.AddItem(product("toy", "9.00"), 1)
		require.NoError(t, err)

		assert.Equal(t, "4.00", money.String(snap.Items[0].UnitPrice))
		assert.Equal(t, "8.00", money.String(snap.Items[0].LineTotal))
	})

	t.Run("preserves insertion order", func(t *testing.T) {
		s := newStore()

		for _, id := range []string{"c", "a", "b"} {
			_, err := s.AddItem(product(id, "1.00"), 1)
			require.NoError(t, err)
		}
		_, err := s.AddItem(product("a", "1.00"), 1)
		require.NoError(t, err)

		snap := s.Snapshot()
		ids := []string{snap.Items[0].ProductID, snap.Items[1].ProductID, snap.Items[2].ProductID}
		assert.Equal(t, []string{"c", "a", "b"}, ids)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		s := newStore()

		_, err := s.AddItem(product("toy", "4.00"), 0)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.True(t, s.Snapshot().IsEmpty())
	})

	t.Run("rejects quantities that would overflow the line", func(t *testing.T) {
		s := newStore()

		_, err := s.AddItem(product("bed", "30.00"), math.MaxInt)
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		_, err = s.AddItem(product("bed", "30.00"), MaxLineQuantity)
		require.NoError(t, err)
		snap, err := s.AddItem(product("bed", "30.00"), 1)
		assert.ErrorIs(t, err, ErrQuantityTooLarge)

		require.Len(t, snap.Items, 1)
		assert.Equal(t, MaxLineQuantity, snap.Items[0].Quantity)
		assert.Equal(t, MaxLineQuantity, snap.TotalItems)
		assert.True(t, snap.Totals.Total.IsPositive())
	})

	t.Run("rejects missing product id", func(t *testing.T) {
		s := newStore()

		_, err := s.AddItem(product(" ", "4.00"), 1)
		assert.ErrorIs(t, err, ErrMissingProductID)
	})
}

func TestStore_SetQuantity(t *testing.T) {
	t.Run("updates quantity and line total", func(t *testing.T) {
		s := newStore()
		_, err := s.AddItem(product("bed", "30.00"), 1)
		require.NoError(t, err)

		snap, err := s.SetQuantity("bed", 3)
		require.NoError(t, err)

		assert.Equal(t, 3, snap.Items[0].Quantity)
		assert.Equal(t, "90.00", money.String(snap.Items[0].LineTotal))
		assert.Equal(t, 3, snap.TotalItems)
	})

	t.Run("zero behaves like remove", func(t *testing.T) {
		a, b := newStore(), newStore()
		for _, s := range []*Store{a, b} {
			_, err := s.AddItem(product("bed", "30.00"), 1)
			require.NoError(t, err)
			_, err = s.AddItem(product("mat", "5.00"), 2)
			require.NoError(t, err)
		}

		viaZero, err := a.SetQuantity("bed", 0)
		require.NoError(t, err)
		viaRemove := b.RemoveItem("bed")

		assert.Equal(t, viaRemove.Items, viaZero.Items)
		assert.Equal(t, viaRemove.TotalItems, viaZero.TotalItems)
	})

	t.Run("negative removes the line", func(t *testing.T) {
		s := newStore()
		_, err := s.AddItem(product("bed", "30.00"), 1)
		require.NoError(t, err)

		snap, err := s.SetQuantity("bed", -4)
		require.NoError(t, err)
		assert.True(t, snap.IsEmpty())
	})

	t.Run("rejects quantity above the line maximum", func(t *testing.T) {
		s := newStore()
		_, err := s.AddItem(product("bed", "30.00"), 2)
		require.NoError(t, err)

		snap, err := s.SetQuantity("bed", math.MaxInt)

		assert.ErrorIs(t, err, ErrQuantityTooLarge)
		assert.Equal(t, 2, snap.Items[0].Quantity)
	})

	t.Run("matches product ids the way AddItem stores them", func(t *testing.T) {
		s := newStore()
		_, err := s.AddItem(product(" bed ", "30.00"), 1)
		require.NoError(t, err)

		snap, err := s.SetQuantity(" bed", 4)
		require.NoError(t, err)
		assert.Equal(t, 4, snap.Items[0].Quantity)

		assert.True(t, s.RemoveItem("bed ").IsEmpty())
	})

	t.Run("unknown product is a no-op", func(t *testing.T) {
		s := newStore()
		_, err := s.AddItem(product("bed", "30.00"), 1)
		require.NoError(t, err)
		before := s.Snapshot()

		after, err := s.SetQuantity("ghost", 5)
		require.NoError(t, err)

		assert.Equal(t, before, after)
	})
}

func TestStore_RemoveItem(t *testing.T) {
	t.Run("absent id is a no-op", func(t *testing.T) {
		s := newStore()
		snap := s.RemoveItem("ghost")
		assert.True(t, snap.IsEmpty())
	})

	t.Run("removing the last line drops the coupon", func(t *testing.T) {
		s := newStore()
		_, err := s.AddItem(product("bed", "30.00"), 1)
		require.NoError(t, err)
		s.SetCoupon(domain.CouponApplication{Code: "SAVE", DiscountAmount: decimal.NewFromInt(5)})

		snap := s.RemoveItem("bed")

		assert.Nil(t, snap.AppliedCoupon)
	})

	t.Run("removing one of several lines keeps the coupon", func(t *testing.T) {
		s := newStore()
		_, err := s.AddItem(product("bed", "30.00"), 1)
		require.NoError(t, err)
		_, err = s.AddItem(product("mat", "5.00"), 1)
		require.NoError(t, err)
		s.SetCoupon(domain.CouponApplication{Code: "SAVE", DiscountAmount: decimal.NewFromInt(5)})

		snap := s.RemoveItem("mat")

		require.NotNil(t, snap.AppliedCoupon)
		assert.Equal(t, "SAVE", snap.AppliedCoupon.Code)
	})
}

func TestStore_Clear(t *testing.T) {
	s := newStore()
	_, err := s.AddItem(product("bed", "30.00"), 2)
	require.NoError(t, err)
	s.SetCoupon(domain.CouponApplication{Code: "SAVE", DiscountAmount: decimal.NewFromInt(5)})

	snap := s.Clear()

	assert.Empty(t, snap.Items)
	assert.Nil(t, snap.AppliedCoupon)
	assert.Equal(t, 0, snap.TotalItems)
	assert.Equal(t, "0.00", money.String(snap.TotalPrice))
}

func TestStore_ClearIfVersion(t *testing.T) {
	s := newStore()
	snap, err := s.AddItem(product("bed", "30.00"), 1)
	require.NoError(t, err)

	_, err = s.AddItem(product("mat", "5.00"), 1)
	require.NoError(t, err)

	_, cleared := s.ClearIfVersion(snap.Version)
	assert.False(t, cleared)
	assert.Len(t, s.Snapshot().Items, 2)

	_, cleared = s.ClearIfVersion(s.Snapshot().Version)
	assert.True(t, cleared)
	assert.True(t, s.Snapshot().IsEmpty())
}

func TestStore_SetCouponFor(t *testing.T) {
	s := newStore()
	snap, err := s.AddItem(product("bed", "30.00"), 1)
	require.NoError(t, err)
	app := domain.CouponApplication{Code: "SAVE", DiscountAmount: decimal.NewFromInt(5)}

	_, ok := s.SetCouponFor(app, decimal.NewFromInt(99))
	assert.False(t, ok)
	assert.Nil(t, s.Snapshot().AppliedCoupon)

	after, ok := s.SetCouponFor(app, snap.Totals.Subtotal)
	assert.True(t, ok)
	require.NotNil(t, after.AppliedCoupon)
	assert.Equal(t, "£5.00", money.Format(after.Totals.Discount))
}

func TestStore_SetCouponReplaces(t *testing.T) {
	s := newStore()
	_, err := s.AddItem(product("bed", "30.00"), 1)
	require.NoError(t, err)

	s.SetCoupon(domain.CouponApplication{Code: "FIRST", DiscountAmount: decimal.NewFromInt(5)})
	snap := s.SetCoupon(domain.CouponApplication{Code: "SECOND", DiscountAmount: decimal.NewFromInt(2)})

	require.NotNil(t, snap.AppliedCoupon)
	assert.Equal(t, "SECOND", snap.AppliedCoupon.Code)
	assert.Equal(t, "£2.00", money.Format(snap.Totals.Discount))

	assert.Nil(t, s.ClearCoupon().AppliedCoupon)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := newStore()
	snap, err := s.AddItem(product("bed", "30.00"), 1)
	require.NoError(t, err)

	snap.Items[0].Quantity = 99

	assert.Equal(t, 1, s.Snapshot().Items[0].Quantity)
}

func TestStore_TotalsMatchLinesForRandomMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	prices := []string{"0.99", "3.50", "12.49", "19.99", "250.00"}
	s := newStore()

	for step := 0; step < 500; step++ {
		id := fmt.Sprintf("p%d", rng.Intn(len(prices)))
		price := prices[rng.Intn(len(prices))]

		switch rng.Intn(3) {
		case 0:
			_, err := s.AddItem(product(id, price), 1+rng.Intn(4))
			require.NoError(t, err)
		case 1:
			_, err := s.SetQuantity(id, rng.Intn(6)-1)
			require.NoError(t, err)
		case 2:
			s.RemoveItem(id)
		}

		snap := s.Snapshot()
		want := decimal.Zero
		count := 0
		seen := map[string]bool{}
		for _, item := range snap.Items {
			require.False(t, seen[item.ProductID], "duplicate line for %s", item.ProductID)
			seen[item.ProductID] = true
			require.GreaterOrEqual(t, item.Quantity, 1)
			require.True(t, money.Times(item.UnitPrice, item.Quantity).Equal(item.LineTotal))
			want = want.Add(money.Times(item.UnitPrice, item.Quantity))
			count += item.Quantity
		}
		require.Equal(t, money.String(want), money.String(snap.TotalPrice), "step %d", step)
		require.Equal(t, count, snap.TotalItems, "step %d", step)
	}
}

func TestStore_ConcurrentMutationsStayConsistent(t *testing.T) {
	s := newStore()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = s.AddItem(product("shared", "2.00"), 1)
				snap := s.Snapshot()
				want := money.Times(decimal.RequireFromString("2.00"), snap.TotalItems)
				if !want.Equal(snap.TotalPrice) {
					t.Errorf("totals disagree with items: %s vs %s", want, snap.TotalPrice)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, s.Snapshot().TotalItems)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/pos"
)

func sampleCart(t *testing.T) *pos.Cart {
	t.Helper()
	cart := pos.NewCart("cart-1")
	cart.Cashier = "cashier"
	product := domain.Product{
		ID:            "prd-layers-mash",
		Name:          "Layers Mash",
		UnitType:      domain.UnitTypeBag,
		Price:         decimal.NewFromInt(3400),
		CostPrice:     decimal.NewFromInt(2900),
		WeightPerBag:  decimal.NewNullDecimal(decimal.NewFromInt(70)),
		StockQuantity: decimal.NewFromInt(1400),
		Active:        true,
	}
	require.NoError(t, cart.AddOrMergeLine(product, domain.SaleUnitKg, decimal.NewFromInt(3)))
	return cart
}

func TestRedisCartStoreRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	store := NewRedisCartStore(srv.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	cart := sampleCart(t)
	require.NoError(t, store.Save(ctx, cart, time.Hour))
	assert.True(t, srv.Exists(cartKeyPrefix+cart.ID))

	loaded, err := store.Get(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
	assert.True(t, loaded.Lines[0].EffectiveUnitPrice.Equal(cart.Lines[0].EffectiveUnitPrice))
	assert.True(t, loaded.Total.Equal(cart.Total))
	assert.Equal(t, pos.StateBuilding, loaded.State())

	require.NoError(t, store.Delete(ctx, cart.ID))
	_, err = store.Get(ctx, cart.ID)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestRedisCartStoreExpires(t *testing.T) {
	srv := miniredis.RunT(t)
	store := NewRedisCartStore(srv.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	cart := sampleCart(t)
	require.NoError(t, store.Save(ctx, cart, time.Minute))
	srv.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, cart.ID)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestMemoryCartStoreExpiresAndIsolates(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryCartStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	cart := sampleCart(t)
	require.NoError(t, store.Save(ctx, cart, time.Hour))

	loaded, err := store.Get(ctx, cart.ID)
	require.NoError(t, err)
	loaded.Lines[0].Quantity = decimal.NewFromInt(99)

	again, err := store.Get(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, again.Lines[0].Quantity.Equal(decimal.NewFromInt(3)))

	now = now.Add(2 * time.Hour)
	_, err = store.Get(ctx, cart.ID)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

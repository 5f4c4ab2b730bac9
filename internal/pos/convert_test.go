package pos

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpos/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bagProduct(price, weight, stock string) domain.Product {
	p := domain.Product{
		ID:            "prd-layers",
		Name:          "Layers Mash 50kg",
		UnitType:      domain.UnitTypeBag,
		Price:         dec(price),
		CostPrice:     dec(price).Mul(dec("0.8")),
		StockQuantity: dec(stock),
		Active:        true,
	}
	if weight != "" {
		p.WeightPerBag = decimal.NewNullDecimal(dec(weight))
	}
	return p
}

func looseProduct(price, weight, stock string) domain.Product {
	p := bagProduct(price, weight, stock)
	p.ID = "prd-maize-bran"
	p.Name = "Maize Bran"
	p.UnitType = domain.UnitTypeLoose
	return p
}

func TestResolveUnitPriceRuleTable(t *testing.T) {
	tests := []struct {
		name    string
		product domain.Product
		unit    domain.SaleUnit
		want    string
	}{
		{"bag by bag", bagProduct("100", "50", "200"), domain.SaleUnitBag, "100"},
		{"bag by kg", bagProduct("100", "50", "200"), domain.SaleUnitKg, "2"},
		{"bag by kg 70kg bag", bagProduct("3500", "70", "700"), domain.SaleUnitKg, "50"},
		{"loose by kg", looseProduct("45", "", "500"), domain.SaleUnitKg, "45"},
		{"loose by bag default weight", looseProduct("45", "", "500"), domain.SaleUnitBag, "2250"},
		{"loose by bag recorded weight", looseProduct("45", "25", "500"), domain.SaleUnitBag, "1125"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveUnitPrice(tc.product, tc.unit)
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestResolveUnitPriceBagToKgNeedsWeight(t *testing.T) {
	for _, weight := range []string{"", "0"} {
		p := bagProduct("100", weight, "200")
		_, err := ResolveUnitPrice(p, domain.SaleUnitKg)
		require.ErrorIs(t, err, ErrConversionUnavailable)
	}

	// Selling the whole bag still works without a weight.
	price, err := ResolveUnitPrice(bagProduct("100", "", "200"), domain.SaleUnitBag)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("100")))
}

func TestResolveUnitPriceRejectsUnknownUnit(t *testing.T) {
	_, err := ResolveUnitPrice(bagProduct("100", "50", "200"), domain.SaleUnit("tonne"))
	require.ErrorIs(t, err, ErrInvalidUnit)

	p := bagProduct("100", "50", "200")
	p.UnitType = "crate"
	_, err = ResolveUnitPrice(p, domain.SaleUnitBag)
	require.ErrorIs(t, err, ErrConversionUnavailable)
}

func TestPerKgPriceReconstitutesBagPrice(t *testing.T) {
	for _, tc := range []struct{ price, weight string }{
		{"100", "50"},
		{"3299.99", "70"},
		{"1850", "35"},
		{"2400.50", "90"},
		{"1000", "3"},
	} {
		p := bagProduct(tc.price, tc.weight, "1000")
		perKg, err := ResolveUnitPrice(p, domain.SaleUnitKg)
		require.NoError(t, err)
		back := perKg.Mul(dec(tc.weight))
		assert.True(t, back.Round(2).Equal(dec(tc.price)), "%s/kg x %s = %s", perKg, tc.weight, back)
	}
}

func TestResolveUnitCostFollowsPriceRule(t *testing.T) {
	p := bagProduct("100", "50", "200")
	p.CostPrice = dec("80")

	cost, err := ResolveUnitCost(p, domain.SaleUnitKg)
	require.NoError(t, err)
	assert.True(t, cost.Equal(dec("1.6")))

	cost, err = ResolveUnitCost(p, domain.SaleUnitBag)
	require.NoError(t, err)
	assert.True(t, cost.Equal(dec("80")))
}

func TestResolveStockConsumption(t *testing.T) {
	withWeight := bagProduct("100", "70", "1000")
	noWeight := looseProduct("45", "", "1000")

	for _, n := range []string{"1", "2", "0.5", "13"} {
		got, err := ResolveStockConsumption(withWeight, domain.SaleUnitBag, dec(n))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec(n).Mul(dec("70"))))

		got, err = ResolveStockConsumption(noWeight, domain.SaleUnitBag, dec(n))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec(n).Mul(dec("50"))))

		got, err = ResolveStockConsumption(withWeight, domain.SaleUnitKg, dec(n))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec(n)))
	}

	_, err := ResolveStockConsumption(withWeight, "sack", dec("1"))
	require.ErrorIs(t, err, ErrInvalidUnit)
}

func TestCheckStockCarriesFigures(t *testing.T) {
	p := bagProduct("100", "50", "200")
	require.NoError(t, CheckStock(p, dec("200")))

	err := CheckStock(p, dec("250"))
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.True(t, stockErr.RequestedKg.Equal(dec("250")))
	assert.True(t, stockErr.AvailableKg.Equal(dec("200")))
	assert.Equal(t, "prd-layers", stockErr.ProductID)
}

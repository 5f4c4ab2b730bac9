// Package pos is the checkout calculation core: unit conversion between bags
// and kilograms, the cart, and sale settlement. It is synchronous and does
// no I/O; callers hand it product snapshots and persist what it returns.
package pos

import (
	"fmt"

	"github.com/shopspring/decimal"

	"feedpos/backend/internal/domain"
)

// ResolveUnitPrice returns the price of one requested unit of the product.
// The result is not rounded.
func ResolveUnitPrice(p domain.Product, unit domain.SaleUnit) (decimal.Decimal, error) {
	return perUnit(p, p.Price, unit)
}

// ResolveUnitCost applies the price rule to the product's cost price so the
// cost basis is expressed in the same unit as the sale.
func ResolveUnitCost(p domain.Product, unit domain.SaleUnit) (decimal.Decimal, error) {
	return perUnit(p, p.CostPrice, unit)
}

func perUnit(p domain.Product, amount decimal.Decimal, unit domain.SaleUnit) (decimal.Decimal, error) {
	switch p.UnitType {
	case domain.UnitTypeBag:
		switch unit {
		case domain.SaleUnitBag:
			return amount, nil
		case domain.SaleUnitKg:
			weight, ok := recordedBagWeight(p)
			if !ok {
				return decimal.Zero, fmt.Errorf("%w: %s has no bag weight for per-kg pricing", ErrConversionUnavailable, displayName(p))
			}
			return amount.Div(weight), nil
		}
	case domain.UnitTypeLoose:
		switch unit {
		case domain.SaleUnitKg:
			return amount, nil
		case domain.SaleUnitBag:
			return amount.Mul(BagWeight(p)), nil
		}
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown unit type %q", ErrConversionUnavailable, p.UnitType)
	}
	return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
}

// ResolveStockConsumption returns the kilograms of stock a purchase of
// quantity units consumes.
func ResolveStockConsumption(p domain.Product, unit domain.SaleUnit, quantity decimal.Decimal) (decimal.Decimal, error) {
	switch unit {
	case domain.SaleUnitBag:
		return quantity.Mul(BagWeight(p)), nil
	case domain.SaleUnitKg:
		return quantity, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
}

// CheckStock rejects a consumption above the product's available kilograms.
func CheckStock(p domain.Product, consumptionKg decimal.Decimal) error {
	if consumptionKg.GreaterThan(p.StockQuantity) {
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: displayName(p),
			RequestedKg: consumptionKg,
			AvailableKg: p.StockQuantity,
		}
	}
	return nil
}

// BagWeight is the kilograms in one bag, falling back to the default bag
// weight when none is recorded.
func BagWeight(p domain.Product) decimal.Decimal {
	if weight, ok := recordedBagWeight(p); ok {
		return weight
	}
	return domain.DefaultBagWeightKg
}

func recordedBagWeight(p domain.Product) (decimal.Decimal, bool) {
	if !p.WeightPerBag.Valid || !p.WeightPerBag.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return p.WeightPerBag.Decimal, true
}

func displayName(p domain.Product) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/store"
)

func saleFor(key string, productID string, kg string) domain.Sale {
	return domain.Sale{
		IdempotencyKey:  key,
		CashierUsername: "cashier",
		PaymentMethod:   domain.PaymentCash,
		Subtotal:        dec("100"),
		DiscountTotal:   decimal.Zero,
		Total:           dec("100"),
		AmountPaid:      dec("100"),
		Change:          decimal.Zero,
		Items: []domain.SaleLineItem{{
			ProductID:       productID,
			ProductName:     "seeded",
			Quantity:        dec(kg),
			Unit:            domain.SaleUnitKg,
			PriceAtSale:     dec("1"),
			CostPriceAtSale: dec("0.5"),
			DiscountAmount:  decimal.Zero,
			StockConsumedKg: dec(kg),
		}},
	}
}

func TestCreateSaleDecrementsStockOnce(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	sale, err := s.CreateSale(ctx, saleFor("idem-1", "prd-maize-bran", "100"))
	require.NoError(t, err)
	require.NotEmpty(t, sale.ID)

	replay, err := s.CreateSale(ctx, saleFor("idem-1", "prd-maize-bran", "100"))
	require.NoError(t, err)
	assert.Equal(t, sale.ID, replay.ID)

	product, err := s.GetProduct(ctx, "prd-maize-bran")
	require.NoError(t, err)
	assert.True(t, product.StockQuantity.Equal(dec("800")), "stock %s", product.StockQuantity)

	movements, err := s.ListStockMovements(ctx, domain.StockMovementFilter{ProductID: "prd-maize-bran"})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.StockMovementSale, movements[0].Type)
	assert.True(t, movements[0].QuantityKg.Equal(dec("-100")))
	assert.Equal(t, sale.ID, movements[0].Reference)

	income, err := s.ListLedgerEntries(ctx, domain.LedgerFilter{Type: domain.LedgerIncome})
	require.NoError(t, err)
	require.Len(t, income, 1)
	assert.True(t, income[0].Amount.Equal(dec("100")))
}

func TestCreateSaleRechecksCombinedStock(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	sale := saleFor("idem-2", "prd-fish-meal", "60")
	sale.Items = append(sale.Items, sale.Items[0])
	_, err := s.CreateSale(ctx, sale)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	product, err := s.GetProduct(ctx, "prd-fish-meal")
	require.NoError(t, err)
	assert.True(t, product.StockQuantity.Equal(dec("80")))

	_, err = s.CreateSale(ctx, saleFor("", "prd-fish-meal", "1"))
	require.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = s.CreateSale(ctx, saleFor("idem-3", "prd-missing", "1"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListProductsFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	page, err := s.ListProducts(ctx, domain.ProductFilter{Category: "poultry"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	page, err = s.ListProducts(ctx, domain.ProductFilter{Search: "bran"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "prd-maize-bran", page.Products[0].ID)

	page, err = s.ListProducts(ctx, domain.ProductFilter{UnitType: domain.UnitTypeLoose, PerPage: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Products, 1)

	page, err = s.ListProducts(ctx, domain.ProductFilter{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "prd-pig-finisher", page.Products[0].ID)
}

func TestReceiveAndAdjustStock(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	movement, err := s.ReceiveStock(ctx, store.Receipt{
		ProductID:  "prd-dairy-meal",
		SupplierID: "sup-sigma",
		QuantityKg: dec("140"),
		TotalCost:  dec("5000"),
		Actor:      "admin",
	})
	require.NoError(t, err)
	assert.True(t, movement.BalanceKg.Equal(dec("840")))

	expenses, err := s.ListLedgerEntries(ctx, domain.LedgerFilter{Type: domain.LedgerExpense})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.True(t, expenses[0].Amount.Equal(dec("5000")))

	_, err = s.ReceiveStock(ctx, store.Receipt{ProductID: "prd-dairy-meal", SupplierID: "sup-nope", QuantityKg: dec("1")})
	require.ErrorIs(t, err, store.ErrNotFound)

	movement, err = s.AdjustStock(ctx, store.Adjustment{ProductID: "prd-dairy-meal", CountedKg: dec("835.5"), Reason: "weekly count"})
	require.NoError(t, err)
	assert.True(t, movement.QuantityKg.Equal(dec("-4.5")))
	assert.True(t, movement.BalanceKg.Equal(dec("835.5")))

	_, err = s.AdjustStock(ctx, store.Adjustment{ProductID: "prd-dairy-meal", CountedKg: dec("1")})
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestUpdateProductKeepsStock(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	product, err := s.GetProduct(ctx, "prd-chick-mash")
	require.NoError(t, err)
	product.Price = dec("3700")
	product.StockQuantity = dec("99999")

	updated, err := s.UpdateProduct(ctx, *product)
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(dec("3700")))
	assert.True(t, updated.StockQuantity.Equal(dec("500")))
}

func TestClosureLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetOpenClosure(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	opened, err := s.OpenClosure(ctx, domain.DailyClosure{BusinessDate: "2026-04-01", OpenedBy: "cashier", OpeningFloat: dec("1000")})
	require.NoError(t, err)
	assert.Equal(t, domain.ClosureStatusOpen, opened.Status)

	_, err = s.OpenClosure(ctx, domain.DailyClosure{BusinessDate: "2026-04-02", OpeningFloat: dec("0")})
	require.ErrorIs(t, err, store.ErrConflict)

	counted := dec("1500")
	opened.CountedCash = &counted
	closedAt := time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)
	opened.ClosedAt = &closedAt
	closed, err := s.CloseClosure(ctx, *opened)
	require.NoError(t, err)
	assert.Equal(t, domain.ClosureStatusClosed, closed.Status)

	_, err = s.OpenClosure(ctx, domain.DailyClosure{BusinessDate: "2026-04-01", OpeningFloat: dec("0")})
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = s.OpenClosure(ctx, domain.DailyClosure{BusinessDate: "2026-04-02", OpeningFloat: dec("0")})
	require.NoError(t, err)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateUser(ctx, domain.UserAccount{Username: " Mary ", Password: "hash"}))
	require.ErrorIs(t, s.CreateUser(ctx, domain.UserAccount{Username: "mary", Password: "hash"}), store.ErrConflict)
	require.NoError(t, s.SetUserActive(ctx, "MARY", false))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "mary", users[0].Username)
	assert.Equal(t, domain.RoleCashier, users[0].Role)
	assert.False(t, users[0].Active)

	require.ErrorIs(t, s.UpdateUserPassword(ctx, "ghost", "x"), store.ErrNotFound)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/store"
)

func TestCreateSaleDecrementsKilogramStock(t *testing.T) {
	databaseURL := os.Getenv("FEEDPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set FEEDPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	if err := Migrate(databaseURL); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-it-%d", stamp)
	idempotencyKey := fmt.Sprintf("idem-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE reference IN (SELECT id FROM sales WHERE idempotency_key = $1)`, idempotencyKey)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE idempotency_key = $1`, idempotencyKey)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	_, err = s.CreateProduct(ctx, domain.Product{
		ID:            productID,
		Name:          "Layers Mash IT",
		Category:      "poultry",
		UnitType:      domain.UnitTypeBag,
		Price:         decimal.NewFromInt(3400),
		CostPrice:     decimal.NewFromInt(2900),
		WeightPerBag:  decimal.NewNullDecimal(decimal.NewFromInt(70)),
		StockQuantity: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	sale := domain.Sale{
		IdempotencyKey:  idempotencyKey,
		CashierUsername: "cashier",
		PaymentMethod:   domain.PaymentCash,
		PaymentLabel:    domain.PaymentCash.Label(),
		Subtotal:        decimal.NewFromInt(1360),
		DiscountTotal:   decimal.Zero,
		Total:           decimal.NewFromInt(1360),
		AmountPaid:      decimal.NewFromInt(1500),
		Change:          decimal.NewFromInt(140),
		Items: []domain.SaleLineItem{{
			ProductID:       productID,
			ProductName:     "Layers Mash IT",
			Quantity:        decimal.NewFromInt(28),
			Unit:            domain.SaleUnitKg,
			PriceAtSale:     decimal.RequireFromString("48.57142857142857"),
			CostPriceAtSale: decimal.RequireFromString("41.42857142857143"),
			DiscountAmount:  decimal.Zero,
			StockConsumedKg: decimal.NewFromInt(28),
		}},
	}

	created, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if len(created.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(created.Items))
	}

	replay, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("replay sale: %v", err)
	}
	if replay.ID != created.ID {
		t.Fatalf("expected idempotent replay to return %s, got %s", created.ID, replay.ID)
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !product.StockQuantity.Equal(decimal.NewFromInt(72)) {
		t.Fatalf("expected 72 kg remaining, got %s", product.StockQuantity)
	}

	loaded, err := s.FindSaleByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("find sale: %v", err)
	}
	if !loaded.Items[0].PriceAtSale.Equal(sale.Items[0].PriceAtSale) {
		t.Fatalf("price at sale changed on round trip: %s", loaded.Items[0].PriceAtSale)
	}

	sale.IdempotencyKey = idempotencyKey + "-over"
	sale.Items[0].StockConsumedKg = decimal.NewFromInt(500)
	_, err = s.CreateSale(ctx, sale)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

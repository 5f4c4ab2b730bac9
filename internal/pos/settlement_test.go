package pos

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpos/backend/internal/domain"
)

// cartWithTotal builds a one-line cart whose total is exactly amount.
func cartWithTotal(t *testing.T, amount string) *Cart {
	t.Helper()
	p := looseProduct("1", "", "100000")
	c := NewCart("cart-settle")
	require.NoError(t, c.AddOrMergeLine(p, domain.SaleUnitKg, dec(amount)))
	require.True(t, c.Total.Equal(dec(amount)))
	return c
}

func TestComputeChangeCash(t *testing.T) {
	out, err := ComputeChange(dec("150"), domain.PaymentCash, dec("200"))
	require.NoError(t, err)
	assert.True(t, out.Change.Equal(dec("50")))
	assert.True(t, out.AmountPaid.Equal(dec("200")))

	out, err = ComputeChange(dec("150"), domain.PaymentCash, dec("150"))
	require.NoError(t, err)
	assert.True(t, out.Change.IsZero())

	_, err = ComputeChange(dec("150"), domain.PaymentCash, dec("100"))
	var payErr *InsufficientPaymentError
	require.True(t, errors.As(err, &payErr))
	assert.True(t, payErr.Deficit().Equal(dec("50")))
	require.ErrorIs(t, err, ErrInsufficientPayment)
}

func TestComputeChangeNeverNegative(t *testing.T) {
	totals := []string{"0", "0.01", "99.99", "150", "3299.99"}
	tendered := []string{"0", "0.01", "50", "100", "150", "3300", "10000"}
	for _, total := range totals {
		for _, cash := range tendered {
			out, err := ComputeChange(dec(total), domain.PaymentCash, dec(cash))
			if dec(cash).LessThan(dec(total)) {
				require.ErrorIs(t, err, ErrInsufficientPayment)
				continue
			}
			require.NoError(t, err)
			assert.False(t, out.Change.IsNegative(), "total %s tendered %s", total, cash)
		}
	}
}

func TestComputeChangeNonCash(t *testing.T) {
	for _, method := range []domain.PaymentMethod{domain.PaymentMobileMoney, domain.PaymentBankTransfer, domain.PaymentCard} {
		out, err := ComputeChange(dec("150"), method, decimal.Zero)
		require.NoError(t, err)
		assert.True(t, out.AmountPaid.Equal(dec("150")))
		assert.True(t, out.Change.IsZero())
	}

	_, err := ComputeChange(dec("150"), "cheque", dec("150"))
	require.ErrorIs(t, err, ErrUnsupportedPaymentMethod)
}

func TestSettleScenarioCash(t *testing.T) {
	c := cartWithTotal(t, "150")

	_, err := Settle(c, PaymentDetails{Method: domain.PaymentCash, Tendered: dec("100")}, domain.Customer{})
	require.ErrorIs(t, err, ErrInsufficientPayment)
	assert.Equal(t, StateBuilding, c.State())
	require.Len(t, c.Lines, 1)

	sale, err := Settle(c, PaymentDetails{Method: domain.PaymentCash, Tendered: dec("200")}, domain.Customer{Name: " Wanjiru "})
	require.NoError(t, err)
	assert.True(t, sale.Change.Equal(dec("50")))
	assert.True(t, sale.AmountPaid.Equal(dec("200")))
	assert.True(t, sale.Total.Equal(dec("150")))
	assert.Equal(t, "Cash", sale.PaymentLabel)
	assert.Equal(t, "Wanjiru", sale.Customer.Name)
	assert.Equal(t, StateSettled, c.State())

	_, err = Settle(c, PaymentDetails{Method: domain.PaymentCash, Tendered: dec("200")}, domain.Customer{})
	require.ErrorIs(t, err, ErrCartClosed)
}

func TestSettleEmptyCart(t *testing.T) {
	_, err := Settle(NewCart("empty"), PaymentDetails{Method: domain.PaymentCash, Tendered: dec("10")}, domain.Customer{})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestSettleBuildsPayload(t *testing.T) {
	now := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	p := bagProduct("100", "50", "200")
	p.CostPrice = dec("80")
	c := fixedCart(now)
	c.Cashier = "kasir"

	require.NoError(t, c.AddOrMergeLine(p, domain.SaleUnitBag, dec("2")))
	require.NoError(t, c.AddOrMergeLine(p, domain.SaleUnitKg, dec("5")))
	require.NoError(t, c.SetLineDiscount(p.ID, domain.SaleUnitBag, dec("20")))
	require.NoError(t, c.SetOrderDiscount(dec("10")))

	sale, err := Settle(c, PaymentDetails{Method: domain.PaymentMobileMoney, Reference: " QK71XY "}, domain.Customer{})
	require.NoError(t, err)

	assert.True(t, sale.Subtotal.Equal(dec("190")), "subtotal %s", sale.Subtotal)
	assert.True(t, sale.DiscountTotal.Equal(dec("30")))
	assert.True(t, sale.Total.Equal(dec("180")))
	assert.True(t, sale.AmountPaid.Equal(dec("180")))
	assert.True(t, sale.Change.IsZero())
	assert.Equal(t, "QK71XY", sale.PaymentReference)
	assert.Equal(t, "Mobile Money", sale.PaymentLabel)
	assert.Equal(t, "kasir", sale.CashierUsername)
	assert.Equal(t, now, sale.CreatedAt)

	require.Len(t, sale.Items, 2)
	bagLine, kgLine := sale.Items[0], sale.Items[1]
	assert.True(t, bagLine.PriceAtSale.Equal(dec("100")))
	assert.True(t, bagLine.CostPriceAtSale.Equal(dec("80")))
	assert.True(t, bagLine.DiscountAmount.Equal(dec("20")))
	assert.True(t, bagLine.StockConsumedKg.Equal(dec("100")))
	assert.True(t, kgLine.PriceAtSale.Equal(dec("2")))
	assert.True(t, kgLine.CostPriceAtSale.Equal(dec("1.6")))
	assert.True(t, kgLine.StockConsumedKg.Equal(dec("5")))

	// (100-80)*2-20 + (2-1.6)*5 - 10
	assert.True(t, LineProfit(bagLine).Equal(dec("20")))
	assert.True(t, LineProfit(kgLine).Equal(dec("2")))
	assert.True(t, SaleProfit(sale).Equal(dec("12")))
}

func TestSettleDiscountTotalCapsOrderDiscount(t *testing.T) {
	c := cartWithTotal(t, "40")
	require.NoError(t, c.SetOrderDiscount(dec("100")))

	sale, err := Settle(c, PaymentDetails{Method: domain.PaymentCash, Tendered: decimal.Zero}, domain.Customer{})
	require.NoError(t, err)
	assert.True(t, sale.Total.IsZero())
	assert.True(t, sale.DiscountTotal.Equal(dec("40")))
	assert.True(t, sale.Change.IsZero())
}

func TestComputeChangeRejectsOverlyPreciseTender(t *testing.T) {
	_, err := ComputeChange(dec("150"), domain.PaymentCash, dec("150.001"))
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ComputeChange(dec("150"), domain.PaymentCash, dec("1e20000000"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

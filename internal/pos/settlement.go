package pos

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/money"
)

// PaymentDetails is what the cashier collected.
type PaymentDetails struct {
	Method    domain.PaymentMethod
	Tendered  decimal.Decimal
	Reference string
}

// PaymentOutcome is the recorded amount paid and the change owed.
type PaymentOutcome struct {
	AmountPaid decimal.Decimal
	Change     decimal.Decimal
}

// ComputeChange records what was paid against total. Cash must cover the
// total; every other method is recorded as paying exactly the total
// whatever was tendered.
func ComputeChange(total decimal.Decimal, method domain.PaymentMethod, tendered decimal.Decimal) (PaymentOutcome, error) {
	if !method.Valid() {
		return PaymentOutcome{}, fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, method)
	}
	if err := money.CheckAmount(tendered); err != nil {
		return PaymentOutcome{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if method != domain.PaymentCash {
		return PaymentOutcome{AmountPaid: total, Change: decimal.Zero}, nil
	}
	if tendered.LessThan(total) {
		return PaymentOutcome{}, &InsufficientPaymentError{Total: total, Tendered: tendered}
	}
	return PaymentOutcome{AmountPaid: tendered, Change: tendered.Sub(total)}, nil
}

// BuildSaleLineItems converts each cart line into a sale line item with the
// cost price expressed in the line's sale unit.
func BuildSaleLineItems(c *Cart) ([]domain.SaleLineItem, error) {
	items := make([]domain.SaleLineItem, 0, len(c.Lines))
	for _, line := range c.Lines {
		product := line.snapshot()
		cost, err := ResolveUnitCost(product, line.Unit)
		if err != nil {
			return nil, err
		}
		consumed, err := ResolveStockConsumption(product, line.Unit, line.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.SaleLineItem{
			ProductID:       line.ProductID,
			ProductName:     line.ProductName,
			Quantity:        line.Quantity,
			Unit:            line.Unit,
			PriceAtSale:     line.EffectiveUnitPrice,
			CostPriceAtSale: cost,
			DiscountAmount:  line.Discount,
			StockConsumedKg: consumed,
		})
	}
	return items, nil
}

// Settle validates the payment, builds the sale payload and closes the
// cart. On any error the cart is left untouched.
func Settle(c *Cart, payment PaymentDetails, customer domain.Customer) (domain.Sale, error) {
	if err := c.ensureOpen(); err != nil {
		return domain.Sale{}, err
	}
	if len(c.Lines) == 0 {
		return domain.Sale{}, ErrEmptyCart
	}
	outcome, err := ComputeChange(c.Total, payment.Method, payment.Tendered)
	if err != nil {
		return domain.Sale{}, err
	}
	items, err := BuildSaleLineItems(c)
	if err != nil {
		return domain.Sale{}, err
	}

	sale := domain.Sale{
		CashierUsername:  c.Cashier,
		Customer:         trimCustomer(customer),
		PaymentMethod:    payment.Method,
		PaymentLabel:     payment.Method.Label(),
		PaymentReference: strings.TrimSpace(payment.Reference),
		Subtotal:         c.Subtotal,
		DiscountTotal:    c.LineDiscountTotal().Add(decimal.Min(c.OrderDiscount, c.Subtotal)),
		Total:            c.Total,
		AmountPaid:       outcome.AmountPaid,
		Change:           outcome.Change,
		Items:            items,
		CreatedAt:        c.now(),
	}
	c.Status = CartSettled
	c.clear()
	return sale, nil
}

// LineProfit is revenue less cost for one settled line.
func LineProfit(item domain.SaleLineItem) decimal.Decimal {
	return item.PriceAtSale.Sub(item.CostPriceAtSale).Mul(item.Quantity).Sub(item.DiscountAmount)
}

// SaleProfit sums line profits and removes the order-level discount.
func SaleProfit(sale domain.Sale) decimal.Decimal {
	profit := decimal.Zero
	lineDiscounts := decimal.Zero
	for _, item := range sale.Items {
		profit = profit.Add(LineProfit(item))
		lineDiscounts = lineDiscounts.Add(item.DiscountAmount)
	}
	orderDiscount := sale.DiscountTotal.Sub(lineDiscounts)
	if orderDiscount.IsPositive() {
		profit = profit.Sub(orderDiscount)
	}
	return profit
}

func trimCustomer(c domain.Customer) domain.Customer {
	return domain.Customer{
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
	}
}

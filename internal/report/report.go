// Package report reduces settled sales into the figures shown on the admin
// dashboard and the daily cash closure.
package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/pos"
)

const DefaultTopProducts = 5

var hundred = decimal.NewFromInt(100)

type PaymentBreakdown struct {
	Method domain.PaymentMethod `json:"method"`
	Label  string               `json:"label"`
	Sales  int64                `json:"sales"`
	Total  decimal.Decimal      `json:"total"`
}

type ProductSales struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Revenue     decimal.Decimal `json:"revenue"`
	Profit      decimal.Decimal `json:"profit"`
	KgSold      decimal.Decimal `json:"kg_sold"`
}

// Summary aggregates a window of sales. GrossRevenue is before any
// discount; NetRevenue is what customers were charged.
type Summary struct {
	From          time.Time          `json:"from"`
	To            time.Time          `json:"to"`
	Sales         int64              `json:"sales"`
	GrossRevenue  decimal.Decimal    `json:"gross_revenue"`
	Discounts     decimal.Decimal    `json:"discounts"`
	NetRevenue    decimal.Decimal    `json:"net_revenue"`
	CostOfGoods   decimal.Decimal    `json:"cost_of_goods"`
	GrossProfit   decimal.Decimal    `json:"gross_profit"`
	MarginPercent decimal.Decimal    `json:"margin_percent"`
	AverageSale   decimal.Decimal    `json:"average_sale"`
	KgSold        decimal.Decimal    `json:"kg_sold"`
	ByPayment     []PaymentBreakdown `json:"by_payment"`
	TopProducts   []ProductSales     `json:"top_products"`
}

// Summarize reduces sales into a Summary. topN bounds TopProducts; values
// below one use DefaultTopProducts.
func Summarize(sales []domain.Sale, topN int) Summary {
	if topN < 1 {
		topN = DefaultTopProducts
	}
	summary := Summary{
		GrossRevenue: decimal.Zero,
		Discounts:    decimal.Zero,
		NetRevenue:   decimal.Zero,
		CostOfGoods:  decimal.Zero,
		GrossProfit:  decimal.Zero,
		KgSold:       decimal.Zero,
		ByPayment:    make([]PaymentBreakdown, 0, 4),
		TopProducts:  make([]ProductSales, 0, topN),
	}
	byPayment := map[domain.PaymentMethod]*PaymentBreakdown{}
	byProduct := map[string]*ProductSales{}

	for _, sale := range sales {
		summary.Sales++
		summary.Discounts = summary.Discounts.Add(sale.DiscountTotal)
		summary.NetRevenue = summary.NetRevenue.Add(sale.Total)
		summary.GrossProfit = summary.GrossProfit.Add(pos.SaleProfit(sale))

		for _, item := range sale.Items {
			gross := item.PriceAtSale.Mul(item.Quantity)
			summary.GrossRevenue = summary.GrossRevenue.Add(gross)
			summary.CostOfGoods = summary.CostOfGoods.Add(item.CostPriceAtSale.Mul(item.Quantity))
			summary.KgSold = summary.KgSold.Add(item.StockConsumedKg)

			product := byProduct[item.ProductID]
			if product == nil {
				product = &ProductSales{
					ProductID:   item.ProductID,
					ProductName: item.ProductName,
					Revenue:     decimal.Zero,
					Profit:      decimal.Zero,
					KgSold:      decimal.Zero,
				}
				byProduct[item.ProductID] = product
			}
			product.Revenue = product.Revenue.Add(gross.Sub(item.DiscountAmount))
			product.Profit = product.Profit.Add(pos.LineProfit(item))
			product.KgSold = product.KgSold.Add(item.StockConsumedKg)
		}

		payment := byPayment[sale.PaymentMethod]
		if payment == nil {
			payment = &PaymentBreakdown{
				Method: sale.PaymentMethod,
				Label:  sale.PaymentMethod.Label(),
				Total:  decimal.Zero,
			}
			byPayment[sale.PaymentMethod] = payment
		}
		payment.Sales++
		payment.Total = payment.Total.Add(sale.Total)
	}

	if summary.NetRevenue.IsPositive() {
		summary.MarginPercent = summary.GrossProfit.Div(summary.NetRevenue).Mul(hundred).Round(2)
	}
	if summary.Sales > 0 {
		summary.AverageSale = summary.NetRevenue.Div(decimal.NewFromInt(summary.Sales)).Round(2)
	}

	for _, entry := range byPayment {
		summary.ByPayment = append(summary.ByPayment, *entry)
	}
	slices.SortFunc(summary.ByPayment, func(a, b PaymentBreakdown) int {
		return cmp.Compare(a.Method, b.Method)
	})

	products := make([]ProductSales, 0, len(byProduct))
	for _, entry := range byProduct {
		products = append(products, *entry)
	}
	slices.SortFunc(products, func(a, b ProductSales) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(products) > topN {
		products = products[:topN]
	}
	summary.TopProducts = append(summary.TopProducts, products...)
	return summary
}

// CashTotals splits the charged totals into cash and everything else. Cash
// change is already netted out of Total.
func CashTotals(sales []domain.Sale) (cash decimal.Decimal, nonCash decimal.Decimal) {
	cash, nonCash = decimal.Zero, decimal.Zero
	for _, sale := range sales {
		if sale.PaymentMethod == domain.PaymentCash {
			cash = cash.Add(sale.Total)
			continue
		}
		nonCash = nonCash.Add(sale.Total)
	}
	return cash, nonCash
}

// Variance is counted minus expected. A missing count is zero.
func Variance(expected decimal.Decimal, counted *decimal.Decimal) decimal.Decimal {
	actual := decimal.Zero
	if counted != nil {
		actual = *counted
	}
	return actual.Sub(expected)
}

type Closing struct {
	ExpectedCash decimal.Decimal
	CountedCash  decimal.Decimal
	Variance     decimal.Decimal
}

// CloseDay derives the expected drawer from the opening float and cash
// sales and compares it with the count.
func CloseDay(openingFloat decimal.Decimal, cashSales decimal.Decimal, counted *decimal.Decimal) Closing {
	expected := openingFloat.Add(cashSales)
	closing := Closing{
		ExpectedCash: expected,
		CountedCash:  decimal.Zero,
		Variance:     Variance(expected, counted),
	}
	if counted != nil {
		closing.CountedCash = *counted
	}
	return closing
}

// LowStock returns active products at or below their reorder level,
// lowest stock first.
func LowStock(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.Active && p.LowStock() {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		if c := a.StockQuantity.Cmp(b.StockQuantity); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

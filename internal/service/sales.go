package service

import (
	"context"
	"fmt"
	"strings"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/money"
	"feedpos/backend/internal/store"
)

const maxSaleListLimit = 500

func (s *Service) ListSales(ctx context.Context, from string, to string, limit int) (domain.SaleListResponse, error) {
	start, end, err := s.parseWindow(from, to)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	if limit < 1 || limit > maxSaleListLimit {
		limit = maxSaleListLimit
	}
	sales, err := s.repo.ListSales(ctx, start, end, limit)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	if actor, ok := ActorFromContext(ctx); ok && actor.Role != domain.RoleAdmin {
		own := sales[:0]
		for _, sale := range sales {
			if sale.CashierUsername == actor.Username {
				own = append(own, sale)
			}
		}
		sales = own
	}
	return domain.SaleListResponse{Sales: sales}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrInvalidInput
	}
	sale, err := s.repo.FindSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// Invoice renders the plain-text invoice printed for a sale.
func (s *Service) Invoice(ctx context.Context, id string) (domain.InvoiceResponse, error) {
	sale, err := s.GetSale(ctx, id)
	if err != nil {
		return domain.InvoiceResponse{}, err
	}
	return domain.InvoiceResponse{
		SaleID:   sale.ID,
		Text:     s.renderInvoice(sale),
		FileName: fmt.Sprintf("invoice-%s.txt", sale.ID),
	}, nil
}

func (s *Service) renderInvoice(sale domain.Sale) string {
	const rule = "========================================"
	const thin = "----------------------------------------"

	lines := []string{
		s.businessName,
		rule,
		"Invoice: " + sale.ID,
		"Date:    " + sale.CreatedAt.Format("2006-01-02 15:04"),
	}
	if sale.CashierUsername != "" {
		lines = append(lines, "Cashier: "+sale.CashierUsername)
	}
	if sale.Customer.Name != "" {
		lines = append(lines, "Customer: "+sale.Customer.Name)
	}
	if sale.Customer.Phone != "" {
		lines = append(lines, "Phone:   "+sale.Customer.Phone)
	}
	lines = append(lines, thin)

	for _, item := range sale.Items {
		lines = append(lines, item.ProductName)
		lines = append(lines, fmt.Sprintf("  %s %s x %s = %s",
			item.Quantity.String(), item.Unit,
			money.Format(item.PriceAtSale, ""),
			money.Format(item.PriceAtSale.Mul(item.Quantity), "")))
		if item.DiscountAmount.IsPositive() {
			lines = append(lines, fmt.Sprintf("  discount -%s", money.Format(item.DiscountAmount, "")))
		}
	}

	lines = append(lines,
		thin,
		fmt.Sprintf("Subtotal : %s", money.Format(sale.Subtotal, s.currency)),
		fmt.Sprintf("Discount : %s", money.Format(sale.DiscountTotal, s.currency)),
		fmt.Sprintf("Total    : %s", money.Format(sale.Total, s.currency)),
		fmt.Sprintf("Paid     : %s (%s)", money.Format(sale.AmountPaid, s.currency), defaultString(sale.PaymentLabel, sale.PaymentMethod.Label())),
	)
	if sale.PaymentReference != "" {
		lines = append(lines, "Ref      : "+sale.PaymentReference)
	}
	if sale.PaymentMethod == domain.PaymentCash {
		lines = append(lines, fmt.Sprintf("Change   : %s", money.Format(sale.Change, s.currency)))
	}
	lines = append(lines, rule, "Thank you", "")
	return strings.Join(lines, "\n")
}

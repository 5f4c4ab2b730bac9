package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/report"
	"feedpos/backend/internal/store"
	"feedpos/backend/internal/xid"
)

// ErrNoOpenClosure is returned when closing a day that was never opened.
var ErrNoOpenClosure = errors.New("no open closure")

const reportSalesLimit = 100000

func (s *Service) CreateLedgerEntry(ctx context.Context, req domain.LedgerEntryRequest) (domain.LedgerEntry, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if req.Type != domain.LedgerIncome && req.Type != domain.LedgerExpense {
		return domain.LedgerEntry{}, fmt.Errorf("%w: type must be income or expense", store.ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return domain.LedgerEntry{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidInput)
	}
	if err := checkAmount("amount", req.Amount); err != nil {
		return domain.LedgerEntry{}, err
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return domain.LedgerEntry{}, fmt.Errorf("%w: unknown payment method", store.ErrInvalidInput)
	}

	entry, err := s.repo.CreateLedgerEntry(ctx, domain.LedgerEntry{
		ID:            xid.New("txn"),
		Type:          req.Type,
		Category:      strings.ToLower(strings.TrimSpace(req.Category)),
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Reference:     strings.TrimSpace(req.Reference),
		Description:   strings.TrimSpace(req.Description),
		Actor:         actor.Username,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	s.logAudit(ctx, "ledger_create", "ledger_entry", entry.ID,
		fmt.Sprintf("type=%s,category=%s,amount=%s", entry.Type, entry.Category, entry.Amount.StringFixed(2)))
	return *entry, nil
}

func (s *Service) ListLedgerEntries(ctx context.Context, entryType domain.LedgerEntryType, from string, to string, limit int) (domain.LedgerListResponse, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.LedgerListResponse{}, err
	}
	start, end, err := s.parseWindow(from, to)
	if err != nil {
		return domain.LedgerListResponse{}, err
	}
	entries, err := s.repo.ListLedgerEntries(ctx, domain.LedgerFilter{Type: entryType, From: start, To: end, Limit: limit})
	if err != nil {
		return domain.LedgerListResponse{}, err
	}
	return domain.LedgerListResponse{Entries: entries}, nil
}

func (s *Service) SalesSummary(ctx context.Context, from string, to string, top int) (report.Summary, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return report.Summary{}, err
	}
	start, end, err := s.parseWindow(from, to)
	if err != nil {
		return report.Summary{}, err
	}
	sales, err := s.repo.ListSales(ctx, start, end, reportSalesLimit)
	if err != nil {
		return report.Summary{}, err
	}
	summary := report.Summarize(sales, top)
	summary.From = start
	summary.To = end
	return summary, nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	return report.LowStock(products), nil
}

// OpenDay starts today's cash closure with the opening float.
func (s *Service) OpenDay(ctx context.Context, req domain.ClosureOpenRequest) (domain.DailyClosure, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.DailyClosure{}, fmt.Errorf("%w: actor required", ErrForbidden)
	}
	if req.OpeningFloat.IsNegative() {
		return domain.DailyClosure{}, fmt.Errorf("%w: opening float cannot be negative", store.ErrInvalidInput)
	}
	if err := checkAmount("opening_float", req.OpeningFloat); err != nil {
		return domain.DailyClosure{}, err
	}

	now := s.now()
	closure, err := s.repo.OpenClosure(ctx, domain.DailyClosure{
		ID:           xid.New("close"),
		BusinessDate: s.localNow().Format(time.DateOnly),
		OpenedBy:     actor.Username,
		OpeningFloat: req.OpeningFloat,
		Status:       domain.ClosureStatusOpen,
		OpenedAt:     now,
	})
	if err != nil {
		return domain.DailyClosure{}, err
	}
	s.logAudit(ctx, "closure_open", "daily_closure", closure.ID, "float="+closure.OpeningFloat.StringFixed(2))
	return *closure, nil
}

func (s *Service) CurrentClosure(ctx context.Context) (domain.DailyClosure, error) {
	closure, err := s.repo.GetOpenClosure(ctx)
	if err != nil {
		if isNotFound(err) {
			return domain.DailyClosure{}, ErrNoOpenClosure
		}
		return domain.DailyClosure{}, err
	}
	return s.withRunningTotals(ctx, *closure)
}

// CloseDay totals the sales since the closure opened and records the
// counted drawer against the expected cash.
func (s *Service) CloseDay(ctx context.Context, req domain.ClosureCloseRequest) (domain.DailyClosure, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.DailyClosure{}, fmt.Errorf("%w: actor required", ErrForbidden)
	}
	if req.CountedCash != nil && req.CountedCash.IsNegative() {
		return domain.DailyClosure{}, fmt.Errorf("%w: counted cash cannot be negative", store.ErrInvalidInput)
	}
	if req.CountedCash != nil {
		if err := checkAmount("counted_cash", *req.CountedCash); err != nil {
			return domain.DailyClosure{}, err
		}
	}

	open, err := s.CurrentClosure(ctx)
	if err != nil {
		return domain.DailyClosure{}, err
	}
	closing := report.CloseDay(open.OpeningFloat, open.CashSales, req.CountedCash)
	counted := closing.CountedCash
	variance := closing.Variance
	closedAt := s.now()

	open.ExpectedCash = closing.ExpectedCash
	open.CountedCash = &counted
	open.Variance = &variance
	open.Notes = strings.TrimSpace(req.Notes)
	open.ClosedBy = actor.Username
	open.ClosedAt = &closedAt

	closed, err := s.repo.CloseClosure(ctx, open)
	if err != nil {
		return domain.DailyClosure{}, err
	}
	if !variance.IsZero() {
		s.logger.Info().
			Str("closure", closed.ID).
			Str("variance", variance.StringFixed(2)).
			Msg("cash drawer variance at closing")
	}
	s.logAudit(ctx, "closure_close", "daily_closure", closed.ID,
		fmt.Sprintf("expected=%s,counted=%s,variance=%s", closing.ExpectedCash.StringFixed(2), counted.StringFixed(2), variance.StringFixed(2)))
	return *closed, nil
}

func (s *Service) withRunningTotals(ctx context.Context, closure domain.DailyClosure) (domain.DailyClosure, error) {
	sales, err := s.repo.ListSales(ctx, closure.OpenedAt, s.now().Add(time.Second), reportSalesLimit)
	if err != nil {
		return domain.DailyClosure{}, err
	}
	cash, nonCash := report.CashTotals(sales)
	closure.CashSales = cash
	closure.NonCashSales = nonCash
	closure.ExpectedCash = report.CloseDay(closure.OpeningFloat, cash, nil).ExpectedCash
	return closure, nil
}

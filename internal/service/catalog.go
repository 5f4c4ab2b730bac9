package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/money"
	"feedpos/backend/internal/pos"
	"feedpos/backend/internal/store"
	"feedpos/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) (domain.ProductPage, error) {
	if filter.IncludeAll {
		if _, err := requireAdmin(ctx); err != nil {
			filter.IncludeAll = false
		}
	}
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.SupplierID = strings.TrimSpace(req.SupplierID)
	if req.Name == "" || req.Category == "" || !req.UnitType.Valid() {
		return domain.Product{}, store.ErrInvalidInput
	}
	if !req.Price.IsPositive() {
		return domain.Product{}, fmt.Errorf("%w: price must be positive", store.ErrInvalidInput)
	}
	if req.CostPrice.IsNegative() || req.InitialStock.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: cost price and stock cannot be negative", store.ErrInvalidInput)
	}
	if err := checkAmount("price", req.Price); err != nil {
		return domain.Product{}, err
	}
	if err := checkAmount("cost_price", req.CostPrice); err != nil {
		return domain.Product{}, err
	}
	if err := checkKg("initial_stock", req.InitialStock); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:            xid.New("prd"),
		Name:          req.Name,
		Category:      req.Category,
		SupplierID:    req.SupplierID,
		UnitType:      req.UnitType,
		Price:         req.Price,
		CostPrice:     req.CostPrice,
		StockQuantity: req.InitialStock,
		Active:        true,
		CreatedAt:     s.now(),
	}
	if product.WeightPerBag, err = optionalPositive(req.WeightPerBag, "weight_per_bag"); err != nil {
		return domain.Product{}, err
	}
	if product.ReorderLevel, err = optionalNonNegative(req.ReorderLevel, "reorder_level"); err != nil {
		return domain.Product{}, err
	}
	if product.UnitType == domain.UnitTypeBag && !product.WeightPerBag.Valid {
		s.logger.Info().Str("product", product.Name).Msg("bag product created without weight_per_bag; per-kg sales disabled")
	}
	if strings.TrimSpace(req.ExpiryDate) != "" {
		expiry, err := parseDate(req.ExpiryDate)
		if err != nil {
			return domain.Product{}, err
		}
		product.ExpiryDate = &expiry
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID,
		fmt.Sprintf("name=%s,unit=%s,price=%s,stock_kg=%s,by=%s", created.Name, created.UnitType, created.Price, created.StockQuantity, actor.Username))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		if updated.Name = strings.TrimSpace(*req.Name); updated.Name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
	}
	if req.Category != nil {
		if updated.Category = strings.TrimSpace(*req.Category); updated.Category == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
	}
	if req.SupplierID != nil {
		updated.SupplierID = strings.TrimSpace(*req.SupplierID)
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return domain.Product{}, fmt.Errorf("%w: price must be positive", store.ErrInvalidInput)
		}
		if err := checkAmount("price", *req.Price); err != nil {
			return domain.Product{}, err
		}
		updated.Price = *req.Price
	}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: cost price cannot be negative", store.ErrInvalidInput)
		}
		if err := checkAmount("cost_price", *req.CostPrice); err != nil {
			return domain.Product{}, err
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.WeightPerBag != nil {
		if updated.WeightPerBag, err = optionalPositive(req.WeightPerBag, "weight_per_bag"); err != nil {
			return domain.Product{}, err
		}
	}
	if req.ReorderLevel != nil {
		if updated.ReorderLevel, err = optionalNonNegative(req.ReorderLevel, "reorder_level"); err != nil {
			return domain.Product{}, err
		}
	}
	if req.ExpiryDate != nil {
		if strings.TrimSpace(*req.ExpiryDate) == "" {
			updated.ExpiryDate = nil
		} else {
			expiry, err := parseDate(*req.ExpiryDate)
			if err != nil {
				return domain.Product{}, err
			}
			updated.ExpiryDate = &expiry
		}
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	if !existing.Price.Equal(saved.Price) || !existing.CostPrice.Equal(saved.CostPrice) {
		if err := s.repo.CreatePriceHistory(ctx, domain.ProductPriceHistory{
			ID:           xid.New("ph"),
			ProductID:    saved.ID,
			OldPrice:     existing.Price,
			NewPrice:     saved.Price,
			OldCostPrice: existing.CostPrice,
			NewCostPrice: saved.CostPrice,
			ChangedBy:    actor.Username,
			ChangedAt:    s.now(),
		}); err != nil {
			s.logger.Warn().Err(err).Str("product", saved.ID).Msg("failed to record price history")
		}
	}

	s.logAudit(ctx, "product_update", "product", saved.ID,
		fmt.Sprintf("active=%t,price=%s,cost=%s", saved.Active, saved.Price, saved.CostPrice))
	return *saved, nil
}

func (s *Service) ListProductPriceHistory(ctx context.Context, id string, limit int) ([]domain.ProductPriceHistory, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrInvalidInput
	}
	if limit < 1 {
		limit = 50
	}
	if _, err := s.repo.GetProduct(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListPriceHistory(ctx, id, limit)
}

// Quote prices a prospective line without touching any cart. Stock
// shortfalls are reported in the result rather than as an error.
func (s *Service) Quote(ctx context.Context, id string, unit domain.SaleUnit, quantity decimal.Decimal) (domain.Quote, error) {
	product, err := s.activeProduct(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if !quantity.IsPositive() {
		return domain.Quote{}, fmt.Errorf("%w: quantity must be positive", pos.ErrInvalidQuantity)
	}
	if err := money.CheckQuantity(quantity); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %v", pos.ErrInvalidQuantity, err)
	}
	if pos.IsExpired(product, s.localNow()) {
		return domain.Quote{}, fmt.Errorf("%w: %s", pos.ErrExpiredProduct, product.Name)
	}
	price, err := pos.ResolveUnitPrice(product, unit)
	if err != nil {
		return domain.Quote{}, err
	}
	consumed, err := pos.ResolveStockConsumption(product, unit, quantity)
	if err != nil {
		return domain.Quote{}, err
	}

	return domain.Quote{
		ProductID:          product.ID,
		Unit:               unit,
		Quantity:           quantity,
		EffectiveUnitPrice: price,
		LineTotal:          price.Mul(quantity),
		StockConsumedKg:    consumed,
		AvailableKg:        product.StockQuantity,
		Sufficient:         pos.CheckStock(product, consumed) == nil,
	}, nil
}

// activeProduct loads a fresh catalog snapshot; deactivated products are
// treated as missing.
func (s *Service) activeProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !product.Active {
		return domain.Product{}, fmt.Errorf("%w: product %s is inactive", store.ErrNotFound, id)
	}
	return *product, nil
}

func optionalPositive(value *decimal.Decimal, field string) (decimal.NullDecimal, error) {
	if value == nil || value.IsZero() {
		return decimal.NullDecimal{}, nil
	}
	if !value.IsPositive() {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s must be positive", store.ErrInvalidInput, field)
	}
	if err := checkKg(field, *value); err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(*value), nil
}

func optionalNonNegative(value *decimal.Decimal, field string) (decimal.NullDecimal, error) {
	if value == nil {
		return decimal.NullDecimal{}, nil
	}
	if value.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s cannot be negative", store.ErrInvalidInput, field)
	}
	if err := checkKg(field, *value); err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(*value), nil
}

// checkAmount and checkKg reject figures too precise or too large to store.
func checkAmount(field string, value decimal.Decimal) error {
	if err := money.CheckAmount(value); err != nil {
		return fmt.Errorf("%w: %s: %v", store.ErrInvalidInput, field, err)
	}
	return nil
}

func checkKg(field string, value decimal.Decimal) error {
	if err := money.CheckQuantity(value); err != nil {
		return fmt.Errorf("%w: %s: %v", store.ErrInvalidInput, field, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

package service

import (
	"context"
	"fmt"
	"strings"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/money"
	"feedpos/backend/internal/pos"
	"feedpos/backend/internal/store"
)

// ReceiveStock books a supplier delivery. Quantities in bags are converted
// to kilograms with the product's bag weight; the unit cost is per sale unit.
func (s *Service) ReceiveStock(ctx context.Context, req domain.StockReceipt) (domain.StockMovement, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.StockMovement{}, err
	}
	if !req.Quantity.IsPositive() {
		return domain.StockMovement{}, fmt.Errorf("%w: quantity must be positive", pos.ErrInvalidQuantity)
	}
	if err := money.CheckQuantity(req.Quantity); err != nil {
		return domain.StockMovement{}, fmt.Errorf("%w: %v", pos.ErrInvalidQuantity, err)
	}
	if req.UnitCost.IsNegative() {
		return domain.StockMovement{}, fmt.Errorf("%w: unit cost cannot be negative", store.ErrInvalidInput)
	}
	if err := checkAmount("unit_cost", req.UnitCost); err != nil {
		return domain.StockMovement{}, err
	}

	product, err := s.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.StockMovement{}, err
	}
	kg, err := pos.ResolveStockConsumption(product, req.Unit, req.Quantity)
	if err != nil {
		return domain.StockMovement{}, err
	}

	movement, err := s.repo.ReceiveStock(ctx, store.Receipt{
		ProductID:  product.ID,
		SupplierID: strings.TrimSpace(req.SupplierID),
		QuantityKg: kg,
		TotalCost:  req.UnitCost.Mul(req.Quantity),
		Note:       strings.TrimSpace(req.Note),
		Actor:      actor.Username,
		At:         s.now(),
	})
	if err != nil {
		return domain.StockMovement{}, err
	}

	s.logAudit(ctx, "stock_receive", "product", product.ID,
		fmt.Sprintf("qty=%s %s,kg=%s,supplier=%s", req.Quantity, req.Unit, kg, req.SupplierID))
	return *movement, nil
}

// AdjustStock replaces the recorded kilograms with a physical count.
func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.StockMovement, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.StockMovement{}, err
	}
	if req.CountedKg.IsNegative() {
		return domain.StockMovement{}, fmt.Errorf("%w: counted stock cannot be negative", store.ErrInvalidInput)
	}
	if err := checkKg("counted_kg", req.CountedKg); err != nil {
		return domain.StockMovement{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.StockMovement{}, fmt.Errorf("%w: reason is required", store.ErrInvalidInput)
	}

	movement, err := s.repo.AdjustStock(ctx, store.Adjustment{
		ProductID: strings.TrimSpace(req.ProductID),
		CountedKg: req.CountedKg,
		Reason:    reason,
		Actor:     actor.Username,
		At:        s.now(),
	})
	if err != nil {
		return domain.StockMovement{}, err
	}

	s.logAudit(ctx, "stock_adjust", "product", movement.ProductID,
		fmt.Sprintf("counted_kg=%s,delta_kg=%s,reason=%s", req.CountedKg, movement.QuantityKg, reason))
	return *movement, nil
}

func (s *Service) ListStockMovements(ctx context.Context, filter domain.StockMovementFilter) (domain.StockMovementListResponse, error) {
	if filter.Type != "" {
		switch filter.Type {
		case domain.StockMovementSale, domain.StockMovementReceipt, domain.StockMovementAdjustment:
		default:
			return domain.StockMovementListResponse{}, fmt.Errorf("%w: unknown movement type %q", store.ErrInvalidInput, filter.Type)
		}
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	movements, err := s.repo.ListStockMovements(ctx, filter)
	if err != nil {
		return domain.StockMovementListResponse{}, err
	}
	return domain.StockMovementListResponse{Movements: movements}, nil
}

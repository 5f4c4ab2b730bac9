package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"feedpos/backend/internal/cache"
	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/pos"
	"feedpos/backend/internal/store"
	"feedpos/backend/internal/xid"
)

// CartView is a cart as returned to the till.
type CartView struct {
	*pos.Cart
	State         pos.CartState   `json:"state"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
}

func viewOf(cart *pos.Cart) CartView {
	return CartView{
		Cart:          cart,
		State:         cart.State(),
		DiscountTotal: cart.LineDiscountTotal().Add(decimal.Min(cart.OrderDiscount, cart.Subtotal)),
	}
}

// cartLocks serializes operations on the same cart id inside this process.
type cartLocks struct {
	stripes [64]sync.Mutex
}

func (l *cartLocks) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	mu.Lock()
	return mu.Unlock
}

func (s *Service) CreateCart(ctx context.Context) (CartView, error) {
	cart := pos.NewCart(xid.New("cart"))
	cart.SetClock(s.localNow)
	cart.CreatedAt = s.now()
	cart.UpdatedAt = cart.CreatedAt
	if actor, ok := ActorFromContext(ctx); ok {
		cart.Cashier = actor.Username
	}
	if err := s.carts.Save(ctx, cart, s.cartTTL); err != nil {
		return CartView{}, err
	}
	return viewOf(cart), nil
}

func (s *Service) GetCart(ctx context.Context, id string) (CartView, error) {
	cart, err := s.loadCart(ctx, id)
	if err != nil {
		return CartView{}, err
	}
	return viewOf(cart), nil
}

func (s *Service) AddCartLine(ctx context.Context, cartID string, req domain.CartLineRequest) (CartView, error) {
	return s.mutateCart(ctx, cartID, func(cart *pos.Cart) error {
		product, err := s.activeProduct(ctx, req.ProductID)
		if err != nil {
			return err
		}
		return cart.AddOrMergeLine(product, req.Unit, req.Quantity)
	})
}

func (s *Service) ChangeCartQuantity(ctx context.Context, cartID string, productID string, req domain.CartQuantityRequest) (CartView, error) {
	return s.mutateCart(ctx, cartID, func(cart *pos.Cart) error {
		product, err := s.lineProduct(ctx, cart, productID, req.Unit)
		if err != nil {
			return err
		}
		return cart.ChangeQuantity(product, req.Unit, req.Delta)
	})
}

func (s *Service) RemoveCartLine(ctx context.Context, cartID string, productID string, unit domain.SaleUnit) (CartView, error) {
	return s.mutateCart(ctx, cartID, func(cart *pos.Cart) error {
		return cart.RemoveLine(strings.TrimSpace(productID), unit)
	})
}

func (s *Service) SetCartLineDiscount(ctx context.Context, cartID string, productID string, req domain.CartLineDiscountRequest) (CartView, error) {
	return s.mutateCart(ctx, cartID, func(cart *pos.Cart) error {
		return cart.SetLineDiscount(strings.TrimSpace(productID), req.Unit, req.Amount)
	})
}

func (s *Service) SetCartDiscount(ctx context.Context, cartID string, req domain.CartDiscountRequest) (CartView, error) {
	return s.mutateCart(ctx, cartID, func(cart *pos.Cart) error {
		return cart.SetOrderDiscount(req.Amount)
	})
}

// CancelCart abandons the cart and drops its session.
func (s *Service) CancelCart(ctx context.Context, cartID string) (CartView, error) {
	unlock := s.locks.lock(cartID)
	defer unlock()

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return CartView{}, err
	}
	if err := cart.Cancel(); err != nil {
		return CartView{}, err
	}
	if err := s.carts.Delete(ctx, cart.ID); err != nil {
		s.logger.Warn().Err(err).Str("cart", cart.ID).Msg("failed to drop cancelled cart")
	}
	s.logAudit(ctx, "cart_cancel", "cart", cart.ID, "")
	return viewOf(cart), nil
}

// PreviewChange evaluates a payment against the cart without settling it.
func (s *Service) PreviewChange(ctx context.Context, cartID string, req domain.PaymentRequest) (domain.ChangePreview, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return domain.ChangePreview{}, err
	}
	preview := domain.ChangePreview{
		Total:    cart.Total,
		Tendered: req.Amount,
		Change:   decimal.Zero,
		Deficit:  decimal.Zero,
	}
	outcome, err := pos.ComputeChange(cart.Total, req.Method, req.Amount)
	var short *pos.InsufficientPaymentError
	switch {
	case errors.As(err, &short):
		preview.Deficit = short.Deficit()
		return preview, nil
	case err != nil:
		return domain.ChangePreview{}, err
	}
	preview.Tendered = outcome.AmountPaid
	preview.Change = outcome.Change
	preview.Sufficient = true
	return preview, nil
}

// SettleCart closes the cart into a sale and submits it to the repository.
// A failed submission leaves the stored cart open so the cashier can retry.
func (s *Service) SettleCart(ctx context.Context, cartID string, req domain.SettleRequest) (domain.Sale, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		if existing, err := s.repo.FindSaleByIdempotency(ctx, key); err == nil {
			return *existing, nil
		} else if !isNotFound(err) {
			return domain.Sale{}, err
		}
	} else {
		key = xid.New("idem")
	}

	unlock := s.locks.lock(cartID)
	defer unlock()

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return domain.Sale{}, err
	}

	sale, err := pos.Settle(cart, pos.PaymentDetails{
		Method:    req.Payment.Method,
		Tendered:  req.Payment.Amount,
		Reference: req.Payment.Reference,
	}, req.Customer)
	if err != nil {
		s.recorder.CheckoutRejected(rejectionReason(err))
		return domain.Sale{}, err
	}
	sale.ID = xid.New("sale")
	sale.IdempotencyKey = key
	if actor, ok := ActorFromContext(ctx); ok {
		sale.CashierUsername = actor.Username
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			s.recorder.CheckoutRejected("insufficient_stock")
		} else {
			s.logger.Error().Err(err).Str("cart", cartID).Msg("sale submission failed")
		}
		return domain.Sale{}, err
	}

	if err := s.carts.Delete(ctx, cartID); err != nil {
		s.logger.Warn().Err(err).Str("cart", cartID).Msg("failed to drop settled cart")
	}
	kg := decimal.Zero
	for _, item := range created.Items {
		kg = kg.Add(item.StockConsumedKg)
	}
	s.recorder.SaleSettled(created.PaymentMethod, created.Total.InexactFloat64(), kg.InexactFloat64())
	s.logAudit(ctx, "sale_create", "sale", created.ID,
		fmt.Sprintf("total=%s,method=%s,lines=%d", created.Total.StringFixed(2), created.PaymentMethod, len(created.Items)))
	return *created, nil
}

func (s *Service) mutateCart(ctx context.Context, cartID string, apply func(cart *pos.Cart) error) (CartView, error) {
	unlock := s.locks.lock(cartID)
	defer unlock()

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return CartView{}, err
	}
	if err := apply(cart); err != nil {
		return CartView{}, err
	}
	cart.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, cart, s.cartTTL); err != nil {
		s.logger.Error().Err(err).Str("cart", cart.ID).Msg("failed to save cart")
		return CartView{}, err
	}
	return viewOf(cart), nil
}

// loadCart returns the stored cart if the actor may see it. Cashiers only
// see their own carts.
func (s *Service) loadCart(ctx context.Context, id string) (*pos.Cart, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrInvalidInput
	}
	cart, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor, ok := ActorFromContext(ctx); ok && actor.Role != domain.RoleAdmin && cart.Cashier != "" && cart.Cashier != actor.Username {
		return nil, cache.ErrCartNotFound
	}
	cart.SetClock(s.localNow)
	return cart, nil
}

// lineProduct fetches a fresh snapshot for an increase check. When the
// product was deactivated after the line was added, decreases still work
// against the line's own snapshot.
func (s *Service) lineProduct(ctx context.Context, cart *pos.Cart, productID string, unit domain.SaleUnit) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	product, err := s.activeProduct(ctx, productID)
	if err == nil {
		return product, nil
	}
	if !isNotFound(err) {
		return domain.Product{}, err
	}
	for _, line := range cart.Lines {
		if line.ProductID == productID && line.Unit == unit {
			return domain.Product{
				ID:           line.ProductID,
				Name:         line.ProductName,
				UnitType:     line.ProductUnitType,
				WeightPerBag: line.WeightPerBag,
			}, nil
		}
	}
	return domain.Product{}, err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, pos.ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, pos.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, pos.ErrUnsupportedPaymentMethod):
		return "unsupported_payment_method"
	case errors.Is(err, pos.ErrCartClosed):
		return "cart_closed"
	default:
		return "other"
	}
}

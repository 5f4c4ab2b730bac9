package pos

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/money"
)

type CartStatus string

const (
	CartOpen      CartStatus = "open"
	CartSettled   CartStatus = "settled"
	CartCancelled CartStatus = "cancelled"
)

// CartState is the lifecycle position derived from status and line count.
type CartState string

const (
	StateEmpty     CartState = "empty"
	StateBuilding  CartState = "building"
	StateSettled   CartState = "settled"
	StateCancelled CartState = "cancelled"
)

// CartLine is one product in one sale unit. The product fields it needs for
// settlement are copied in when the line is created so later catalog edits
// do not reprice a cart in progress.
type CartLine struct {
	ProductID          string              `json:"product_id"`
	ProductName        string              `json:"product_name"`
	ProductUnitType    domain.UnitType     `json:"product_unit_type"`
	CostPrice          decimal.Decimal     `json:"cost_price"`
	WeightPerBag       decimal.NullDecimal `json:"weight_per_bag"`
	Unit               domain.SaleUnit     `json:"unit"`
	Quantity           decimal.Decimal     `json:"quantity"`
	EffectiveUnitPrice decimal.Decimal     `json:"effective_unit_price"`
	Discount           decimal.Decimal     `json:"discount"`
	LineTotal          decimal.Decimal     `json:"line_total"`
}

// Gross is price times quantity before the line discount.
func (l CartLine) Gross() decimal.Decimal {
	return l.EffectiveUnitPrice.Mul(l.Quantity)
}

func (l CartLine) net() decimal.Decimal {
	return l.Gross().Sub(l.Discount)
}

func (l CartLine) snapshot() domain.Product {
	return domain.Product{
		ID:           l.ProductID,
		Name:         l.ProductName,
		UnitType:     l.ProductUnitType,
		CostPrice:    l.CostPrice,
		WeightPerBag: l.WeightPerBag,
	}
}

// Cart is the sale being built at the till. A Cart is not safe for
// concurrent use; sessions serialize access around it.
type Cart struct {
	ID            string          `json:"id"`
	Cashier       string          `json:"cashier,omitempty"`
	Status        CartStatus      `json:"status"`
	Lines         []CartLine      `json:"lines"`
	OrderDiscount decimal.Decimal `json:"order_discount"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	clock func() time.Time
}

func NewCart(id string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:        id,
		Status:    CartOpen,
		Lines:     []CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetClock replaces the time source used for expiry checks and timestamps.
func (c *Cart) SetClock(fn func() time.Time) {
	c.clock = fn
}

func (c *Cart) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now().UTC()
}

func (c *Cart) State() CartState {
	switch c.Status {
	case CartSettled:
		return StateSettled
	case CartCancelled:
		return StateCancelled
	}
	if len(c.Lines) == 0 {
		return StateEmpty
	}
	return StateBuilding
}

// AddOrMergeLine adds quantity units of the product, merging into an
// existing line for the same product and unit. The merged line keeps the
// price it was created with.
func (c *Cart) AddOrMergeLine(p domain.Product, unit domain.SaleUnit, quantity decimal.Decimal) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if !unit.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if err := money.CheckQuantity(quantity); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
	}
	if expired(p.ExpiryDate, c.now()) {
		return fmt.Errorf("%w: %s expired on %s", ErrExpiredProduct, displayName(p), p.ExpiryDate.Format("2006-01-02"))
	}
	if !p.StockQuantity.IsPositive() {
		return fmt.Errorf("%w: %s", ErrOutOfStock, displayName(p))
	}

	idx := c.find(p.ID, unit)
	newQty := quantity
	if idx >= 0 {
		newQty = c.Lines[idx].Quantity.Add(quantity)
	}
	if err := c.checkProductStock(p, unit, newQty); err != nil {
		return err
	}

	if idx >= 0 {
		c.Lines[idx].Quantity = newQty
	} else {
		price, err := ResolveUnitPrice(p, unit)
		if err != nil {
			return err
		}
		c.Lines = append(c.Lines, CartLine{
			ProductID:          p.ID,
			ProductName:        p.Name,
			ProductUnitType:    p.UnitType,
			CostPrice:          p.CostPrice,
			WeightPerBag:       p.WeightPerBag,
			Unit:               unit,
			Quantity:           newQty,
			EffectiveUnitPrice: price,
			Discount:           decimal.Zero,
		})
	}
	c.recompute()
	return nil
}

// ChangeQuantity adjusts the line for productID and unit by delta. A
// result of zero or less removes the line. Increases are checked against
// the product's stock.
func (c *Cart) ChangeQuantity(p domain.Product, unit domain.SaleUnit, delta decimal.Decimal) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	idx := c.find(p.ID, unit)
	if idx < 0 {
		return fmt.Errorf("%w: %s (%s)", ErrLineNotFound, p.ID, unit)
	}
	if err := money.CheckQuantity(delta); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
	}
	if delta.IsZero() {
		return nil
	}

	line := &c.Lines[idx]
	newQty := line.Quantity.Add(delta)
	if !newQty.IsPositive() {
		c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
		c.recompute()
		return nil
	}
	if delta.IsPositive() {
		if err := c.checkProductStock(p, unit, newQty); err != nil {
			return err
		}
	}
	line.Quantity = newQty
	if gross := line.Gross(); line.Discount.GreaterThan(gross) {
		line.Discount = gross
	}
	c.recompute()
	return nil
}

// RemoveLine deletes the line for productID and unit if present.
func (c *Cart) RemoveLine(productID string, unit domain.SaleUnit) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if idx := c.find(productID, unit); idx >= 0 {
		c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
		c.recompute()
	}
	return nil
}

// SetLineDiscount sets a fixed discount on one line. It may not exceed
// the line's gross amount.
func (c *Cart) SetLineDiscount(productID string, unit domain.SaleUnit, amount decimal.Decimal) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	idx := c.find(productID, unit)
	if idx < 0 {
		return fmt.Errorf("%w: %s (%s)", ErrLineNotFound, productID, unit)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: line discount cannot be negative", ErrInvalidDiscount)
	}
	if err := money.CheckAmount(amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDiscount, err)
	}
	if gross := c.Lines[idx].Gross(); amount.GreaterThan(gross) {
		return fmt.Errorf("%w: line discount %s exceeds line amount %s", ErrInvalidDiscount, amount.String(), gross.Round(2).String())
	}
	c.Lines[idx].Discount = amount
	c.recompute()
	return nil
}

// SetOrderDiscount replaces the cart-level discount. Amounts above the
// subtotal are accepted and clamp the total at zero.
func (c *Cart) SetOrderDiscount(amount decimal.Decimal) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: order discount cannot be negative", ErrInvalidDiscount)
	}
	if err := money.CheckAmount(amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDiscount, err)
	}
	c.OrderDiscount = amount
	c.recompute()
	return nil
}

// Cancel abandons the cart and clears its lines.
func (c *Cart) Cancel() error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	c.Status = CartCancelled
	c.clear()
	return nil
}

// LineDiscountTotal sums the line-level discounts.
func (c *Cart) LineDiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Discount)
	}
	return total
}

// ConsumedKg is the stock the cart currently holds for productID across
// all units.
func (c *Cart) ConsumedKg(p domain.Product) decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		if line.ProductID != p.ID {
			continue
		}
		kg, err := ResolveStockConsumption(p, line.Unit, line.Quantity)
		if err == nil {
			total = total.Add(kg)
		}
	}
	return total
}

// checkProductStock verifies that the line for unit at newQty, together
// with any other line for the same product, fits the available stock.
func (c *Cart) checkProductStock(p domain.Product, unit domain.SaleUnit, newQty decimal.Decimal) error {
	needed, err := ResolveStockConsumption(p, unit, newQty)
	if err != nil {
		return err
	}
	for _, line := range c.Lines {
		if line.ProductID != p.ID || line.Unit == unit {
			continue
		}
		other, err := ResolveStockConsumption(p, line.Unit, line.Quantity)
		if err != nil {
			return err
		}
		needed = needed.Add(other)
	}
	return CheckStock(p, needed)
}

func (c *Cart) recompute() {
	subtotal := decimal.Zero
	for i := range c.Lines {
		c.Lines[i].LineTotal = c.Lines[i].net()
		subtotal = subtotal.Add(c.Lines[i].LineTotal)
	}
	c.Subtotal = subtotal
	total := subtotal.Sub(c.OrderDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	c.Total = total
	c.UpdatedAt = c.now()
}

func (c *Cart) clear() {
	c.Lines = []CartLine{}
	c.OrderDiscount = decimal.Zero
	c.recompute()
}

func (c *Cart) find(productID string, unit domain.SaleUnit) int {
	for i, line := range c.Lines {
		if line.ProductID == productID && line.Unit == unit {
			return i
		}
	}
	return -1
}

func (c *Cart) ensureOpen() error {
	if c.Status != CartOpen && c.Status != "" {
		return fmt.Errorf("%w: cart %s is %s", ErrCartClosed, c.ID, c.Status)
	}
	return nil
}

// expired reports whether the expiry date falls on or before the wall-clock
// day of now. Expiry dates are calendar dates, so only their year, month
// and day count; now is read in its own location, which is the shop's.
func expired(expiry *time.Time, now time.Time) bool {
	if expiry == nil || expiry.IsZero() {
		return false
	}
	ey, em, ed := expiry.Date()
	ny, nm, nd := now.Date()
	expiryDay := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return !expiryDay.After(today)
}

// IsExpired reports whether the product can no longer be sold at now.
func IsExpired(p domain.Product, now time.Time) bool {
	return expired(p.ExpiryDate, now)
}

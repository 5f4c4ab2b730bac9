package pos

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Business-rule conditions. All of them are expected outcomes of cashier
// input and are returned to the caller rather than logged.
var (
	ErrConversionUnavailable    = errors.New("unit conversion unavailable")
	ErrExpiredProduct           = errors.New("product expired")
	ErrOutOfStock               = errors.New("product out of stock")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrInsufficientPayment      = errors.New("insufficient payment")
	ErrEmptyCart                = errors.New("cart is empty")
	ErrInvalidQuantity          = errors.New("quantity must be positive")
	ErrInvalidDiscount          = errors.New("invalid discount")
	ErrInvalidAmount            = errors.New("invalid payment amount")
	ErrInvalidUnit              = errors.New("invalid sale unit")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrCartClosed               = errors.New("cart is no longer open")
	ErrLineNotFound             = errors.New("cart line not found")
)

// InsufficientStockError carries the kilogram figures a cashier needs to
// correct the request.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	RequestedKg decimal.Decimal
	AvailableKg decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s kg, available %s kg",
		e.ProductName, e.RequestedKg.String(), e.AvailableKg.String())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InsufficientPaymentError reports a cash tender below the amount due.
type InsufficientPaymentError struct {
	Total    decimal.Decimal
	Tendered decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: total %s, tendered %s", e.Total.String(), e.Tendered.String())
}

func (e *InsufficientPaymentError) Is(target error) bool {
	return target == ErrInsufficientPayment
}

// Deficit is the amount still owed.
func (e *InsufficientPaymentError) Deficit() decimal.Decimal {
	return e.Total.Sub(e.Tendered)
}

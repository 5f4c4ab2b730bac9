package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"feedpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

const (
	DefaultPerPage = 25
	MaxPerPage     = 200
)

// Receipt is a supplier delivery already resolved to kilograms.
type Receipt struct {
	ProductID  string
	SupplierID string
	QuantityKg decimal.Decimal
	TotalCost  decimal.Decimal
	Note       string
	Actor      string
	At         time.Time
}

// Adjustment replaces a product's stock with a physical count.
type Adjustment struct {
	ProductID string
	CountedKg decimal.Decimal
	Reason    string
	Actor     string
	At        time.Time
}

type Repository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) (domain.ProductPage, error)
	ListActiveProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	CreatePriceHistory(ctx context.Context, entry domain.ProductPriceHistory) error
	ListPriceHistory(ctx context.Context, productID string, limit int) ([]domain.ProductPriceHistory, error)

	ReceiveStock(ctx context.Context, receipt Receipt) (*domain.StockMovement, error)
	AdjustStock(ctx context.Context, adjustment Adjustment) (*domain.StockMovement, error)
	ListStockMovements(ctx context.Context, filter domain.StockMovementFilter) ([]domain.StockMovement, error)

	// CreateSale persists a settled sale, decrements kilogram stock and
	// records its stock movements and income entry in one unit. A repeated
	// idempotency key returns the sale stored first.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	FindSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error)

	CreateLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)

	OpenClosure(ctx context.Context, closure domain.DailyClosure) (*domain.DailyClosure, error)
	GetOpenClosure(ctx context.Context) (*domain.DailyClosure, error)
	CloseClosure(ctx context.Context, closure domain.DailyClosure) (*domain.DailyClosure, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	SetUserActive(ctx context.Context, username string, active bool) error
}

// NormalizePage clamps page and per-page to their defaults and bounds.
func NormalizePage(page int, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBagWeightKg is the bag weight assumed when a loose product is sold
// by the bag and no weight_per_bag is recorded.
var DefaultBagWeightKg = decimal.NewFromInt(50)

// UnitType is the unit a product's price and cost price are denominated in.
type UnitType string

const (
	UnitTypeBag   UnitType = "bag"
	UnitTypeLoose UnitType = "loose"
)

func (u UnitType) Valid() bool {
	return u == UnitTypeBag || u == UnitTypeLoose
}

// SaleUnit is the unit a customer buys in, independent of the product's UnitType.
type SaleUnit string

const (
	SaleUnitBag SaleUnit = "bag"
	SaleUnitKg  SaleUnit = "kg"
)

func (u SaleUnit) Valid() bool {
	return u == SaleUnitBag || u == SaleUnitKg
}

// Product is a catalog entry. StockQuantity is always kilograms.
type Product struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	SupplierID    string              `json:"supplier_id,omitempty"`
	UnitType      UnitType            `json:"unit_type"`
	Price         decimal.Decimal     `json:"price"`
	CostPrice     decimal.Decimal     `json:"cost_price"`
	WeightPerBag  decimal.NullDecimal `json:"weight_per_bag"`
	StockQuantity decimal.Decimal     `json:"stock_quantity"`
	ReorderLevel  decimal.NullDecimal `json:"reorder_level"`
	ExpiryDate    *time.Time          `json:"expiry_date,omitempty"`
	Active        bool                `json:"active"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// LowStock reports whether stock sits at or below the reorder level.
func (p Product) LowStock() bool {
	return p.ReorderLevel.Valid && p.StockQuantity.LessThanOrEqual(p.ReorderLevel.Decimal)
}

type ProductCreateRequest struct {
	Name         string           `json:"name" validate:"required,max=120"`
	Category     string           `json:"category" validate:"required,max=60"`
	SupplierID   string           `json:"supplier_id"`
	UnitType     UnitType         `json:"unit_type" validate:"required,oneof=bag loose"`
	Price        decimal.Decimal  `json:"price"`
	CostPrice    decimal.Decimal  `json:"cost_price"`
	WeightPerBag *decimal.Decimal `json:"weight_per_bag,omitempty"`
	InitialStock decimal.Decimal  `json:"initial_stock_kg"`
	ReorderLevel *decimal.Decimal `json:"reorder_level,omitempty"`
	ExpiryDate   string           `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type ProductUpdateRequest struct {
	Name         *string          `json:"name,omitempty" validate:"omitempty,max=120"`
	Category     *string          `json:"category,omitempty" validate:"omitempty,max=60"`
	SupplierID   *string          `json:"supplier_id,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	WeightPerBag *decimal.Decimal `json:"weight_per_bag,omitempty"`
	ReorderLevel *decimal.Decimal `json:"reorder_level,omitempty"`
	ExpiryDate   *string          `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Active       *bool            `json:"active,omitempty"`
}

// ProductFilter narrows a catalog listing. Page is 1-based.
type ProductFilter struct {
	Search       string
	Category     string
	UnitType     UnitType
	LowStockOnly bool
	IncludeAll   bool
	Page         int
	PerPage      int
}

type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	Total    int       `json:"total"`
}

type ProductPriceHistory struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	OldPrice     decimal.Decimal `json:"old_price"`
	NewPrice     decimal.Decimal `json:"new_price"`
	OldCostPrice decimal.Decimal `json:"old_cost_price"`
	NewCostPrice decimal.Decimal `json:"new_cost_price"`
	ChangedBy    string          `json:"changed_by"`
	ChangedAt    time.Time       `json:"changed_at"`
}

// Quote previews one prospective cart line without touching a cart.
type Quote struct {
	ProductID          string          `json:"product_id"`
	Unit               SaleUnit        `json:"unit"`
	Quantity           decimal.Decimal `json:"quantity"`
	EffectiveUnitPrice decimal.Decimal `json:"effective_unit_price"`
	LineTotal          decimal.Decimal `json:"line_total"`
	StockConsumedKg    decimal.Decimal `json:"stock_consumed_kg"`
	AvailableKg        decimal.Decimal `json:"available_kg"`
	Sufficient         bool            `json:"sufficient"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// PaymentMethod selects how a sale is paid.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentMobileMoney  PaymentMethod = "mobile_money"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCard         PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentMobileMoney, PaymentBankTransfer, PaymentCard:
		return true
	default:
		return false
	}
}

// Label is the human-readable payment method name printed on invoices.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentCash:
		return "Cash"
	case PaymentMobileMoney:
		return "Mobile Money"
	case PaymentBankTransfer:
		return "Bank Transfer"
	case PaymentCard:
		return "Card"
	default:
		return string(m)
	}
}

// Customer is the optional contact captured at checkout.
type Customer struct {
	Name  string `json:"name,omitempty" validate:"omitempty,max=120"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// SaleLineItem is a point-in-time record of one settled cart line. Its
// price and cost fields never change after the sale is created.
type SaleLineItem struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            SaleUnit        `json:"unit"`
	PriceAtSale     decimal.Decimal `json:"price_at_sale"`
	CostPriceAtSale decimal.Decimal `json:"cost_price_at_sale"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	StockConsumedKg decimal.Decimal `json:"stock_consumed_kg"`
}

// Sale is the settled, immutable sale record.
type Sale struct {
	ID               string          `json:"id"`
	IdempotencyKey   string          `json:"idempotency_key,omitempty"`
	CashierUsername  string          `json:"cashier_username,omitempty"`
	Customer         Customer        `json:"customer"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentLabel     string          `json:"payment_label"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountTotal    decimal.Decimal `json:"discount_total"`
	Total            decimal.Decimal `json:"total"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	Change           decimal.Decimal `json:"change"`
	Items            []SaleLineItem  `json:"items"`
	CreatedAt        time.Time       `json:"created_at"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type InvoiceResponse struct {
	SaleID   string `json:"sale_id"`
	Text     string `json:"text"`
	FileName string `json:"file_name"`
}

// Cart session requests.

type CartLineRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Unit      SaleUnit        `json:"unit" validate:"required,oneof=bag kg"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type CartQuantityRequest struct {
	Unit  SaleUnit        `json:"unit" validate:"required,oneof=bag kg"`
	Delta decimal.Decimal `json:"delta"`
}

type CartLineDiscountRequest struct {
	Unit   SaleUnit        `json:"unit" validate:"required,oneof=bag kg"`
	Amount decimal.Decimal `json:"amount"`
}

type CartDiscountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type PaymentRequest struct {
	Method    PaymentMethod   `json:"method" validate:"required,oneof=cash mobile_money bank_transfer card"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty" validate:"max=80"`
}

type SettleRequest struct {
	Payment        PaymentRequest `json:"payment"`
	Customer       Customer       `json:"customer"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" validate:"max=80"`
}

type ChangePreview struct {
	Total      decimal.Decimal `json:"total"`
	Tendered   decimal.Decimal `json:"tendered"`
	Change     decimal.Decimal `json:"change"`
	Deficit    decimal.Decimal `json:"deficit"`
	Sufficient bool            `json:"sufficient"`
}

// Stock.

type StockMovementType string

const (
	StockMovementSale       StockMovementType = "sale"
	StockMovementReceipt    StockMovementType = "receipt"
	StockMovementAdjustment StockMovementType = "adjustment"
)

// StockMovement records a signed kilogram change to a product's stock.
type StockMovement struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	Type        StockMovementType `json:"type"`
	QuantityKg  decimal.Decimal   `json:"quantity_kg"`
	BalanceKg   decimal.Decimal   `json:"balance_kg"`
	Reference   string            `json:"reference,omitempty"`
	Note        string            `json:"note,omitempty"`
	Actor       string            `json:"actor,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type StockMovementFilter struct {
	ProductID string
	Type      StockMovementType
	From      time.Time
	To        time.Time
	Limit     int
}

// StockReceipt is incoming stock bought from a supplier.
type StockReceipt struct {
	ProductID  string          `json:"product_id" validate:"required"`
	SupplierID string          `json:"supplier_id"`
	Unit       SaleUnit        `json:"unit" validate:"required,oneof=bag kg"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Note       string          `json:"note,omitempty" validate:"max=200"`
}

type StockAdjustmentRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	CountedKg decimal.Decimal `json:"counted_kg"`
	Reason    string          `json:"reason" validate:"required,max=200"`
}

type StockMovementListResponse struct {
	Movements []StockMovement `json:"movements"`
}

// Ledger.

type LedgerEntryType string

const (
	LedgerIncome  LedgerEntryType = "income"
	LedgerExpense LedgerEntryType = "expense"
)

// LedgerEntry is one financial transaction in the business ledger.
type LedgerEntry struct {
	ID            string          `json:"id"`
	Type          LedgerEntryType `json:"type"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	Description   string          `json:"description,omitempty"`
	Actor         string          `json:"actor,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type LedgerEntryRequest struct {
	Type          LedgerEntryType `json:"type" validate:"required,oneof=income expense"`
	Category      string          `json:"category" validate:"required,max=60"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"omitempty,oneof=cash mobile_money bank_transfer card"`
	Reference     string          `json:"reference,omitempty" validate:"max=80"`
	Description   string          `json:"description,omitempty" validate:"max=200"`
}

type LedgerFilter struct {
	Type  LedgerEntryType
	From  time.Time
	To    time.Time
	Limit int
}

type LedgerListResponse struct {
	Entries []LedgerEntry `json:"entries"`
}

// Daily closure.

const (
	ClosureStatusOpen   = "open"
	ClosureStatusClosed = "closed"
)

// DailyClosure is one cash-drawer day: opened with a float, closed with a
// physical count that is compared against the expected drawer.
type DailyClosure struct {
	ID           string           `json:"id"`
	BusinessDate string           `json:"business_date"`
	OpenedBy     string           `json:"opened_by"`
	OpeningFloat decimal.Decimal  `json:"opening_float"`
	CashSales    decimal.Decimal  `json:"cash_sales"`
	NonCashSales decimal.Decimal  `json:"non_cash_sales"`
	ExpectedCash decimal.Decimal  `json:"expected_cash"`
	CountedCash  *decimal.Decimal `json:"counted_cash,omitempty"`
	Variance     *decimal.Decimal `json:"variance,omitempty"`
	Status       string           `json:"status"`
	Notes        string           `json:"notes,omitempty"`
	ClosedBy     string           `json:"closed_by,omitempty"`
	OpenedAt     time.Time        `json:"opened_at"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
}

type ClosureOpenRequest struct {
	OpeningFloat decimal.Decimal `json:"opening_float"`
}

type ClosureCloseRequest struct {
	CountedCash *decimal.Decimal `json:"counted_cash"`
	Notes       string           `json:"notes" validate:"max=200"`
}

// Suppliers.

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"max=32"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"max=200"`
}

type SupplierUpdateRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=200"`
	Active  *bool   `json:"active,omitempty"`
}

// Staff.

type StaffCreateRequest struct {
	Username string `json:"username" validate:"required,min=4,max=40"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin cashier"`
}

type StaffUpdateRequest struct {
	Active   *bool   `json:"active,omitempty"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

package memory

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/store"
	"feedpos/backend/internal/xid"
)

// Store is the injectable in-memory repository used for demo mode and
// tests. Every returned value is a copy.
type Store struct {
	mu                 sync.RWMutex
	products           map[string]domain.Product
	priceHistoryByID   map[string][]domain.ProductPriceHistory
	movements          []domain.StockMovement
	salesByID          map[string]*domain.Sale
	salesByIdem        map[string]*domain.Sale
	ledger             []domain.LedgerEntry
	closuresByID       map[string]domain.DailyClosure
	openClosureID      string
	suppliersByID      map[string]domain.Supplier
	auditLogs          []domain.AuditLog
	usersByUsername    map[string]domain.UserAccount
	defaultCredentials bool
}

func New() *Store {
	return &Store{
		products:         make(map[string]domain.Product),
		priceHistoryByID: make(map[string][]domain.ProductPriceHistory),
		movements:        make([]domain.StockMovement, 0, 128),
		salesByID:        make(map[string]*domain.Sale),
		salesByIdem:      make(map[string]*domain.Sale),
		ledger:           make([]domain.LedgerEntry, 0, 128),
		closuresByID:     make(map[string]domain.DailyClosure),
		suppliersByID:    make(map[string]domain.Supplier),
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store holding a demo feeds catalog, two suppliers
// and an admin and a cashier account. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD with dev fallbacks.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, supplier := range []domain.Supplier{
		{ID: "sup-unga", Name: "Unga Farm Care", Phone: "+254700100200", Email: "orders@ungafarmcare.example", Address: "Enterprise Road, Nairobi"},
		{ID: "sup-sigma", Name: "Sigma Feeds", Phone: "+254711300400", Address: "Thika Road, Ruiru"},
	} {
		supplier.Active = true
		supplier.CreatedAt = now
		s.suppliersByID[supplier.ID] = supplier
	}

	expired := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	for _, p := range []domain.Product{
		{ID: "prd-layers-mash", Name: "Layers Mash 70kg", Category: "poultry", SupplierID: "sup-unga", UnitType: domain.UnitTypeBag, Price: dec("3400"), CostPrice: dec("2950"), WeightPerBag: nullDec("70"), StockQuantity: dec("1400"), ReorderLevel: nullDec("280")},
		{ID: "prd-chick-mash", Name: "Chick Mash 50kg", Category: "poultry", SupplierID: "sup-unga", UnitType: domain.UnitTypeBag, Price: dec("3600"), CostPrice: dec("3100"), WeightPerBag: nullDec("50"), StockQuantity: dec("500"), ReorderLevel: nullDec("150")},
		{ID: "prd-dairy-meal", Name: "Dairy Meal 70kg", Category: "cattle", SupplierID: "sup-sigma", UnitType: domain.UnitTypeBag, Price: dec("2900"), CostPrice: dec("2500"), WeightPerBag: nullDec("70"), StockQuantity: dec("700"), ReorderLevel: nullDec("210")},
		{ID: "prd-pig-finisher", Name: "Pig Finisher 50kg", Category: "pigs", SupplierID: "sup-sigma", UnitType: domain.UnitTypeBag, Price: dec("2750"), CostPrice: dec("2380"), WeightPerBag: nullDec("50"), StockQuantity: dec("150"), ReorderLevel: nullDec("200")},
		{ID: "prd-calf-pellets", Name: "Calf Pellets", Category: "cattle", SupplierID: "sup-sigma", UnitType: domain.UnitTypeBag, Price: dec("2100"), CostPrice: dec("1800"), StockQuantity: dec("300")},
		{ID: "prd-maize-bran", Name: "Maize Bran", Category: "by-products", UnitType: domain.UnitTypeLoose, Price: dec("28"), CostPrice: dec("21"), StockQuantity: dec("900"), ReorderLevel: nullDec("200")},
		{ID: "prd-wheat-pollard", Name: "Wheat Pollard", Category: "by-products", UnitType: domain.UnitTypeLoose, Price: dec("32"), CostPrice: dec("25"), WeightPerBag: nullDec("50"), StockQuantity: dec("600"), ReorderLevel: nullDec("150")},
		{ID: "prd-fish-meal", Name: "Fish Meal", Category: "supplements", UnitType: domain.UnitTypeLoose, Price: dec("140"), CostPrice: dec("110"), StockQuantity: dec("80"), ReorderLevel: nullDec("50")},
		{ID: "prd-layers-pellets-0925", Name: "Layers Pellets (batch 0925)", Category: "poultry", SupplierID: "sup-unga", UnitType: domain.UnitTypeBag, Price: dec("3300"), CostPrice: dec("2900"), WeightPerBag: nullDec("50"), StockQuantity: dec("100"), ExpiryDate: &expired},
	} {
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	s.usersByUsername, s.defaultCredentials = seedUsers(now)
	return s
}

// DefaultCredentials reports whether the seeded accounts fell back to the
// built-in development passwords.
func (s *Store) DefaultCredentials() bool {
	return s.defaultCredentials
}

func seedUsers(now time.Time) (map[string]domain.UserAccount, bool) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	usedDefaults := os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == ""

	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("memory store: hash seed password for %s: %v", u.username, err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users, usedDefaults
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Catalog.

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) (domain.ProductPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page, perPage := store.NormalizePage(filter.Page, filter.PerPage)
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	category := strings.ToLower(strings.TrimSpace(filter.Category))

	matched := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !filter.IncludeAll && !p.Active {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(strings.ToLower(p.Category), search) {
			continue
		}
		if category != "" && strings.ToLower(p.Category) != category {
			continue
		}
		if filter.UnitType != "" && p.UnitType != filter.UnitType {
			continue
		}
		if filter.LowStockOnly && !p.LowStock() {
			continue
		}
		matched = append(matched, cloneProduct(p))
	}
	sortProducts(matched)

	result := domain.ProductPage{
		Products: []domain.Product{},
		Page:     page,
		PerPage:  perPage,
		Total:    len(matched),
	}
	start := (page - 1) * perPage
	if start < len(matched) {
		end := min(start+perPage, len(matched))
		result.Products = matched[start:end]
	}
	return result, nil
}

func (s *Store) ListActiveProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Active {
			products = append(products, cloneProduct(p))
		}
	}
	sortProducts(products)
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := cloneProduct(p)
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.Active {
			result[id] = cloneProduct(p)
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt
	product.Active = true
	s.products[product.ID] = cloneProduct(product)

	if product.StockQuantity.IsPositive() {
		s.movements = append(s.movements, domain.StockMovement{
			ID:          xid.New("mov"),
			ProductID:   product.ID,
			ProductName: product.Name,
			Type:        domain.StockMovementReceipt,
			QuantityKg:  product.StockQuantity,
			BalanceKg:   product.StockQuantity,
			Note:        "opening stock",
			CreatedAt:   product.CreatedAt,
		})
	}

	created := cloneProduct(product)
	return &created, nil
}

// UpdateProduct replaces catalog fields. Stock is owned by receipts,
// adjustments and sales and is never taken from the argument.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.StockQuantity = current.StockQuantity
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) CreatePriceHistory(_ context.Context, entry domain.ProductPriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	s.priceHistoryByID[entry.ProductID] = append(s.priceHistoryByID[entry.ProductID], entry)
	return nil
}

func (s *Store) ListPriceHistory(_ context.Context, productID string, limit int) ([]domain.ProductPriceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.priceHistoryByID[productID]
	result := make([]domain.ProductPriceHistory, len(history))
	copy(result, history)
	slices.SortFunc(result, func(a, b domain.ProductPriceHistory) int {
		return newestFirst(a.ChangedAt, b.ChangedAt, a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Stock.

func (s *Store) ReceiveStock(_ context.Context, receipt store.Receipt) (*domain.StockMovement, error) {
	if receipt.ProductID == "" || !receipt.QuantityKg.IsPositive() || receipt.TotalCost.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	if receipt.At.IsZero() {
		receipt.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[receipt.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if receipt.SupplierID != "" {
		if _, ok := s.suppliersByID[receipt.SupplierID]; !ok {
			return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, receipt.SupplierID)
		}
	}

	product.StockQuantity = product.StockQuantity.Add(receipt.QuantityKg)
	product.UpdatedAt = receipt.At
	s.products[product.ID] = product

	movement := domain.StockMovement{
		ID:          xid.New("mov"),
		ProductID:   product.ID,
		ProductName: product.Name,
		Type:        domain.StockMovementReceipt,
		QuantityKg:  receipt.QuantityKg,
		BalanceKg:   product.StockQuantity,
		Reference:   receipt.SupplierID,
		Note:        receipt.Note,
		Actor:       receipt.Actor,
		CreatedAt:   receipt.At,
	}
	s.movements = append(s.movements, movement)

	if receipt.TotalCost.IsPositive() {
		s.ledger = append(s.ledger, domain.LedgerEntry{
			ID:          xid.New("txn"),
			Type:        domain.LedgerExpense,
			Category:    "stock_purchase",
			Amount:      receipt.TotalCost,
			Reference:   movement.ID,
			Description: fmt.Sprintf("%s kg %s", receipt.QuantityKg.String(), product.Name),
			Actor:       receipt.Actor,
			CreatedAt:   receipt.At,
		})
	}
	return &movement, nil
}

func (s *Store) AdjustStock(_ context.Context, adjustment store.Adjustment) (*domain.StockMovement, error) {
	if adjustment.ProductID == "" || adjustment.CountedKg.IsNegative() || strings.TrimSpace(adjustment.Reason) == "" {
		return nil, store.ErrInvalidInput
	}
	if adjustment.At.IsZero() {
		adjustment.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[adjustment.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}
	delta := adjustment.CountedKg.Sub(product.StockQuantity)
	product.StockQuantity = adjustment.CountedKg
	product.UpdatedAt = adjustment.At
	s.products[product.ID] = product

	movement := domain.StockMovement{
		ID:          xid.New("mov"),
		ProductID:   product.ID,
		ProductName: product.Name,
		Type:        domain.StockMovementAdjustment,
		QuantityKg:  delta,
		BalanceKg:   product.StockQuantity,
		Note:        adjustment.Reason,
		Actor:       adjustment.Actor,
		CreatedAt:   adjustment.At,
	}
	s.movements = append(s.movements, movement)
	return &movement, nil
}

func (s *Store) ListStockMovements(_ context.Context, filter domain.StockMovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	result := make([]domain.StockMovement, 0, limit)
	for _, m := range s.movements {
		if filter.ProductID != "" && m.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if !inWindow(m.CreatedAt, filter.From, filter.To) {
			continue
		}
		if p, ok := s.products[m.ProductID]; ok {
			m.ProductName = p.Name
		}
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.StockMovement) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Sales.

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.IdempotencyKey == "" {
		return nil, store.ErrInvalidInput
	}
	if existing, ok := s.salesByIdem[sale.IdempotencyKey]; ok {
		return cloneSale(existing), nil
	}
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	required := map[string]decimal.Decimal{}
	for _, item := range sale.Items {
		if !item.Quantity.IsPositive() || !item.StockConsumedKg.IsPositive() {
			return nil, store.ErrInvalidInput
		}
		product, exists := s.products[item.ProductID]
		if !exists || !product.Active {
			return nil, fmt.Errorf("%w: product %s unavailable", store.ErrNotFound, item.ProductID)
		}
		required[item.ProductID] = required[item.ProductID].Add(item.StockConsumedKg)
	}
	for productID, kg := range required {
		product := s.products[productID]
		if kg.GreaterThan(product.StockQuantity) {
			return nil, fmt.Errorf("%w: %s needs %s kg, %s kg available",
				store.ErrInsufficientStock, product.Name, kg.String(), product.StockQuantity.String())
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	for _, item := range sale.Items {
		product := s.products[item.ProductID]
		product.StockQuantity = product.StockQuantity.Sub(item.StockConsumedKg)
		product.UpdatedAt = sale.CreatedAt
		s.products[product.ID] = product
		s.movements = append(s.movements, domain.StockMovement{
			ID:          xid.New("mov"),
			ProductID:   product.ID,
			ProductName: product.Name,
			Type:        domain.StockMovementSale,
			QuantityKg:  item.StockConsumedKg.Neg(),
			BalanceKg:   product.StockQuantity,
			Reference:   sale.ID,
			Note:        fmt.Sprintf("%s %s", item.Quantity.String(), item.Unit),
			Actor:       sale.CashierUsername,
			CreatedAt:   sale.CreatedAt,
		})
	}
	s.ledger = append(s.ledger, domain.LedgerEntry{
		ID:            xid.New("txn"),
		Type:          domain.LedgerIncome,
		Category:      "sales",
		Amount:        sale.Total,
		PaymentMethod: sale.PaymentMethod,
		Reference:     sale.ID,
		Description:   fmt.Sprintf("sale %s", sale.ID),
		Actor:         sale.CashierUsername,
		CreatedAt:     sale.CreatedAt,
	})

	stored := cloneSale(&sale)
	s.salesByID[sale.ID] = stored
	s.salesByIdem[sale.IdempotencyKey] = stored
	return cloneSale(stored), nil
}

func (s *Store) FindSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) FindSaleByIdempotency(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if !inWindow(sale.CreatedAt, from, to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Ledger.

func (s *Store) CreateLedgerEntry(_ context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.Type != domain.LedgerIncome && entry.Type != domain.LedgerExpense {
		return nil, store.ErrInvalidInput
	}
	if !entry.Amount.IsPositive() || strings.TrimSpace(entry.Category) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("txn")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.ledger = append(s.ledger, entry)
	created := entry
	return &created, nil
}

func (s *Store) ListLedgerEntries(_ context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LedgerEntry, 0, 64)
	for _, entry := range s.ledger {
		if filter.Type != "" && entry.Type != filter.Type {
			continue
		}
		if !inWindow(entry.CreatedAt, filter.From, filter.To) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.LedgerEntry) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Daily closures.

func (s *Store) OpenClosure(_ context.Context, closure domain.DailyClosure) (*domain.DailyClosure, error) {
	if closure.BusinessDate == "" || closure.OpeningFloat.IsNegative() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openClosureID != "" {
		return nil, fmt.Errorf("%w: a closure is already open", store.ErrConflict)
	}
	for _, existing := range s.closuresByID {
		if existing.BusinessDate == closure.BusinessDate {
			return nil, fmt.Errorf("%w: %s is already closed", store.ErrConflict, closure.BusinessDate)
		}
	}
	if closure.ID == "" {
		closure.ID = xid.New("close")
	}
	if closure.OpenedAt.IsZero() {
		closure.OpenedAt = time.Now().UTC()
	}
	closure.Status = domain.ClosureStatusOpen
	closure.CountedCash = nil
	closure.Variance = nil
	closure.ClosedAt = nil

	s.closuresByID[closure.ID] = closure
	s.openClosureID = closure.ID
	opened := cloneClosure(closure)
	return &opened, nil
}

func (s *Store) GetOpenClosure(_ context.Context) (*domain.DailyClosure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	closure, ok := s.closuresByID[s.openClosureID]
	if s.openClosureID == "" || !ok {
		return nil, store.ErrNotFound
	}
	current := cloneClosure(closure)
	return &current, nil
}

func (s *Store) CloseClosure(_ context.Context, closure domain.DailyClosure) (*domain.DailyClosure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openClosureID == "" || s.openClosureID != closure.ID {
		return nil, store.ErrNotFound
	}
	if closure.ClosedAt == nil {
		now := time.Now().UTC()
		closure.ClosedAt = &now
	}
	closure.Status = domain.ClosureStatusClosed
	s.closuresByID[closure.ID] = cloneClosure(closure)
	s.openClosureID = ""
	closed := cloneClosure(closure)
	return &closed, nil
}

// Suppliers.

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	supplier.Active = true
	s.suppliersByID[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return suppliers, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.suppliersByID[supplier.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	supplier.CreatedAt = current.CreatedAt
	s.suppliersByID[supplier.ID] = supplier
	updated := supplier
	return &updated, nil
}

// Audit.

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if !inWindow(entry.CreatedAt, from, to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Staff.

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) SetUserActive(_ context.Context, username string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Active = active
	s.usersByUsername[username] = user
	return nil
}

func validateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Category) == "" || !p.UnitType.Valid() {
		return store.ErrInvalidInput
	}
	if !p.Price.IsPositive() || p.CostPrice.IsNegative() || p.StockQuantity.IsNegative() {
		return store.ErrInvalidInput
	}
	if p.WeightPerBag.Valid && !p.WeightPerBag.Decimal.IsPositive() {
		return store.ErrInvalidInput
	}
	if p.ReorderLevel.Valid && p.ReorderLevel.Decimal.IsNegative() {
		return store.ErrInvalidInput
	}
	return nil
}

func sortProducts(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmp.Or(cmp.Compare(a.Category, b.Category), cmp.Compare(a.Name, b.Name))
	})
}

func newestFirst(a time.Time, b time.Time, aID string, bID string) int {
	if c := b.Compare(a); c != 0 {
		return c
	}
	return cmp.Compare(bID, aID)
}

// inWindow reports whether t is in [from, to); zero bounds are open.
func inWindow(t time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	if src.ExpiryDate != nil {
		expiry := src.ExpiryDate.UTC()
		dup.ExpiryDate = &expiry
	}
	return dup
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleLineItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}

func cloneClosure(src domain.DailyClosure) domain.DailyClosure {
	dup := src
	if src.CountedCash != nil {
		counted := *src.CountedCash
		dup.CountedCash = &counted
	}
	if src.Variance != nil {
		variance := *src.Variance
		dup.Variance = &variance
	}
	if src.ClosedAt != nil {
		closedAt := *src.ClosedAt
		dup.ClosedAt = &closedAt
	}
	return dup
}

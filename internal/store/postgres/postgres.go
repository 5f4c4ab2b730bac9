package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/store"
	"feedpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

const productColumns = `id, name, category, supplier_id, unit_type, price, cost_price, weight_per_bag,
	stock_quantity, reorder_level, expiry_date, active, created_at, updated_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var supplierID sql.NullString
	var unitType string
	var expiry sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &supplierID, &unitType, &p.Price, &p.CostPrice, &p.WeightPerBag,
		&p.StockQuantity, &p.ReorderLevel, &expiry, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	p.SupplierID = supplierID.String
	p.UnitType = domain.UnitType(unitType)
	if expiry.Valid {
		e := dateUTC(expiry.Time)
		p.ExpiryDate = &e
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) (domain.ProductPage, error) {
	page, perPage := store.NormalizePage(filter.Page, filter.PerPage)

	where := []string{"1=1"}
	args := make([]any, 0, 6)
	add := func(clause string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.IncludeAll {
		where = append(where, "active = true")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		add("(name ILIKE $%[1]d OR category ILIKE $%[1]d)", "%"+search+"%")
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		add("lower(category) = lower($%d)", category)
	}
	if filter.UnitType != "" {
		add("unit_type = $%d", string(filter.UnitType))
	}
	if filter.LowStockOnly {
		where = append(where, "reorder_level IS NOT NULL AND stock_quantity <= reorder_level")
	}
	clause := strings.Join(where, " AND ")

	result := domain.ProductPage{Products: []domain.Product{}, Page: page, PerPage: perPage}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products WHERE `+clause, args...).Scan(&result.Total); err != nil {
		return domain.ProductPage{}, err
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE %s
		ORDER BY category, name
		LIMIT $%d OFFSET $%d
	`, productColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return domain.ProductPage{}, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return domain.ProductPage{}, err
		}
		result.Products = append(result.Products, p)
	}
	if err := rows.Err(); err != nil {
		return domain.ProductPage{}, err
	}
	return result, nil
}

func (s *Store) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true AND id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	product.Active = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, category, supplier_id, unit_type, price, cost_price, weight_per_bag,
			stock_quantity, reorder_level, expiry_date, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
	`, product.ID, product.Name, product.Category, nullIfEmpty(product.SupplierID), string(product.UnitType),
		product.Price, product.CostPrice, product.WeightPerBag, product.StockQuantity, product.ReorderLevel,
		nullDate(product.ExpiryDate), product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, product.SupplierID)
		}
		return nil, err
	}

	if product.StockQuantity.IsPositive() {
		if err := insertMovement(ctx, tx, domain.StockMovement{
			ID:         xid.New("mov"),
			ProductID:  product.ID,
			Type:       domain.StockMovementReceipt,
			QuantityKg: product.StockQuantity,
			BalanceKg:  product.StockQuantity,
			Note:       "opening stock",
			CreatedAt:  product.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, supplier_id = $4, price = $5, cost_price = $6, weight_per_bag = $7,
			reorder_level = $8, expiry_date = $9, active = $10, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Category, nullIfEmpty(product.SupplierID), product.Price, product.CostPrice,
		product.WeightPerBag, product.ReorderLevel, nullDate(product.ExpiryDate), product.Active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, product.SupplierID)
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) CreatePriceHistory(ctx context.Context, entry domain.ProductPriceHistory) error {
	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_price_history (id, product_id, old_price, new_price, old_cost_price, new_cost_price, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ProductID, entry.OldPrice, entry.NewPrice, entry.OldCostPrice, entry.NewCostPrice, entry.ChangedBy, entry.ChangedAt)
	return err
}

func (s *Store) ListPriceHistory(ctx context.Context, productID string, limit int) ([]domain.ProductPriceHistory, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, old_price, new_price, old_cost_price, new_cost_price, changed_by, changed_at
		FROM product_price_history
		WHERE product_id = $1
		ORDER BY changed_at DESC, id DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.ProductPriceHistory, 0, limit)
	for rows.Next() {
		var h domain.ProductPriceHistory
		if err := rows.Scan(&h.ID, &h.ProductID, &h.OldPrice, &h.NewPrice, &h.OldCostPrice, &h.NewCostPrice, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// Stock.

func (s *Store) ReceiveStock(ctx context.Context, receipt store.Receipt) (*domain.StockMovement, error) {
	if receipt.ProductID == "" || !receipt.QuantityKg.IsPositive() || receipt.TotalCost.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	if receipt.At.IsZero() {
		receipt.At = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if receipt.SupplierID != "" {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)`, receipt.SupplierID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, receipt.SupplierID)
		}
	}

	var name string
	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = $3
		WHERE id = $1
		RETURNING name, stock_quantity
	`, receipt.ProductID, receipt.QuantityKg, receipt.At).Scan(&name, &balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	movement := domain.StockMovement{
		ID:          xid.New("mov"),
		ProductID:   receipt.ProductID,
		ProductName: name,
		Type:        domain.StockMovementReceipt,
		QuantityKg:  receipt.QuantityKg,
		BalanceKg:   balance,
		Reference:   receipt.SupplierID,
		Note:        receipt.Note,
		Actor:       receipt.Actor,
		CreatedAt:   receipt.At,
	}
	if err := insertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}
	if receipt.TotalCost.IsPositive() {
		if err := insertLedgerEntry(ctx, tx, domain.LedgerEntry{
			ID:          xid.New("txn"),
			Type:        domain.LedgerExpense,
			Category:    "stock_purchase",
			Amount:      receipt.TotalCost,
			Reference:   movement.ID,
			Description: fmt.Sprintf("%s kg %s", receipt.QuantityKg.String(), name),
			Actor:       receipt.Actor,
			CreatedAt:   receipt.At,
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &movement, nil
}

func (s *Store) AdjustStock(ctx context.Context, adjustment store.Adjustment) (*domain.StockMovement, error) {
	if adjustment.ProductID == "" || adjustment.CountedKg.IsNegative() || strings.TrimSpace(adjustment.Reason) == "" {
		return nil, store.ErrInvalidInput
	}
	if adjustment.At.IsZero() {
		adjustment.At = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	var current decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT name, stock_quantity FROM products WHERE id = $1 FOR UPDATE`, adjustment.ProductID).Scan(&name, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET stock_quantity = $2, updated_at = $3 WHERE id = $1
	`, adjustment.ProductID, adjustment.CountedKg, adjustment.At); err != nil {
		return nil, err
	}

	movement := domain.StockMovement{
		ID:          xid.New("mov"),
		ProductID:   adjustment.ProductID,
		ProductName: name,
		Type:        domain.StockMovementAdjustment,
		QuantityKg:  adjustment.CountedKg.Sub(current),
		BalanceKg:   adjustment.CountedKg,
		Note:        adjustment.Reason,
		Actor:       adjustment.Actor,
		CreatedAt:   adjustment.At,
	}
	if err := insertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &movement, nil
}

func (s *Store) ListStockMovements(ctx context.Context, filter domain.StockMovementFilter) ([]domain.StockMovement, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	where := []string{"1=1"}
	args := make([]any, 0, 5)
	add := func(clause string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.ProductID != "" {
		add("m.product_id = $%d", filter.ProductID)
	}
	if filter.Type != "" {
		add("m.type = $%d", string(filter.Type))
	}
	if !filter.From.IsZero() {
		add("m.created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("m.created_at < $%d", filter.To)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT m.id, m.product_id, p.name, m.type, m.quantity_kg, m.balance_kg, m.reference, m.note, m.actor, m.created_at
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id
		WHERE %s
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $%d
	`, strings.Join(where, " AND "), len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, limit)
	for rows.Next() {
		var m domain.StockMovement
		var movementType string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProductName, &movementType, &m.QuantityKg, &m.BalanceKg, &m.Reference, &m.Note, &m.Actor, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = domain.StockMovementType(movementType)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// Sales.

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.IdempotencyKey == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if existing, err := s.FindSaleByIdempotency(ctx, sale.IdempotencyKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	required := map[string]decimal.Decimal{}
	for _, item := range sale.Items {
		if !item.Quantity.IsPositive() || !item.StockConsumedKg.IsPositive() {
			return nil, store.ErrInvalidInput
		}
		required[item.ProductID] = required[item.ProductID].Add(item.StockConsumedKg)
	}
	productIDs := make([]string, 0, len(required))
	for id := range required {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, stock_quantity
		FROM products
		WHERE active = true AND id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, productIDs)
	if err != nil {
		return nil, err
	}
	type stockState struct {
		name    string
		balance decimal.Decimal
	}
	stock := make(map[string]*stockState, len(productIDs))
	for rows.Next() {
		var id string
		state := &stockState{}
		if err := rows.Scan(&id, &state.name, &state.balance); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stock[id] = state
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, id := range productIDs {
		state, ok := stock[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %s unavailable", store.ErrNotFound, id)
		}
		if required[id].GreaterThan(state.balance) {
			return nil, fmt.Errorf("%w: %s needs %s kg, %s kg available",
				store.ErrInsufficientStock, state.name, required[id].String(), state.balance.String())
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, idempotency_key, cashier_username, customer_name, customer_phone, payment_method,
			payment_label, payment_reference, subtotal, discount_total, total, amount_paid, change_amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, sale.IdempotencyKey, sale.CashierUsername, sale.Customer.Name, sale.Customer.Phone, string(sale.PaymentMethod),
		sale.PaymentLabel, sale.PaymentReference, sale.Subtotal, sale.DiscountTotal, sale.Total, sale.AmountPaid, sale.Change, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			_ = pgTx.Rollback()
			return s.FindSaleByIdempotency(ctx, sale.IdempotencyKey)
		}
		return nil, err
	}

	for i, item := range sale.Items {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_no, product_id, product_name, quantity, unit, price_at_sale,
				cost_price_at_sale, discount_amount, stock_consumed_kg)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, sale.ID, i+1, item.ProductID, item.ProductName, item.Quantity, string(item.Unit), item.PriceAtSale,
			item.CostPriceAtSale, item.DiscountAmount, item.StockConsumedKg); err != nil {
			return nil, err
		}

		state := stock[item.ProductID]
		state.balance = state.balance.Sub(item.StockConsumedKg)
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = $3 WHERE id = $1
		`, item.ProductID, item.StockConsumedKg, sale.CreatedAt); err != nil {
			return nil, err
		}
		if err := insertMovement(ctx, pgTx, domain.StockMovement{
			ID:         xid.New("mov"),
			ProductID:  item.ProductID,
			Type:       domain.StockMovementSale,
			QuantityKg: item.StockConsumedKg.Neg(),
			BalanceKg:  state.balance,
			Reference:  sale.ID,
			Note:       fmt.Sprintf("%s %s", item.Quantity.String(), item.Unit),
			Actor:      sale.CashierUsername,
			CreatedAt:  sale.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}

	if sale.Total.IsPositive() {
		if err := insertLedgerEntry(ctx, pgTx, domain.LedgerEntry{
			ID:            xid.New("txn"),
			Type:          domain.LedgerIncome,
			Category:      "sales",
			Amount:        sale.Total,
			PaymentMethod: sale.PaymentMethod,
			Reference:     sale.ID,
			Description:   fmt.Sprintf("sale %s", sale.ID),
			Actor:         sale.CashierUsername,
			CreatedAt:     sale.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) FindSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return s.findSale(ctx, "id", id)
}

func (s *Store) FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error) {
	return s.findSale(ctx, "idempotency_key", key)
}

const saleColumns = `id, idempotency_key, cashier_username, customer_name, customer_phone, payment_method,
	payment_label, payment_reference, subtotal, discount_total, total, amount_paid, change_amount, created_at`

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var method string
	err := row.Scan(&sale.ID, &sale.IdempotencyKey, &sale.CashierUsername, &sale.Customer.Name, &sale.Customer.Phone, &method,
		&sale.PaymentLabel, &sale.PaymentReference, &sale.Subtotal, &sale.DiscountTotal, &sale.Total, &sale.AmountPaid, &sale.Change, &sale.CreatedAt)
	sale.PaymentMethod = domain.PaymentMethod(method)
	return sale, err
}

func (s *Store) findSale(ctx context.Context, column string, value string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE `+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	items, err := s.saleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return &sale, nil
}

func (s *Store) saleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLineItem, error) {
	result := make(map[string][]domain.SaleLineItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, quantity, unit, price_at_sale, cost_price_at_sale,
			discount_amount, stock_consumed_kg
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID, unit string
		var item domain.SaleLineItem
		if err := rows.Scan(&saleID, &item.ProductID, &item.ProductName, &item.Quantity, &unit, &item.PriceAtSale,
			&item.CostPriceAtSale, &item.DiscountAmount, &item.StockConsumedKg); err != nil {
			return nil, err
		}
		item.Unit = domain.SaleUnit(unit)
		result[saleID] = append(result[saleID], item)
	}
	return result, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, nullZeroTime(from), nullZeroTime(to), limit)
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	items, err := s.saleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

// Ledger.

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMovement(ctx context.Context, db execer, m domain.StockMovement) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, type, quantity_kg, balance_kg, reference, note, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, m.ID, m.ProductID, string(m.Type), m.QuantityKg, m.BalanceKg, m.Reference, m.Note, m.Actor, m.CreatedAt)
	return err
}

func insertLedgerEntry(ctx context.Context, db execer, e domain.LedgerEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, type, category, amount, payment_method, reference, description, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, string(e.Type), e.Category, e.Amount, string(e.PaymentMethod), e.Reference, e.Description, e.Actor, e.CreatedAt)
	return err
}

func (s *Store) CreateLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.Type != domain.LedgerIncome && entry.Type != domain.LedgerExpense {
		return nil, store.ErrInvalidInput
	}
	if !entry.Amount.IsPositive() || strings.TrimSpace(entry.Category) == "" {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("txn")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := insertLedgerEntry(ctx, s.db, entry); err != nil {
		return nil, err
	}
	created := entry
	return &created, nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, category, amount, payment_method, reference, description, actor, created_at
		FROM ledger_entries
		WHERE ($1 = '' OR type = $1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, string(filter.Type), nullZeroTime(filter.From), nullZeroTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, 64)
	for rows.Next() {
		var e domain.LedgerEntry
		var entryType, method string
		if err := rows.Scan(&e.ID, &entryType, &e.Category, &e.Amount, &method, &e.Reference, &e.Description, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.LedgerEntryType(entryType)
		e.PaymentMethod = domain.PaymentMethod(method)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Daily closures.

const closureColumns = `id, business_date::text, opened_by, opening_float, cash_sales, non_cash_sales, expected_cash,
	counted_cash, variance, status, notes, closed_by, opened_at, closed_at`

func scanClosure(row rowScanner) (domain.DailyClosure, error) {
	var c domain.DailyClosure
	var counted, variance decimal.NullDecimal
	var closedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.BusinessDate, &c.OpenedBy, &c.OpeningFloat, &c.CashSales, &c.NonCashSales, &c.ExpectedCash,
		&counted, &variance, &c.Status, &c.Notes, &c.ClosedBy, &c.OpenedAt, &closedAt); err != nil {
		return domain.DailyClosure{}, err
	}
	if counted.Valid {
		c.CountedCash = &counted.Decimal
	}
	if variance.Valid {
		c.Variance = &variance.Decimal
	}
	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	return c, nil
}

func (s *Store) OpenClosure(ctx context.Context, closure domain.DailyClosure) (*domain.DailyClosure, error) {
	if closure.BusinessDate == "" || closure.OpeningFloat.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	if closure.ID == "" {
		closure.ID = xid.New("close")
	}
	if closure.OpenedAt.IsZero() {
		closure.OpenedAt = time.Now().UTC()
	}

	opened, err := scanClosure(s.db.QueryRowContext(ctx, `
		INSERT INTO daily_closures (id, business_date, opened_by, opening_float, status, opened_at)
		VALUES ($1, $2::date, $3, $4, 'open', $5)
		RETURNING `+closureColumns,
		closure.ID, closure.BusinessDate, closure.OpenedBy, closure.OpeningFloat, closure.OpenedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: closure for %s already exists or another is open", store.ErrConflict, closure.BusinessDate)
		}
		return nil, err
	}
	return &opened, nil
}

func (s *Store) GetOpenClosure(ctx context.Context) (*domain.DailyClosure, error) {
	closure, err := scanClosure(s.db.QueryRowContext(ctx, `SELECT `+closureColumns+` FROM daily_closures WHERE status = 'open'`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &closure, nil
}

func (s *Store) CloseClosure(ctx context.Context, closure domain.DailyClosure) (*domain.DailyClosure, error) {
	closedAt := time.Now().UTC()
	if closure.ClosedAt != nil {
		closedAt = *closure.ClosedAt
	}
	closed, err := scanClosure(s.db.QueryRowContext(ctx, `
		UPDATE daily_closures
		SET cash_sales = $2, non_cash_sales = $3, expected_cash = $4, counted_cash = $5, variance = $6,
			status = 'closed', notes = $7, closed_by = $8, closed_at = $9
		WHERE id = $1 AND status = 'open'
		RETURNING `+closureColumns,
		closure.ID, closure.CashSales, closure.NonCashSales, closure.ExpectedCash, nullDecimal(closure.CountedCash),
		nullDecimal(closure.Variance), closure.Notes, closure.ClosedBy, closedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &closed, nil
}

// Suppliers.

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	supplier.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, email, address, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, supplier.ID, supplier.Name, supplier.Phone, supplier.Email, supplier.Address, supplier.Active, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := supplier
	return &created, nil
}

const supplierColumns = `id, name, phone, email, address, active, created_at`

func scanSupplier(row rowScanner) (domain.Supplier, error) {
	var sup domain.Supplier
	err := row.Scan(&sup.ID, &sup.Name, &sup.Phone, &sup.Email, &sup.Address, &sup.Active, &sup.CreatedAt)
	return sup, err
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	sup, err := scanSupplier(s.db.QueryRowContext(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sup, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}
	updated, err := scanSupplier(s.db.QueryRowContext(ctx, `
		UPDATE suppliers SET name = $2, phone = $3, email = $4, address = $5, active = $6
		WHERE id = $1
		RETURNING `+supplierColumns,
		supplier.ID, supplier.Name, supplier.Phone, supplier.Email, supplier.Address, supplier.Active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// Audit.

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, nullZeroTime(from), nullZeroTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// Staff.

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	return s.updateUser(ctx, `UPDATE users SET password_hash = $2 WHERE username = $1`, username, password)
}

func (s *Store) SetUserActive(ctx context.Context, username string, active bool) error {
	username = strings.ToLower(strings.TrimSpace(username))
	return s.updateUser(ctx, `UPDATE users SET active = $2 WHERE username = $1`, username, active)
}

func (s *Store) updateUser(ctx context.Context, query string, username string, value any) error {
	result, err := s.db.ExecContext(ctx, query, username, value)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
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
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return dateUTC(*val)
}

func nullZeroTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}

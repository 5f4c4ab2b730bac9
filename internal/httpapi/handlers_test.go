package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpos/backend/internal/cache"
	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/obs"
	"feedpos/backend/internal/service"
	"feedpos/backend/internal/store/memory"
)

type testServer struct {
	handler  http.Handler
	registry *prometheus.Registry
}

// newTestAPI wires the full request path over the seeded in-memory store.
func newTestAPI(t *testing.T) *testServer {
	t.Helper()

	repo := memory.NewSeeded()
	registry := prometheus.NewRegistry()
	svc := service.New(repo, cache.NewMemoryCartStore(), zerolog.Nop(), service.Options{
		Currency:     "KES",
		BusinessName: "Shamba Feeds",
		Recorder:     obs.NewSalesMetrics("feedpos", registry),
	})
	auth := NewAuthManager("test-secret-key-test-secret-key!", time.Hour, repo)
	api := New(svc, auth, Options{
		AllowedOrigins: []string{"http://till.local"},
		Logger:         zerolog.Nop(),
		HTTPMetrics:    obs.NewHTTPMetrics("feedpos", registry),
		Gatherer:       registry,
	})
	return &testServer{handler: api.Handler(), registry: registry}
}

func (s *testServer) do(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username string, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

type cartBody struct {
	Cart struct {
		ID            string          `json:"id"`
		State         string          `json:"state"`
		Subtotal      decimal.Decimal `json:"subtotal"`
		Total         decimal.Decimal `json:"total"`
		DiscountTotal decimal.Decimal `json:"discount_total"`
		Lines         []struct {
			ProductID string          `json:"product_id"`
			Unit      string          `json:"unit"`
			Quantity  decimal.Decimal `json:"quantity"`
			LineTotal decimal.Decimal `json:"line_total"`
		} `json:"lines"`
	} `json:"cart"`
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) newCart(t *testing.T, token string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/carts", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cart := decodeInto[cartBody](t, rec)
	assert.Equal(t, "empty", cart.Cart.State)
	return cart.Cart.ID
}

func (s *testServer) addLine(t *testing.T, token string, cartID string, productID string, unit string, quantity string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/lines", token, map[string]any{
		"product_id": productID,
		"unit":       unit,
		"quantity":   quantity,
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestAPI(t)
	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeInto[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
}

func TestHandleLogin(t *testing.T) {
	srv := newTestAPI(t)
	srv.login(t, "admin", "admin123")

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductsRequireAuth(t *testing.T) {
	srv := newTestAPI(t)
	rec := srv.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/products", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListProductsFiltersAndPages(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "cashier", "cashier123")

	rec := srv.do(t, http.MethodGet, "/api/v1/products?category=poultry&per_page=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decodeInto[domain.ProductPage](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Products, 2)
	for _, p := range page.Products {
		assert.Equal(t, "poultry", p.Category)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/products?unit_type=crate", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuotePricesBagsAndKilograms(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "cashier", "cashier123")

	rec := srv.do(t, http.MethodGet, "/api/v1/products/prd-maize-bran/quote?unit=bag&quantity=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decodeInto[struct {
		Quote domain.Quote `json:"quote"`
	}](t, rec)
	assert.True(t, quote.Quote.EffectiveUnitPrice.Equal(decimal.NewFromInt(1400)), quote.Quote.EffectiveUnitPrice.String())
	assert.True(t, quote.Quote.StockConsumedKg.Equal(decimal.NewFromInt(50)))

	rec = srv.do(t, http.MethodGet, "/api/v1/products/prd-calf-pellets/quote?unit=kg&quantity=1", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "conversion_unavailable", decodeInto[errorBody](t, rec).Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/products/prd-maize-bran/quote?unit=kg&quantity=lots", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "cashier", "cashier123")
	cartID := srv.newCart(t, token)

	rec := srv.addLine(t, token, cartID, "prd-layers-mash", "bag", "2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = srv.addLine(t, token, cartID, "prd-maize-bran", "kg", "5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cart := decodeInto[cartBody](t, rec)
	assert.Equal(t, "building", cart.Cart.State)
	require.Len(t, cart.Cart.Lines, 2)
	assert.True(t, cart.Cart.Total.Equal(decimal.NewFromInt(6940)), cart.Cart.Total.String())

	rec = srv.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/change", token, map[string]any{
		"method": "cash",
		"amount": 6000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decodeInto[struct {
		Change domain.ChangePreview `json:"change"`
	}](t, rec)
	assert.False(t, preview.Change.Sufficient)
	assert.True(t, preview.Change.Deficit.Equal(decimal.NewFromInt(940)))

	rec = srv.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/settle", token, map[string]any{
		"payment":  map[string]any{"method": "cash", "amount": 7000},
		"customer": map[string]any{"name": "Wanjiru", "phone": "+254722000111"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	settled := decodeInto[struct {
		Sale domain.Sale `json:"sale"`
	}](t, rec)
	assert.True(t, settled.Sale.Total.Equal(decimal.NewFromInt(6940)))
	assert.True(t, settled.Sale.Change.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, "cashier", settled.Sale.CashierUsername)
	require.Len(t, settled.Sale.Items, 2)

	rec = srv.do(t, http.MethodGet, "/api/v1/carts/"+cartID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/products/prd-layers-mash", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	product := decodeInto[struct {
		Product domain.Product `json:"product"`
	}](t, rec)
	assert.True(t, product.Product.StockQuantity.Equal(decimal.NewFromInt(1260)), product.Product.StockQuantity.String())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/"+settled.Sale.ID+"/invoice", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	invoice := httptest.NewRecorder()
	srv.handler.ServeHTTP(invoice, req)
	require.Equal(t, http.StatusOK, invoice.Code)
	assert.True(t, strings.HasPrefix(invoice.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, invoice.Body.String(), "KES 6,940.00")
	assert.Contains(t, invoice.Body.String(), "Wanjiru")
}

func TestSettleReplaysIdempotencyKeyHeader(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "cashier", "cashier123")
	cartID := srv.newCart(t, token)
	require.Equal(t, http.StatusOK, srv.addLine(t, token, cartID, "prd-chick-mash", "bag", "1").Code)

	settle := func() *httptest.ResponseRecorder {
		payload, _ := json.Marshal(map[string]any{
			"payment": map[string]any{"method": "mobile_money", "amount": 3600, "reference": "QWE123"},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID+"/settle", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "till-1-0001")
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)
		return rec
	}

	first := settle()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := settle()
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	a := decodeInto[struct {
		Sale domain.Sale `json:"sale"`
	}](t, first)
	b := decodeInto[struct {
		Sale domain.Sale `json:"sale"`
	}](t, second)
	assert.Equal(t, a.Sale.ID, b.Sale.ID)
	assert.Equal(t, "till-1-0001", b.Sale.IdempotencyKey)
}

func TestCartErrorsCarryCodes(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "cashier", "cashier123")
	cartID := srv.newCart(t, token)

	rec := srv.addLine(t, token, cartID, "prd-pig-finisher", "bag", "4")
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	stock := decodeInto[struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "insufficient_stock", stock.Code)
	assert.Equal(t, "200", stock.Details["requested_kg"])
	assert.Equal(t, "150", stock.Details["available_kg"])

	rec = srv.addLine(t, token, cartID, "prd-layers-pellets-0925", "bag", "1")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "product_expired", decodeInto[errorBody](t, rec).Code)

	rec = srv.addLine(t, token, cartID, "prd-maize-bran", "crate", "1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	invalid := decodeInto[struct {
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Contains(t, invalid.Details, "unit")

	rec = srv.addLine(t, token, cartID, "prd-maize-bran", "kg", "-2")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", decodeInto[errorBody](t, rec).Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/settle", token, map[string]any{
		"payment": map[string]any{"method": "cash", "amount": 100},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "empty_cart", decodeInto[errorBody](t, rec).Code)

	require.Equal(t, http.StatusOK, srv.addLine(t, token, cartID, "prd-fish-meal", "kg", "2").Code)
	rec = srv.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/settle", token, map[string]any{
		"payment": map[string]any{"method": "cash", "amount": 200},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	short := decodeInto[struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "insufficient_payment", short.Code)
	assert.Equal(t, "80.00", short.Details["deficit"])

	rec = srv.do(t, http.MethodGet, "/api/v1/carts/"+cartID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeInto[cartBody](t, rec).Cart.Lines, 1)
}

func TestCartLineEditing(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "cashier", "cashier123")
	cartID := srv.newCart(t, token)
	require.Equal(t, http.StatusOK, srv.addLine(t, token, cartID, "prd-dairy-meal", "bag", "2").Code)

	rec := srv.do(t, http.MethodPatch, "/api/v1/carts/"+cartID+"/lines/prd-dairy-meal", token, map[string]any{
		"unit":  "bag",
		"delta": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeInto[cartBody](t, rec).Cart.Total.Equal(decimal.NewFromInt(8700)))

	rec = srv.do(t, http.MethodPut, "/api/v1/carts/"+cartID+"/lines/prd-dairy-meal/discount", token, map[string]any{
		"unit":   "bag",
		"amount": 200,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = srv.do(t, http.MethodPut, "/api/v1/carts/"+cartID+"/discount", token, map[string]any{"amount": 500})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decodeInto[cartBody](t, rec)
	assert.True(t, cart.Cart.Total.Equal(decimal.NewFromInt(8000)), cart.Cart.Total.String())
	assert.True(t, cart.Cart.DiscountTotal.Equal(decimal.NewFromInt(700)))

	rec = srv.do(t, http.MethodDelete, "/api/v1/carts/"+cartID+"/lines/prd-dairy-meal", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/v1/carts/"+cartID+"/lines/prd-dairy-meal?unit=bag", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "empty", decodeInto[cartBody](t, rec).Cart.State)

	rec = srv.do(t, http.MethodDelete, "/api/v1/carts/"+cartID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = srv.do(t, http.MethodGet, "/api/v1/carts/"+cartID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCashierCannotUseAdminRoutes(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "cashier", "cashier123")

	rec := srv.do(t, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name":      "Sow & Weaner",
		"category":  "pigs",
		"unit_type": "bag",
		"price":     2600,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, path := range []string{"/api/v1/suppliers", "/api/v1/transactions", "/api/v1/reports/summary", "/api/v1/staff", "/api/v1/audit-logs"} {
		rec := srv.do(t, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestAdminCatalogAndStock(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "admin", "admin123")

	rec := srv.do(t, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name":             "Sow & Weaner 70kg",
		"category":         "pigs",
		"supplier_id":      "sup-sigma",
		"unit_type":        "bag",
		"price":            2600,
		"cost_price":       2250,
		"weight_per_bag":   70,
		"initial_stock_kg": 140,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeInto[struct {
		Product domain.Product `json:"product"`
	}](t, rec).Product

	rec = srv.do(t, http.MethodPatch, "/api/v1/products/"+created.ID, token, map[string]any{"price": 2700})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/v1/products/"+created.ID+"/price-history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeInto[struct {
		History []domain.ProductPriceHistory `json:"history"`
	}](t, rec).History
	require.Len(t, history, 1)
	assert.True(t, history[0].NewPrice.Equal(decimal.NewFromInt(2700)))

	rec = srv.do(t, http.MethodPost, "/api/v1/stock/receipts", token, map[string]any{
		"product_id":  created.ID,
		"supplier_id": "sup-sigma",
		"unit":        "bag",
		"quantity":    4,
		"unit_cost":   2250,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	movement := decodeInto[struct {
		Movement domain.StockMovement `json:"movement"`
	}](t, rec).Movement
	assert.True(t, movement.QuantityKg.Equal(decimal.NewFromInt(280)))
	assert.True(t, movement.BalanceKg.Equal(decimal.NewFromInt(420)))

	rec = srv.do(t, http.MethodGet, "/api/v1/stock/movements?product_id="+created.ID+"&type=receipt", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeInto[domain.StockMovementListResponse](t, rec).Movements, 1)

	rec = srv.do(t, http.MethodGet, "/api/v1/transactions?type=expense", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decodeInto[domain.LedgerListResponse](t, rec).Entries
	require.NotEmpty(t, entries)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(9000)))

	rec = srv.do(t, http.MethodGet, "/api/v1/reports/low-stock", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "prd-pig-finisher")
}

func TestClosureLifecycle(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "cashier", "cashier123")

	rec := srv.do(t, http.MethodGet, "/api/v1/closures/current", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_open_closure", decodeInto[errorBody](t, rec).Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/closures/open", token, map[string]any{"opening_float": 2000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cartID := srv.newCart(t, token)
	require.Equal(t, http.StatusOK, srv.addLine(t, token, cartID, "prd-fish-meal", "kg", "10").Code)
	rec = srv.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/settle", token, map[string]any{
		"payment": map[string]any{"method": "cash", "amount": 1400},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/v1/closures/close", token, map[string]any{"counted_cash": 3400})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closure := decodeInto[struct {
		Closure domain.DailyClosure `json:"closure"`
	}](t, rec).Closure
	assert.Equal(t, domain.ClosureStatusClosed, closure.Status)
	assert.True(t, closure.ExpectedCash.Equal(decimal.NewFromInt(3400)), closure.ExpectedCash.String())
	require.NotNil(t, closure.Variance)
	assert.True(t, closure.Variance.IsZero())
}

func TestStaffManagement(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "admin", "admin123")

	rec := srv.do(t, http.MethodPost, "/api/v1/staff", token, map[string]any{
		"username": "Achieng",
		"password": "till-pass-9",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decodeInto[struct {
		User domain.StaffUser `json:"user"`
	}](t, rec).User
	assert.Equal(t, "achieng", user.Username)
	assert.Equal(t, domain.RoleCashier, user.Role)

	rec = srv.do(t, http.MethodPost, "/api/v1/staff", token, map[string]any{
		"username": "achieng",
		"password": "another-pass",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	staffToken := srv.login(t, "achieng", "till-pass-9")

	rec = srv.do(t, http.MethodPatch, "/api/v1/staff/achieng", token, map[string]any{"active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/v1/products", staffToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "achieng", "password": "till-pass-9"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/api/v1/staff/admin", token, map[string]any{"active": false})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/audit-logs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "staff_update")
}

func TestCartRejectsOverlyPreciseNumbers(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t, "cashier", "cashier123")
	cartID := srv.newCart(t, token)

	start := time.Now()
	rec := srv.addLine(t, token, cartID, "prd-maize-bran", "kg", "1e-20000000")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "invalid_quantity", decodeInto[errorBody](t, rec).Code)
	assert.Less(t, time.Since(start), time.Second)

	rec = srv.addLine(t, token, cartID, "prd-maize-bran", "kg", "1e20000000")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", decodeInto[errorBody](t, rec).Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/products/prd-maize-bran/quote?unit=kg&quantity=0.0001", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", decodeInto[errorBody](t, rec).Code)

	rec = srv.do(t, http.MethodPut, "/api/v1/carts/"+cartID+"/discount", token, map[string]any{"amount": "0.001"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_discount", decodeInto[errorBody](t, rec).Code)

	rec = srv.addLine(t, token, cartID, "prd-maize-bran", "kg", "2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/v1/carts/"+cartID+"/change", token, map[string]any{
		"method": "cash",
		"amount": "1e-20000000",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", decodeInto[errorBody](t, rec).Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/carts/"+cartID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeInto[cartBody](t, rec)
	require.Len(t, cart.Cart.Lines, 1)
	assert.Equal(t, "56.00", cart.Cart.Total.StringFixed(2))
}

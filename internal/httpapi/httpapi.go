package httpapi

import (
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/obs"
	"feedpos/backend/internal/service"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigins []string
	Logger         zerolog.Logger
	HTTPMetrics    *obs.HTTPMetrics
	// Gatherer backs GET /metrics. The endpoint is not mounted when nil.
	Gatherer    prometheus.Gatherer
	LoginLimit  int
	LoginWindow time.Duration
}

type API struct {
	service        *service.Service
	auth           *AuthManager
	logger         zerolog.Logger
	allowedOrigins []string
	httpMetrics    *obs.HTTPMetrics
	gatherer       prometheus.Gatherer
	loginLimiter   *attemptLimiter
	now            func() time.Time
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://127.0.0.1:3000"}
	}
	loginLimit := opts.LoginLimit
	if loginLimit == 0 {
		loginLimit = 5
	}
	return &API{
		service:        svc,
		auth:           auth,
		logger:         opts.Logger,
		allowedOrigins: origins,
		httpMetrics:    opts.HTTPMetrics,
		gatherer:       opts.Gatherer,
		loginLimiter:   newAttemptLimiter(loginLimit, opts.LoginWindow),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.HTTPObs{Metrics: a.httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: a.logger}.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(securityHeaders)
	r.Use(limitBody)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", errors.New("method not allowed"))
	})

	r.Get("/healthz", a.handleHealth)
	if a.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleCashier, domain.RoleAdmin))

			r.Get("/products", a.handleListProducts)
			r.Get("/products/{productID}", a.handleGetProduct)
			r.Get("/products/{productID}/price-history", a.handlePriceHistory)
			r.Get("/products/{productID}/quote", a.handleQuote)

			r.Post("/carts", a.handleCreateCart)
			r.Get("/carts/{cartID}", a.handleGetCart)
			r.Delete("/carts/{cartID}", a.handleCancelCart)
			r.Post("/carts/{cartID}/lines", a.handleAddCartLine)
			r.Patch("/carts/{cartID}/lines/{productID}", a.handleChangeCartQuantity)
			r.Delete("/carts/{cartID}/lines/{productID}", a.handleRemoveCartLine)
			r.Put("/carts/{cartID}/lines/{productID}/discount", a.handleSetLineDiscount)
			r.Put("/carts/{cartID}/discount", a.handleSetCartDiscount)
			r.Post("/carts/{cartID}/change", a.handlePreviewChange)
			r.Post("/carts/{cartID}/settle", a.handleSettleCart)

			r.Get("/sales", a.handleListSales)
			r.Get("/sales/{saleID}", a.handleGetSale)
			r.Get("/sales/{saleID}/invoice", a.handleInvoice)

			r.Get("/stock/movements", a.handleStockMovements)

			r.Post("/closures/open", a.handleOpenDay)
			r.Post("/closures/close", a.handleCloseDay)
			r.Get("/closures/current", a.handleCurrentClosure)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleAdmin))

			r.Post("/products", a.handleCreateProduct)
			r.Patch("/products/{productID}", a.handleUpdateProduct)

			r.Post("/stock/receipts", a.handleReceiveStock)
			r.Post("/stock/adjustments", a.handleAdjustStock)

			r.Get("/suppliers", a.handleListSuppliers)
			r.Post("/suppliers", a.handleCreateSupplier)
			r.Get("/suppliers/{supplierID}", a.handleGetSupplier)
			r.Patch("/suppliers/{supplierID}", a.handleUpdateSupplier)

			r.Get("/transactions", a.handleListLedger)
			r.Post("/transactions", a.handleCreateLedgerEntry)

			r.Get("/reports/summary", a.handleSalesSummary)
			r.Get("/reports/low-stock", a.handleLowStock)

			r.Get("/staff", a.handleListStaff)
			r.Post("/staff", a.handleCreateStaff)
			r.Patch("/staff/{username}", a.handleUpdateStaff)
			r.Get("/audit-logs", a.handleAuditLogs)
		})
	})

	return r
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", errors.New("missing bearer token"))
				return
			}

			token := strings.TrimSpace(authorization[len("Bearer "):])
			actor, err := a.auth.ParseToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err)
				return
			}

			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeError(w, http.StatusForbidden, "forbidden", errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cache-Control", "no-store")
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-Id", id)
		}
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": a.now().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/service"
)

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 100, 500)
	sales, err := a.service.ListSales(r.Context(), query.Get("from"), query.Get("to"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

// handleInvoice serves the printable invoice as text/plain, or wrapped in
// JSON with ?format=json.
func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := a.service.Invoice(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		writeJSON(w, http.StatusOK, invoice)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", invoice.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(invoice.Text))
}

func (a *API) handleReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockReceipt
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	movement, err := a.service.ReceiveStock(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	movement, err := a.service.AdjustStock(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
}

func (a *API) handleStockMovements(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := parseDateParam("from", query.Get("from"), false)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	to, err := parseDateParam("to", query.Get("to"), true)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	movements, err := a.service.ListStockMovements(r.Context(), domain.StockMovementFilter{
		ProductID: strings.TrimSpace(query.Get("product_id")),
		Type:      domain.StockMovementType(strings.TrimSpace(query.Get("type"))),
		From:      from,
		To:        to,
		Limit:     parsePositiveLimit(query.Get("limit"), 100, 500),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

func (a *API) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := a.service.ListSuppliers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (a *API) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	supplier, err := a.service.CreateSupplier(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"supplier": supplier})
}

func (a *API) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := a.service.GetSupplier(r.Context(), chi.URLParam(r, "supplierID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supplier": supplier})
}

func (a *API) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	supplier, err := a.service.UpdateSupplier(r.Context(), chi.URLParam(r, "supplierID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supplier": supplier})
}

func (a *API) handleListLedger(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	entryType := domain.LedgerEntryType(strings.TrimSpace(query.Get("type")))
	if entryType != "" && entryType != domain.LedgerIncome && entryType != domain.LedgerExpense {
		a.fail(w, r, invalidParam("type", "must be one of: income expense"))
		return
	}
	limit := parsePositiveLimit(query.Get("limit"), 200, 1000)
	entries, err := a.service.ListLedgerEntries(r.Context(), entryType, query.Get("from"), query.Get("to"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleCreateLedgerEntry(w http.ResponseWriter, r *http.Request) {
	var req domain.LedgerEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	entry, err := a.service.CreateLedgerEntry(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (a *API) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	top := parsePositiveLimit(query.Get("top"), 10, 50)
	summary, err := a.service.SalesSummary(r.Context(), query.Get("from"), query.Get("to"), top)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.LowStock(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleOpenDay(w http.ResponseWriter, r *http.Request) {
	var req domain.ClosureOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	closure, err := a.service.OpenDay(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"closure": closure})
}

func (a *API) handleCloseDay(w http.ResponseWriter, r *http.Request) {
	var req domain.ClosureCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	closure, err := a.service.CloseDay(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closure": closure})
}

func (a *API) handleCurrentClosure(w http.ResponseWriter, r *http.Request) {
	closure, err := a.service.CurrentClosure(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closure": closure})
}

func (a *API) handleListStaff(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"staff": a.auth.ListStaff(r.Context())})
}

func (a *API) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	var req domain.StaffCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.auth.CreateStaff(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.service.RecordAudit(r.Context(), "staff_create", "user", user.Username, "role="+user.Role)
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleUpdateStaff(w http.ResponseWriter, r *http.Request) {
	var req domain.StaffUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	actor, ok := service.ActorFromContext(r.Context())
	if !ok {
		a.fail(w, r, errors.New("actor missing from authenticated request"))
		return
	}
	user, err := a.auth.UpdateStaff(r.Context(), actor.Username, chi.URLParam(r, "username"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var changes []string
	if req.Password != nil {
		changes = append(changes, "password_reset")
	}
	if req.Active != nil {
		changes = append(changes, fmt.Sprintf("active=%t", user.Active))
	}
	a.service.RecordAudit(r.Context(), "staff_update", "user", user.Username, strings.Join(changes, ","))
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), query.Get("date"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

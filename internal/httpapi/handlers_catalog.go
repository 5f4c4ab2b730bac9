package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"feedpos/backend/internal/domain"
)

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.ProductFilter{
		Search:   strings.TrimSpace(query.Get("search")),
		Category: strings.TrimSpace(query.Get("category")),
		UnitType: domain.UnitType(strings.TrimSpace(query.Get("unit_type"))),
	}
	if filter.UnitType != "" && filter.UnitType != domain.UnitTypeBag && filter.UnitType != domain.UnitTypeLoose {
		a.fail(w, r, invalidParam("unit_type", "must be one of: bag loose"))
		return
	}
	lowStock, err := parseBoolParam("low_stock", query.Get("low_stock"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	filter.LowStockOnly = lowStock
	includeAll, err := parseBoolParam("include_inactive", query.Get("include_inactive"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	filter.IncludeAll = includeAll
	filter.Page, _ = strconv.Atoi(query.Get("page"))
	filter.PerPage, _ = strconv.Atoi(query.Get("per_page"))

	page, err := a.service.ListProducts(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "productID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
	history, err := a.service.ListProductPriceHistory(r.Context(), chi.URLParam(r, "productID"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// handleQuote prices a prospective line: GET /products/{id}/quote?unit=bag&quantity=2.
func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	unit := domain.SaleUnit(strings.TrimSpace(query.Get("unit")))
	if !unit.Valid() {
		a.fail(w, r, invalidParam("unit", "must be one of: bag kg"))
		return
	}
	quantity, err := parseDecimalParam("quantity", query.Get("quantity"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	quote, err := a.service.Quote(r.Context(), chi.URLParam(r, "productID"), unit, quantity)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": quote})
}

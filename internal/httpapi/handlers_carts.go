package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"feedpos/backend/internal/domain"
)

func (a *API) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	cart, err := a.service.CreateCart(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cart": cart})
}

func (a *API) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := a.service.GetCart(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) handleCancelCart(w http.ResponseWriter, r *http.Request) {
	cart, err := a.service.CancelCart(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) handleAddCartLine(w http.ResponseWriter, r *http.Request) {
	var req domain.CartLineRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	cart, err := a.service.AddCartLine(r.Context(), chi.URLParam(r, "cartID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) handleChangeCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req domain.CartQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	cart, err := a.service.ChangeCartQuantity(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) handleRemoveCartLine(w http.ResponseWriter, r *http.Request) {
	unit := domain.SaleUnit(strings.TrimSpace(r.URL.Query().Get("unit")))
	if !unit.Valid() {
		a.fail(w, r, invalidParam("unit", "must be one of: bag kg"))
		return
	}
	cart, err := a.service.RemoveCartLine(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID"), unit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) handleSetLineDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.CartLineDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	cart, err := a.service.SetCartLineDiscount(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) handleSetCartDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.CartDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	cart, err := a.service.SetCartDiscount(r.Context(), chi.URLParam(r, "cartID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) handlePreviewChange(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	preview, err := a.service.PreviewChange(r.Context(), chi.URLParam(r, "cartID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"change": preview})
}

// handleSettleCart accepts the idempotency key in the body or in the
// Idempotency-Key header; the body wins when both are set.
func (a *API) handleSettleCart(w http.ResponseWriter, r *http.Request) {
	var req domain.SettleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}
	sale, err := a.service.SettleCart(r.Context(), chi.URLParam(r, "cartID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"feedpos/backend/internal/cache"
	"feedpos/backend/internal/pos"
	"feedpos/backend/internal/service"
	"feedpos/backend/internal/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// requestError is a malformed or invalid request, reported as 400 with
// per-field details.
type requestError struct {
	message string
	details map[string]string
}

func (e *requestError) Error() string { return e.message }

func invalidParam(name string, message string) error {
	return &requestError{message: "invalid query parameter", details: map[string]string{name: message}}
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{message: "request body too large"}
		}
		return &requestError{message: "invalid request body", details: map[string]string{"body": err.Error()}}
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return &requestError{message: "validation failed", details: details}
	}
	return &requestError{message: "validation failed"}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD form"
	}
	return "is invalid"
}

// classify maps an error to its HTTP status, machine code and details.
func classify(err error) (int, string, any) {
	var reqErr *requestError
	var stockErr *pos.InsufficientStockError
	var payErr *pos.InsufficientPaymentError

	switch {
	case errors.As(err, &reqErr):
		if len(reqErr.details) == 0 {
			return http.StatusBadRequest, "invalid_request", nil
		}
		return http.StatusBadRequest, "invalid_request", reqErr.details
	case errors.As(err, &stockErr):
		return http.StatusConflict, "insufficient_stock", map[string]string{
			"product_id":   stockErr.ProductID,
			"product_name": stockErr.ProductName,
			"requested_kg": stockErr.RequestedKg.String(),
			"available_kg": stockErr.AvailableKg.String(),
		}
	case errors.Is(err, pos.ErrInsufficientStock), errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock", nil
	case errors.As(err, &payErr):
		return http.StatusUnprocessableEntity, "insufficient_payment", map[string]string{
			"total":    payErr.Total.StringFixed(2),
			"tendered": payErr.Tendered.StringFixed(2),
			"deficit":  payErr.Deficit().StringFixed(2),
		}
	case errors.Is(err, pos.ErrOutOfStock):
		return http.StatusConflict, "out_of_stock", nil
	case errors.Is(err, pos.ErrExpiredProduct):
		return http.StatusUnprocessableEntity, "product_expired", nil
	case errors.Is(err, pos.ErrConversionUnavailable):
		return http.StatusUnprocessableEntity, "conversion_unavailable", nil
	case errors.Is(err, pos.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart", nil
	case errors.Is(err, pos.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity", nil
	case errors.Is(err, pos.ErrInvalidDiscount):
		return http.StatusBadRequest, "invalid_discount", nil
	case errors.Is(err, pos.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount", nil
	case errors.Is(err, pos.ErrInvalidUnit):
		return http.StatusBadRequest, "invalid_unit", nil
	case errors.Is(err, pos.ErrUnsupportedPaymentMethod):
		return http.StatusBadRequest, "unsupported_payment_method", nil
	case errors.Is(err, pos.ErrCartClosed):
		return http.StatusConflict, "cart_closed", nil
	case errors.Is(err, pos.ErrLineNotFound):
		return http.StatusNotFound, "line_not_found", nil
	case errors.Is(err, cache.ErrCartNotFound):
		return http.StatusNotFound, "cart_not_found", nil
	case errors.Is(err, service.ErrNoOpenClosure):
		return http.StatusNotFound, "no_open_closure", nil
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", nil
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden", nil
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict", nil
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", nil
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountInactive), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized", nil
	default:
		return http.StatusInternalServerError, "internal", nil
	}
}

// fail writes err using its classified status. Server errors are logged and
// replaced by a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, details := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		a.logger.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code, Details: details})
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func parseDecimalParam(name string, raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, invalidParam(name, "is required")
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, invalidParam(name, "must be a number")
	}
	return value, nil
}

func parseBoolParam(name string, raw string) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, invalidParam(name, "must be true or false")
	}
	return value, nil
}

// parseDateParam reads a YYYY-MM-DD query value. endOfDay moves the result
// to the start of the following day so the date is included in a window.
func parseDateParam(name string, raw string, endOfDay bool) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.DateOnly, trimmed)
	if err != nil {
		return time.Time{}, invalidParam(name, "must be a date in YYYY-MM-DD form")
	}
	if endOfDay {
		parsed = parsed.Add(24 * time.Hour)
	}
	return parsed.UTC(), nil
}

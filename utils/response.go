package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"spicery/errs"
)

// M is a JSON object shorthand.
type M map[string]any

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, M{"error": msg})
}

// RespondWithJSON sends data as a JSON response.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// DecodeJSON decodes a request body of at most 1 MB into v.
func DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

// RespondWithAppError maps the error taxonomy onto HTTP statuses with a body
// detailed enough for the client to retry meaningfully. Anything outside the
// taxonomy is reported as a generic 500.
func RespondWithAppError(w http.ResponseWriter, err error) {
	var stock *errs.InsufficientStockError
	var transition *errs.IllegalTransitionError

	switch {
	case errors.As(err, &stock):
		RespondWithJSON(w, http.StatusConflict, M{
			"error":     stock.Error(),
			"code":      "InsufficientStock",
			"productId": stock.ProductID,
			"requested": stock.Requested,
			"remaining": stock.Remaining,
		})
	case errors.As(err, &transition):
		RespondWithJSON(w, http.StatusConflict, M{
			"error":           transition.Error(),
			"code":            "IllegalTransition",
			"currentStatus":   transition.From,
			"requestedStatus": transition.To,
		})
	case errors.Is(err, errs.ErrInvalidQuantity):
		respondCode(w, http.StatusBadRequest, "InvalidQuantity", err)
	case errors.Is(err, errs.ErrInvalidAmount):
		respondCode(w, http.StatusBadRequest, "InvalidAmount", err)
	case errors.Is(err, errs.ErrInvalidStatus):
		respondCode(w, http.StatusBadRequest, "InvalidStatus", err)
	case errors.Is(err, errs.ErrInvalidCoupon):
		respondCode(w, http.StatusBadRequest, "InvalidCoupon", err)
	case errors.Is(err, errs.ErrEmptyCart):
		respondCode(w, http.StatusBadRequest, "EmptyCart", err)
	case errors.Is(err, errs.ErrCartChanged):
		respondCode(w, http.StatusConflict, "CartChanged", err)
	case errors.Is(err, errs.ErrProductNotFound):
		respondCode(w, http.StatusNotFound, "ProductNotFound", err)
	case errors.Is(err, errs.ErrItemNotFound):
		respondCode(w, http.StatusNotFound, "ItemNotFound", err)
	case errors.Is(err, errs.ErrOrderNotFound):
		respondCode(w, http.StatusNotFound, "OrderNotFound", err)
	case errors.Is(err, errs.ErrForbidden):
		respondCode(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, errs.ErrPaymentNotAllowed):
		respondCode(w, http.StatusConflict, "PaymentNotAllowed", err)
	case errors.Is(err, errs.ErrRefundNotAllowed):
		respondCode(w, http.StatusConflict, "RefundNotAllowed", err)
	case errors.Is(err, errs.ErrRefundExceedsPaid):
		respondCode(w, http.StatusConflict, "RefundExceedsPaid", err)
	default:
		RespondWithJSON(w, http.StatusInternalServerError, M{
			"error": "internal error, please retry",
			"code":  "Internal",
		})
	}
}

func respondCode(w http.ResponseWriter, status int, code string, err error) {
	RespondWithJSON(w, status, M{"error": err.Error(), "code": code})
}

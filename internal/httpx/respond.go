package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/booking"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/catalog"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/loyalty"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/orders"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/payment"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func fail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "message": msg})
}

// failErr maps every business rejection to a structured response with a
// human-readable reason; only unexpected failures become a bare 500.
func failErr(w http.ResponseWriter, err error) {
	var (
		stockErr   *catalog.InsufficientStockError
		orderVal   *orders.ValidationError
		bookingVal *booking.ValidationError
	)
	switch {
	case errors.As(err, &orderVal), errors.As(err, &bookingVal):
		fail(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &stockErr):
		fail(w, http.StatusConflict, stockErr.Error())
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrServiceNotFound),
		errors.Is(err, catalog.ErrReviewNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, booking.ErrNotFound),
		errors.Is(err, loyalty.ErrUserNotFound),
		errors.Is(err, loyalty.ErrVoucherNotFound):
		fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, catalog.ErrBadRating):
		fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrAlreadyCancelled),
		errors.Is(err, booking.ErrAlreadyInState),
		errors.Is(err, booking.ErrReviewDone),
		errors.Is(err, loyalty.ErrVoucherNotHeld):
		fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, loyalty.ErrInsufficientPoints),
		errors.Is(err, loyalty.ErrVoucherExpired),
		errors.Is(err, loyalty.ErrVoucherExhausted),
		errors.Is(err, loyalty.ErrRedeemCapReached):
		fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrInvalidSignature):
		fail(w, http.StatusBadRequest, err.Error())
	default:
		fail(w, http.StatusInternalServerError, "internal error")
	}
}

package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/booking"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/catalog"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/loyalty"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/orders"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/payment"
)

func TestFailErrStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"order not found", orders.ErrNotFound, http.StatusNotFound},
		{"invalid transition", orders.ErrInvalidTransition, http.StatusBadRequest},
		{"already cancelled", orders.ErrAlreadyCancelled, http.StatusConflict},
		{"booking already in state", booking.ErrAlreadyInState, http.StatusConflict},
		{"review already submitted", booking.ErrReviewDone, http.StatusConflict},
		{"voucher not held", loyalty.ErrVoucherNotHeld, http.StatusConflict},
		{"insufficient stock", &catalog.InsufficientStockError{
			ProductID: "p1", VariantName: "500g", Required: 2, Available: 1,
		}, http.StatusConflict},
		{"insufficient points", loyalty.ErrInsufficientPoints, http.StatusBadRequest},
		{"invalid signature", payment.ErrInvalidSignature, http.StatusBadRequest},
		{"missing field", &orders.ValidationError{Field: "customer_name"}, http.StatusBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			failErr(rec, tc.err)
			if rec.Code != tc.code {
				t.Errorf("%v mapped to %d, want %d", tc.err, rec.Code, tc.code)
			}
		})
	}
}

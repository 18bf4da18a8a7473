package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/payment"
)

type PaymentHandler struct {
	Gateway    *payment.Gateway
	Reconciler *payment.Reconciler
}

func (h *PaymentHandler) Register(r *chi.Mux) {
	r.Post("/api/payment", h.initiate)
	r.Post("/api/payment/callback-payment", h.callback)
}

type initiateReq struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
}

func (h *PaymentHandler) initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" || req.Amount <= 0 {
		fail(w, http.StatusBadRequest, "missing orderId or amount")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.Gateway.Initiate(ctx, req.OrderID, req.Amount)
	if err != nil {
		fail(w, http.StatusBadGateway, "payment gateway unavailable")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) callback(w http.ResponseWriter, r *http.Request) {
	var p payment.CallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Reconciler.HandleCallback(ctx, p); err != nil {
		failErr(w, err)
		return
	}
	ok(w, map[string]any{"message": "callback accepted"})
}

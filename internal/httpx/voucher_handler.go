package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/loyalty"
)

type VoucherHandler struct {
	Ledger *loyalty.Ledger
	Repo   *loyalty.Repo
}

func (h *VoucherHandler) Register(r *chi.Mux) {
	r.Get("/api/vouchers", h.list)
	r.Get("/api/vouchers/held", h.held)
	r.Post("/api/vouchers/redeem", h.redeem)
	r.Post("/api/vouchers/consume", h.consume)
}

func (h *VoucherHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	vouchers, total, err := h.Repo.ListVouchers(ctx, q.Get("type"), page, limit)
	if err != nil {
		failErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vouchers":   vouchers,
		"totalItems": total,
	})
}

func (h *VoucherHandler) held(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		fail(w, http.StatusBadRequest, "missing userId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	holdings, err := h.Repo.Holdings(ctx, userID)
	if err != nil {
		failErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

type voucherReq struct {
	UserID    string `json:"userId"`
	VoucherID string `json:"voucherId"`
}

func (h *VoucherHandler) redeem(w http.ResponseWriter, r *http.Request) {
	var req voucherReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || req.VoucherID == "" {
		fail(w, http.StatusBadRequest, "missing userId or voucherId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Ledger.Redeem(ctx, req.UserID, req.VoucherID)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, map[string]any{"balance": res.Balance, "holdingQty": res.HoldingQty})
}

func (h *VoucherHandler) consume(w http.ResponseWriter, r *http.Request) {
	var req voucherReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || req.VoucherID == "" {
		fail(w, http.StatusBadRequest, "missing userId or voucherId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.Consume(ctx, req.UserID, req.VoucherID); err != nil {
		failErr(w, err)
		return
	}
	ok(w, nil)
}

package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/loyalty"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/orders"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/redisx"
)

type OrdersHandler struct {
	Svc    *orders.Service
	Repo   *orders.Repo
	Ledger *loyalty.Ledger
	Redis  *redis.Client
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/orders", h.listOrders)
	r.Get("/api/orders/{id}", h.getOrder)
	r.Get("/api/orders/user/{id}", h.ordersByUser)
	r.Put("/api/orders/edit-order-status", h.editStatus)
	r.Post("/api/orders/cancel-order", h.cancelOrder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Create(ctx, in)
	if err != nil {
		failErr(w, err)
		return
	}

	h.cacheOrder(ctx, o)

	extra := map[string]any{"orderId": o.ID, "order": o}
	if o.UserID != "" {
		if pts, err := h.Ledger.Points(ctx, o.UserID); err == nil {
			extra["userPoint"] = pts
		}
	}
	ok(w, extra)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	status := orders.Status(q.Get("status"))
	if status != "" && !orders.ValidStatus(status) {
		fail(w, http.StatusBadRequest, "unknown status")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, total, err := h.Repo.List(ctx, status, page, limit)
	if err != nil {
		failErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":     out,
		"totalItems": total,
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		fail(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// status cache fast path
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Svc.Get(ctx, orderID)
	if err != nil {
		failErr(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) ordersByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		fail(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Svc.ByUser(ctx, userID)
	if err != nil {
		failErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type editStatusReq struct {
	OrderID   string `json:"orderId"`
	NewStatus string `json:"newStatus"`
}

func (h *OrdersHandler) editStatus(w http.ResponseWriter, r *http.Request) {
	var req editStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" || req.NewStatus == "" {
		fail(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Transition(ctx, req.OrderID, orders.Status(req.NewStatus))
	if err != nil {
		failErr(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	ok(w, map[string]any{"order": o})
}

type cancelOrderReq struct {
	OrderID string `json:"orderId"`
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		fail(w, http.StatusBadRequest, "missing orderId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Cancel(ctx, req.OrderID)
	if err != nil {
		failErr(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	ok(w, map[string]any{"message": "order cancelled", "order": o})
}

// cacheOrder refreshes the read-through cache after every write so the
// fast path in getOrder never serves a stale status.
func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, err := json.Marshal(o)
	if err != nil {
		return
	}
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

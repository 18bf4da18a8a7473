package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/booking"
)

type BookingHandler struct {
	Svc *booking.Scheduler
}

func (h *BookingHandler) Register(r *chi.Mux) {
	r.Post("/api/bookings", h.create)
	r.Get("/api/bookings", h.byDate)
	r.Put("/api/bookings/cancel-booking", h.action((*booking.Scheduler).Cancel))
	r.Put("/api/bookings/confirm-booking", h.action((*booking.Scheduler).Confirm))
	r.Put("/api/bookings/done-booking", h.action((*booking.Scheduler).Done))
	r.Post("/api/bookings/review", h.review)
}

type createBookingReq struct {
	UserID        string   `json:"user_id"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone"`
	ServiceIDs    []string `json:"service_ids"`
	Date          string   `json:"date"` // "2006-01-02"
	Hours         string   `json:"hours"`
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBookingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.Svc.Create(ctx, booking.CreateInput{
		UserID:        req.UserID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		ServiceIDs:    req.ServiceIDs,
		Date:          day,
		Hours:         req.Hours,
	})
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, map[string]any{"bookingId": b.ID, "booking": b})
}

func (h *BookingHandler) byDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err1 := strconv.Atoi(q.Get("year"))
	month, err2 := strconv.Atoi(q.Get("month"))
	day, err3 := strconv.Atoi(q.Get("day"))
	if err1 != nil || err2 != nil || err3 != nil {
		fail(w, http.StatusBadRequest, "year, month and day are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Svc.ByDate(ctx, time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC))
	if err != nil {
		failErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type bookingIDReq struct {
	BookingID string `json:"bookingId"`
}

func (h *BookingHandler) action(op func(*booking.Scheduler, context.Context, string) (*booking.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookingIDReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fail(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.BookingID == "" {
			fail(w, http.StatusBadRequest, "missing bookingId")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		b, err := op(h.Svc, ctx, req.BookingID)
		if err != nil {
			failErr(w, err)
			return
		}
		ok(w, map[string]any{"booking": b})
	}
}

type bookingReviewReq struct {
	BookingID string `json:"bookingId"`
	Content   string `json:"content"`
}

func (h *BookingHandler) review(w http.ResponseWriter, r *http.Request) {
	var req bookingReviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.BookingID == "" {
		fail(w, http.StatusBadRequest, "missing bookingId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bonus, err := h.Svc.SubmitReview(ctx, req.BookingID, req.Content)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, map[string]any{"bonusPoints": bonus})
}

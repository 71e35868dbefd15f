// internal/adapters/http_server/handlers.go
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"terra_viajes/internal/app"
	"terra_viajes/internal/domain"
)

type Handlers struct {
	Q        *app.StatusService
	C        *app.BookingCommands
	AdminKey string
}

// envelope is the wire shape of every response: the completion client
// consumes the error field verbatim, so it must always be user-facing
// text.
type envelope struct {
	Success  bool             `json:"success"`
	Error    string           `json:"error,omitempty"`
	Booking  *domain.Booking  `json:"booking,omitempty"`
	Bookings []domain.Booking `json:"bookings,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	// public contract consumed by the completion flow
	s.mux.Get("/v1/bookings/status", h.getStatus)
	s.mux.Post("/v1/bookings/complete", h.complete)

	// back-office
	s.mux.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/v1/bookings", h.createBooking)
		r.Get("/v1/bookings", h.listBookings)
		r.Post("/v1/bookings/{token}/payment", h.markPaid)
		r.Put("/v1/trips/{id}", h.upsertTrip)
	})
}

func (h *Handlers) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.AdminKey != "" && r.Header.Get("X-API-Key") != h.AdminKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// writeDomainError maps known domain errors onto statuses; their message
// text is already suitable for end users. Anything else is logged and
// hidden behind a generic message.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidLink):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPaymentPending):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Error().Err(err).Msg("booking operation failed")
		writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
	}
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	orderID := r.URL.Query().Get("order_id")

	b, err := h.Q.Lookup(r.Context(), token, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Booking: &b})
}

type completeRequest struct {
	Token      string             `json:"token"`
	Passengers []domain.Passenger `json:"passengers"`
}

func (h *Handlers) complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.C.CompleteDetails(r.Context(), req.Token, req.Passengers); err != nil {
		// validation messages already name the offending passenger
		var status = http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, domain.ErrInvalidLink), errors.Is(err, domain.ErrNotFound),
			errors.Is(err, domain.ErrExpired), errors.Is(err, domain.ErrAlreadyCompleted),
			errors.Is(err, domain.ErrSubmitInFlight), errors.Is(err, domain.ErrPaymentPending):
			writeDomainError(w, err)
			return
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var in app.CreateBookingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b, err := h.C.CreateBooking(r.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Booking: &b})
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	bs, err := h.Q.ListBookings(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Bookings: bs})
}

func (h *Handlers) markPaid(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	b, err := h.C.MarkPaid(r.Context(), token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Booking: &b})
}

func (h *Handlers) upsertTrip(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive number")
		return
	}
	var t domain.TripSummary
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t.ID = id
	if err := h.C.UpsertTrip(r.Context(), &t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

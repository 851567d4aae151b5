package reservations

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cosmetica/clinic-booking/pkg/logging"
)

const (
	slotTakenMessage = "This slot was just booked. Please choose another date or time."
	notFoundMessage  = "No appointment found with this phone number, date and time. Please check details or contact us on WhatsApp."
	ambiguousMessage = "Multiple appointments match. Please contact us on WhatsApp to cancel."
)

// Handler serves the public booking, cancellation and cleanup endpoints.
type Handler struct {
	svc          *Service
	logger       *logging.Logger
	cronSecret   string
	contactPhone string
}

// NewHandler creates the public handler. An empty cronSecret leaves cleanup open.
func NewHandler(svc *Service, cronSecret, contactPhone string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cronSecret) == "" {
		logger.Warn("CRON_SECRET not set; cleanup endpoint is unauthenticated")
	}
	return &Handler{svc: svc, logger: logger, cronSecret: cronSecret, contactPhone: contactPhone}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func isShortPhone(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Field == "phone" && verr.Reason == reasonShortPhone
}

func (h *Handler) genericFailure() string {
	return fmt.Sprintf("Something went wrong. Please try again or WhatsApp us on %s.", h.contactPhone)
}

// Availability handles GET /api/availability?date=YYYY-MM-DD
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.CheckAvailability(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		if errors.Is(err, ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("availability lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, h.genericFailure())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateBooking handles POST /api/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var draft Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.svc.Book(r.Context(), draft)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, res)
	case errors.Is(err, ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConflict):
		payload := map[string]any{"error": slotTakenMessage}
		if avail, aerr := h.svc.CheckAvailability(r.Context(), draft.Date); aerr == nil {
			payload["taken"] = avail.Taken
		} else {
			h.logger.Warn("availability re-query failed", "error", aerr)
		}
		writeJSON(w, http.StatusConflict, payload)
	case errors.Is(err, ErrDateBlocked):
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("We are closed on this date. Please choose another date or WhatsApp us on %s.", h.contactPhone))
	default:
		h.logger.Error("booking failed", "error", err)
		writeError(w, http.StatusInternalServerError, h.genericFailure())
	}
}

// CancelBooking handles POST /functions/cancel-booking
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.svc.Cancel(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case isShortPhone(err):
		writeError(w, http.StatusBadRequest, "Invalid phone number")
	case errors.Is(err, ErrValidation):
		writeError(w, http.StatusBadRequest, "Phone, date and time are required")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMessage)
	case errors.Is(err, ErrAmbiguousMatch):
		writeError(w, http.StatusConflict, ambiguousMessage)
	default:
		h.logger.Error("cancellation failed", "error", err)
		writeError(w, http.StatusInternalServerError, h.genericFailure())
	}
}

// CleanupPastBookings handles GET|POST /functions/cleanup-past-bookings
func (h *Handler) CleanupPastBookings(w http.ResponseWriter, r *http.Request) {
	if !h.cronAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	result, err := h.svc.ReapPast(r.Context())
	if err != nil {
		h.logger.Error("cleanup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) cronAuthorized(r *http.Request) bool {
	return CronAuthorized(h.cronSecret, r.Header.Get("Authorization"), r.Header.Get("X-Cron-Secret"))
}

// CronAuthorized checks a scheduler call against the shared secret, accepting either
// a bearer token or the X-Cron-Secret header. An empty secret allows every call.
func CronAuthorized(secret, authorization, headerSecret string) bool {
	if secret == "" {
		return true
	}
	if token, ok := strings.CutPrefix(authorization, "Bearer "); ok && equalSecret(strings.TrimSpace(token), secret) {
		return true
	}
	return headerSecret != "" && equalSecret(headerSecret, secret)
}

func equalSecret(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

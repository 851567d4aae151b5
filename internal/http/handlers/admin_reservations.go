package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cosmetica/clinic-booking/internal/reservations"
	"github.com/cosmetica/clinic-booking/internal/slots"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

const (
	messagePreviewLength = 40
	defaultPageSize      = 50
	maxPageSize          = 200

	alreadyBlockedMessage = "This date is already blocked."
)

// AdminReservationsHandler serves the admin dashboard's reservation and blocked-date endpoints.
type AdminReservationsHandler struct {
	svc    *reservations.Service
	logger *logging.Logger
}

func NewAdminReservationsHandler(svc *reservations.Service, logger *logging.Logger) *AdminReservationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminReservationsHandler{svc: svc, logger: logger}
}

// ReservationRow is one reservation in the dashboard list.
type ReservationRow struct {
	ID             string  `json:"id"`
	Date           string  `json:"preferred_date"`
	Slot           string  `json:"preferred_time"`
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email,omitempty"`
	Service        string  `json:"service,omitempty"`
	MessagePreview string  `json:"message_preview,omitempty"`
	FollowUpDate   *string `json:"follow_up_date"`
	CreatedAt      string  `json:"created_at"`
}

// ReservationsListResponse is a page of reservations.
type ReservationsListResponse struct {
	Reservations []ReservationRow `json:"reservations"`
	Page         int              `json:"page"`
	PageSize     int              `json:"page_size"`
}

func toRow(r *reservations.Reservation) ReservationRow {
	row := ReservationRow{
		ID:             r.ID,
		Date:           r.Date.Format(slots.DateLayout),
		Slot:           r.Slot,
		Name:           r.Name,
		Phone:          r.Phone,
		Email:          r.Email,
		Service:        r.Service,
		MessagePreview: r.MessagePreview(messagePreviewLength),
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.FollowUpDate != nil {
		s := r.FollowUpDate.Format(slots.DateLayout)
		row.FollowUpDate = &s
	}
	return row
}

// ListReservations handles GET /admin/reservations?from=&to=&page=&page_size=
func (h *AdminReservationsHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := reservations.ListFilter{}
	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		d, err := slots.ParseDate(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, key+" must be a YYYY-MM-DD date")
			return
		}
		*dst = d
	}

	page := positiveInt(q.Get("page"), 1)
	pageSize := positiveInt(q.Get("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	rows, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list reservations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	resp := ReservationsListResponse{Reservations: make([]ReservationRow, 0, len(rows)), Page: page, PageSize: pageSize}
	for _, res := range rows {
		resp.Reservations = append(resp.Reservations, toRow(res))
	}
	jsonResponse(w, http.StatusOK, resp)
}

// CreateReservation handles POST /admin/reservations
func (h *AdminReservationsHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var draft reservations.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.AdminCreate(r.Context(), draft)
	if err != nil {
		h.writeDomainError(w, "create", err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// GetReservation handles GET /admin/reservations/{id}
func (h *AdminReservationsHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "get", err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// UpdateReservation handles PUT /admin/reservations/{id}
func (h *AdminReservationsHandler) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	var upd reservations.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.AdminUpdate(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.writeDomainError(w, "update", err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// DeleteReservation handles DELETE /admin/reservations/{id}
func (h *AdminReservationsHandler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.AdminDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBlockedDates handles GET /admin/blocked-dates
func (h *AdminReservationsHandler) ListBlockedDates(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListBlocked(r.Context())
	if err != nil {
		h.logger.Error("failed to list blocked dates", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list blocked dates")
		return
	}
	if rows == nil {
		rows = []*reservations.BlockedDate{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"blocked_dates": rows})
}

// BlockDate handles POST /admin/blocked-dates
func (h *AdminReservationsHandler) BlockDate(w http.ResponseWriter, r *http.Request) {
	var req reservations.BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b, err := h.svc.BlockDate(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, "block date", err)
		return
	}
	jsonResponse(w, http.StatusCreated, b)
}

// UnblockDate handles DELETE /admin/blocked-dates/{id}
func (h *AdminReservationsHandler) UnblockDate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.UnblockDate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "unblock date", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminReservationsHandler) writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, reservations.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reservations.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, reservations.ErrAlreadyBlocked):
		jsonError(w, http.StatusConflict, alreadyBlockedMessage)
	case errors.Is(err, reservations.ErrConflict):
		jsonError(w, http.StatusConflict, "This slot is already booked.")
	case errors.Is(err, reservations.ErrDateBlocked):
		jsonError(w, http.StatusUnprocessableEntity, "This date is blocked.")
	default:
		h.logger.Error("admin reservation operation failed", "op", op, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func jsonResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

package reservations

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cosmetica/clinic-booking/internal/slots"
)

// Reservation is one booked appointment. Date is a calendar date; Phone keeps the raw input.
type Reservation struct {
	ID           string
	Date         time.Time
	Slot         string
	Name         string
	Phone        string
	Email        string
	Service      string
	Message      string
	FollowUpDate *time.Time
	CreatedAt    time.Time
}

type reservationJSON struct {
	ID           string    `json:"id"`
	Date         string    `json:"preferred_date"`
	Slot         string    `json:"preferred_time"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	Service      string    `json:"service,omitempty"`
	Message      string    `json:"message,omitempty"`
	FollowUpDate *string   `json:"follow_up_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// MarshalJSON renders dates as YYYY-MM-DD.
func (r Reservation) MarshalJSON() ([]byte, error) {
	out := reservationJSON{
		ID:        r.ID,
		Date:      r.Date.Format(slots.DateLayout),
		Slot:      r.Slot,
		Name:      r.Name,
		Phone:     r.Phone,
		Email:     r.Email,
		Service:   r.Service,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
	}
	if r.FollowUpDate != nil {
		s := r.FollowUpDate.Format(slots.DateLayout)
		out.FollowUpDate = &s
	}
	return json.Marshal(out)
}

// MessagePreview truncates the notes for list views.
func (r *Reservation) MessagePreview(limit int) string {
	runes := []rune(r.Message)
	if len(runes) <= limit {
		return r.Message
	}
	return string(runes[:limit]) + "…"
}

// Draft is a booking submission as received from the public form or the admin dashboard.
type Draft struct {
	Date    string `json:"preferred_date"`
	Slot    string `json:"preferred_time"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Service string `json:"service"`
	Message string `json:"message"`
}

// Update is an admin edit; it replaces every editable field.
type Update struct {
	Date         string `json:"preferred_date"`
	Slot         string `json:"preferred_time"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Service      string `json:"service"`
	Message      string `json:"message"`
	FollowUpDate string `json:"follow_up_date"`
}

// ListFilter narrows admin listings. Zero dates are unbounded.
type ListFilter struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// BlockedDate is a calendar date on which no bookings are taken.
type BlockedDate struct {
	ID        string
	Date      time.Time
	Reason    string
	CreatedAt time.Time
}

type blockedDateJSON struct {
	ID        string    `json:"id"`
	Date      string    `json:"blocked_date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (b BlockedDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockedDateJSON{
		ID:        b.ID,
		Date:      b.Date.Format(slots.DateLayout),
		Reason:    b.Reason,
		CreatedAt: b.CreatedAt,
	})
}

// BlockRequest is the admin payload for blocking a date.
type BlockRequest struct {
	Date   string `json:"blocked_date"`
	Reason string `json:"reason"`
}

// CancelRequest is a customer self-service cancellation.
type CancelRequest struct {
	Phone string `json:"phone"`
	Date  string `json:"preferred_date"`
	Slot  string `json:"preferred_time"`
}

// CancelResult reports a successful cancellation.
type CancelResult struct {
	ReservationID string `json:"-"`
	Success       bool   `json:"success"`
	Message       string `json:"message"`
}

// SlotStatus is one row of an availability listing.
type SlotStatus struct {
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

// Availability is an advisory view of a date; it may be stale by the time a booking is written.
type Availability struct {
	Date    string       `json:"date"`
	Blocked bool         `json:"blocked"`
	Taken   []string     `json:"taken"`
	Slots   []SlotStatus `json:"slots"`
}

// ReapResult reports a cleanup run.
type ReapResult struct {
	DeletedCount int      `json:"deleted_count"`
	DeletedIDs   []string `json:"deleted_ids"`
	Message      string   `json:"message,omitempty"`
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

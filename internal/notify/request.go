package notify

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when the recipient has fewer than 10 digits after normalization.
var ErrInvalidPhone = errors.New("notify: invalid phone number")

// Kind selects the message template.
type Kind string

const (
	KindConfirm Kind = "confirm"
	KindCancel  Kind = "cancel"
)

// ParseKind maps a request type to a Kind. Anything other than cancel is a confirmation.
func ParseKind(value string) Kind {
	if strings.EqualFold(strings.TrimSpace(value), string(KindCancel)) {
		return KindCancel
	}
	return KindConfirm
}

// Request asks for one customer notification.
type Request struct {
	Kind    Kind   `json:"type"`
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Date    string `json:"preferred_date"`
	Slot    string `json:"preferred_time"`
	Service string `json:"service,omitempty"`
}

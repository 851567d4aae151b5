package notify

import (
	"fmt"
	"strings"

	"github.com/cosmetica/clinic-booking/internal/messaging/templates"
)

var renderer = &templates.Renderer{}

const (
	confirmTemplate = templates.BookingConfirmed
	cancelTemplate  = templates.BookingCancelled

	defaultCustomerName = "Customer"
	defaultService      = "General consultation"
)

// Clinic carries the branding used in customer messages.
type Clinic struct {
	Name         string
	ContactPhone string
}

type messageData struct {
	Clinic       string
	ContactPhone string
	Name         string
	Date         string
	Slot         string
	Service      string
}

// Compose renders the free-text message for a request.
func Compose(clinic Clinic, req Request) (string, error) {
	tmpl := confirmTemplate
	if req.Kind == KindCancel {
		tmpl = cancelTemplate
	}
	out, err := renderer.Render(string(req.Kind), tmpl, messageData{
		Clinic:       clinic.Name,
		ContactPhone: clinic.ContactPhone,
		Name:         strings.TrimSpace(req.Name),
		Date:         req.Date,
		Slot:         req.Slot,
		Service:      strings.TrimSpace(req.Service),
	})
	if err != nil {
		return "", fmt.Errorf("notify: compose %s: %w", req.Kind, err)
	}
	return out, nil
}

// TemplateVariables are the positional variables of the approved WhatsApp templates.
func TemplateVariables(req Request) map[string]string {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultCustomerName
	}
	vars := map[string]string{
		"1": name,
		"2": req.Date,
		"3": req.Slot,
	}
	if req.Kind != KindCancel {
		service := strings.TrimSpace(req.Service)
		if service == "" {
			service = defaultService
		}
		vars["4"] = service
	}
	return vars
}

package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cosmetica/clinic-booking/internal/messaging"
	"github.com/cosmetica/clinic-booking/internal/observability/metrics"
	"github.com/cosmetica/clinic-booking/internal/phone"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

// Sender delivers one WhatsApp message.
type Sender interface {
	Send(ctx context.Context, msg messaging.WhatsAppMessage) (*messaging.Receipt, error)
}

// DispatcherConfig holds branding, template SIDs per kind and the optional staff copy recipients.
type DispatcherConfig struct {
	Clinic      Clinic
	Templates   map[Kind]string
	StaffEmails []string
}

// Dispatcher composes and sends customer notifications. It performs a single attempt.
type Dispatcher struct {
	sender  Sender
	email   EmailSender
	cfg     DispatcherConfig
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithStaffEmail copies every notification to the configured staff addresses.
func WithStaffEmail(sender EmailSender) DispatcherOption {
	return func(d *Dispatcher) { d.email = sender }
}

// WithDispatchMetrics records dispatch outcomes.
func WithDispatchMetrics(m *metrics.BookingMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if sender == nil {
		panic("notify: sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{sender: sender, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch normalizes the recipient, composes the message and hands it to the provider.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*messaging.Receipt, error) {
	req.Kind = ParseKind(string(req.Kind))
	normalized := phone.Normalize(req.Phone)
	if !phone.Valid(normalized) {
		d.metrics.ObserveNotification(string(req.Kind), "invalid_phone", 0)
		return nil, ErrInvalidPhone
	}

	msg := messaging.WhatsAppMessage{To: phone.WhatsAppAddress(normalized)}
	if sid := d.cfg.Templates[req.Kind]; sid != "" {
		msg.TemplateSID = sid
		msg.Variables = TemplateVariables(req)
	} else {
		body, err := Compose(d.cfg.Clinic, req)
		if err != nil {
			return nil, err
		}
		msg.Body = body
	}

	start := time.Now()
	receipt, err := d.sender.Send(ctx, msg)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		kind := string(messaging.KindOf(err))
		if kind == "" {
			kind = "error"
		}
		d.metrics.ObserveNotification(string(req.Kind), kind, elapsed)
		d.logger.Warn("whatsapp notification failed",
			"kind", req.Kind,
			"to", logging.MaskPhone(normalized),
			"error_kind", kind,
			"error", err,
		)
	} else {
		d.metrics.ObserveNotification(string(req.Kind), "sent", elapsed)
	}

	d.copyStaff(ctx, req, normalized, err)
	return receipt, err
}

func (d *Dispatcher) copyStaff(ctx context.Context, req Request, normalized string, sendErr error) {
	if d.email == nil || len(d.cfg.StaffEmails) == 0 {
		return
	}
	subject := fmt.Sprintf("New booking: %s %s", req.Date, req.Slot)
	if req.Kind == KindCancel {
		subject = fmt.Sprintf("Booking cancelled: %s %s", req.Date, req.Slot)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nPhone: +%s\nDate: %s\nTime: %s\n", req.Name, normalized, req.Date, req.Slot)
	if req.Service != "" {
		fmt.Fprintf(&b, "Service: %s\n", req.Service)
	}
	if sendErr != nil {
		fmt.Fprintf(&b, "\nWhatsApp delivery failed (%s). Please contact the customer directly.\n", messaging.KindOf(sendErr))
	}
	if err := d.email.Send(ctx, EmailMessage{To: d.cfg.StaffEmails, Subject: subject, Body: b.String()}); err != nil {
		d.logger.Warn("staff email failed", "kind", req.Kind, "error", err)
	}
}

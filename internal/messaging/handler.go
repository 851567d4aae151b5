package messaging

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cosmetica/clinic-booking/internal/observability/metrics"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

var twilioTracer = otel.Tracer("clinic.internal.messaging.twilio")

// StatusHandler receives Twilio delivery status callbacks for outbound WhatsApp messages.
type StatusHandler struct {
	authToken string
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// NewStatusHandler builds the callback handler. Signatures are checked when authToken is set.
func NewStatusHandler(authToken string, m *metrics.BookingMetrics, logger *logging.Logger) *StatusHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusHandler{authToken: authToken, metrics: m, logger: logger}
}

// TwilioStatus handles POST /webhooks/twilio/status requests.
func (h *StatusHandler) TwilioStatus(w http.ResponseWriter, r *http.Request) {
	_, span := twilioTracer.Start(r.Context(), "messaging.twilio.status", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	if h.authToken != "" && !ValidateTwilioSignature(r, h.authToken, buildAbsoluteURL(r)) {
		h.logger.Warn("invalid twilio signature")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		span.RecordError(errors.New("invalid twilio signature"))
		return
	}

	cb, err := ParseStatusCallback(r)
	if err != nil {
		h.logger.Error("invalid twilio status callback", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	span.SetAttributes(
		attribute.String("clinic.twilio.message_sid", cb.MessageSid),
		attribute.String("clinic.twilio.status", cb.MessageStatus),
	)
	h.metrics.ObserveDeliveryStatus(cb.MessageStatus)

	if cb.Failed() {
		h.logger.Warn("whatsapp delivery failed",
			"message_sid", cb.MessageSid,
			"to", logging.MaskPhone(cb.To),
			"kind", cb.Kind(),
			"code", cb.ErrorCode,
			"error", cb.ErrorMessage,
		)
	} else {
		h.logger.Debug("whatsapp delivery status", "message_sid", cb.MessageSid, "status", cb.MessageStatus)
	}
	w.WriteHeader(http.StatusNoContent)
}

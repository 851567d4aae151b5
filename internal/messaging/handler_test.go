package messaging

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cosmetica/clinic-booking/internal/observability/metrics"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

func TestValidateTwilioSignature(t *testing.T) {
	authToken := "test_token"
	webhookURL := "https://example.com/webhook"

	formData := url.Values{}
	formData.Set("MessageSid", "SM123")
	formData.Set("MessageStatus", "delivered")

	req := httptest.NewRequest(http.MethodPost, webhookURL, strings.NewReader(formData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	payload := buildSignaturePayload(webhookURL, formData)
	req.Header.Set("X-Twilio-Signature", computeSignature(payload, authToken))

	if !ValidateTwilioSignature(req, authToken, webhookURL) {
		t.Error("expected signature validation to pass")
	}
}

func TestValidateTwilioSignature_InvalidSignature(t *testing.T) {
	formData := url.Values{}
	formData.Set("MessageSid", "SM123")

	req := httptest.NewRequest(http.MethodPost, "https://example.com/webhook", strings.NewReader(formData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "invalid_signature")

	if ValidateTwilioSignature(req, "test_token", "https://example.com/webhook") {
		t.Error("expected signature validation to fail")
	}
}

func TestValidateTwilioSignature_MissingSignature(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://example.com/webhook", strings.NewReader(""))
	if ValidateTwilioSignature(req, "test_token", "https://example.com/webhook") {
		t.Error("expected validation to fail without signature")
	}
}

func statusRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestParseStatusCallback(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("MessageStatus", "Undelivered")
	form.Set("ErrorCode", "63049")
	form.Set("To", "whatsapp:+919876543210")

	cb, err := ParseStatusCallback(statusRequest(form))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cb.Failed() || cb.Kind() != ErrKindDeclined {
		t.Fatalf("expected declined failure, got %+v kind=%s", cb, cb.Kind())
	}

	form.Set("ErrorCode", "abc")
	if _, err := ParseStatusCallback(statusRequest(form)); err == nil {
		t.Fatalf("expected error for bad code")
	}
}

func TestStatusHandler(t *testing.T) {
	h := NewStatusHandler("", metrics.NewBookingMetrics(prometheus.NewRegistry()), logging.Discard())

	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("MessageStatus", "delivered")
	w := httptest.NewRecorder()
	h.TwilioStatus(w, statusRequest(form))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.TwilioStatus(w, statusRequest(url.Values{}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStatusHandler_WithSignatureValidation(t *testing.T) {
	h := NewStatusHandler("secret", nil, logging.Discard())
	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("MessageStatus", "sent")

	w := httptest.NewRecorder()
	h.TwilioStatus(w, statusRequest(form))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", w.Code)
	}

	req := statusRequest(form)
	req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload("http://example.com/webhooks/twilio/status", form), "secret"))
	w = httptest.NewRecorder()
	h.TwilioStatus(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with signature, got %d", w.Code)
	}
}

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cosmetica/clinic-booking/pkg/logging"
)

var whatsappTracer = otel.Tracer("clinic.internal.messaging.whatsapp_send")

const defaultTwilioBaseURL = "https://api.twilio.com"

// WhatsAppMessage is one outbound message. When TemplateSID is set the provider renders the
// approved template with Variables; otherwise Body is sent as free text.
type WhatsAppMessage struct {
	To          string
	Body        string
	TemplateSID string
	Variables   map[string]string
}

// Receipt is the provider's acceptance of a message.
type Receipt struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// WhatsAppConfig configures the Twilio WhatsApp sender.
type WhatsAppConfig struct {
	AccountSID     string
	AuthToken      string
	From           string
	BaseURL        string
	StatusCallback string
	HTTPClient     *http.Client
}

// WhatsAppSender posts WhatsApp messages using Twilio's REST API. It never retries.
type WhatsAppSender struct {
	accountSID     string
	authToken      string
	from           string
	baseURL        string
	statusCallback string
	httpClient     *http.Client
	logger         *logging.Logger
}

// NewWhatsAppSender validates credentials and builds a sender.
func NewWhatsAppSender(cfg WhatsAppConfig, logger *logging.Logger) (*WhatsAppSender, error) {
	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("%w: account sid, auth token and from number are required", ErrMisconfigured)
	}
	if !strings.HasPrefix(cfg.AccountSID, "AC") {
		return nil, fmt.Errorf("%w: account sid must start with AC", ErrMisconfigured)
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	from := cfg.From
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	return &WhatsAppSender{
		accountSID:     cfg.AccountSID,
		authToken:      cfg.AuthToken,
		from:           from,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		statusCallback: cfg.StatusCallback,
		httpClient:     client,
		logger:         logger,
	}, nil
}

// Send dispatches a single message.
func (s *WhatsAppSender) Send(ctx context.Context, msg WhatsAppMessage) (*Receipt, error) {
	if msg.To == "" {
		return nil, errors.New("messaging: to required")
	}
	if msg.TemplateSID == "" && strings.TrimSpace(msg.Body) == "" {
		return nil, errors.New("messaging: body or template required")
	}

	ctx, span := whatsappTracer.Start(ctx, "messaging.twilio.whatsapp.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.Bool("clinic.whatsapp.template", msg.TemplateSID != ""),
		attribute.String("clinic.whatsapp.to", logging.MaskPhone(msg.To)),
	)

	payload := url.Values{}
	payload.Set("To", msg.To)
	payload.Set("From", s.from)
	if msg.TemplateSID != "" {
		vars, err := json.Marshal(msg.Variables)
		if err != nil {
			return nil, fmt.Errorf("messaging: encode template variables: %w", err)
		}
		payload.Set("ContentSid", msg.TemplateSID)
		payload.Set("ContentVariables", string(vars))
	} else {
		payload.Set("Body", msg.Body)
	}
	if s.statusCallback != "" {
		payload.Set("StatusCallback", s.statusCallback)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return nil, fmt.Errorf("messaging: build request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		perr := &ProviderError{Kind: ErrKindTransport, Err: err}
		span.RecordError(perr)
		return nil, perr
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := parseTwilioError(resp.StatusCode, body)
		span.RecordError(perr)
		s.logger.Warn("twilio whatsapp send failed",
			"to", logging.MaskPhone(msg.To),
			"kind", perr.Kind,
			"status", perr.HTTPStatus,
			"code", perr.Code,
		)
		return nil, perr
	}

	var receipt Receipt
	if len(body) > 0 {
		if err := json.Unmarshal(body, &receipt); err != nil {
			s.logger.Warn("twilio response not decodable", "error", err)
		}
	}
	span.SetAttributes(attribute.String("clinic.whatsapp.sid", receipt.SID))
	s.logger.Info("twilio whatsapp sent", "to", logging.MaskPhone(msg.To), "sid", receipt.SID, "status", receipt.Status)
	return &receipt, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func parseTwilioError(status int, body []byte) *ProviderError {
	perr := &ProviderError{HTTPStatus: status}
	trimmed := strings.TrimSpace(string(body))
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		perr.Code = parsed.Code
		perr.Message = parsed.Message
	} else {
		perr.Message = trimmed
	}
	perr.Kind = classify(status, perr.Code)
	return perr
}

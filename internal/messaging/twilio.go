package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ValidateTwilioSignature validates that a request came from Twilio
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	if err := r.ParseForm(); err != nil {
		return false
	}

	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload is the URL followed by every sorted key and its values.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

// computeSignature computes the HMAC-SHA1 signature
func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// StatusCallback is Twilio's delivery status report for an outbound message.
type StatusCallback struct {
	MessageSid    string
	MessageStatus string
	To            string
	ErrorCode     int
	ErrorMessage  string
}

// Failed reports whether the status is terminal and unsuccessful.
func (c StatusCallback) Failed() bool {
	return c.MessageStatus == "failed" || c.MessageStatus == "undelivered"
}

// Kind classifies a failed delivery; it is empty for successful statuses.
func (c StatusCallback) Kind() ErrorKind {
	if !c.Failed() {
		return ""
	}
	return classify(0, c.ErrorCode)
}

// ParseStatusCallback parses a Twilio status callback form.
func ParseStatusCallback(r *http.Request) (*StatusCallback, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	cb := &StatusCallback{
		MessageSid:    r.FormValue("MessageSid"),
		MessageStatus: strings.ToLower(r.FormValue("MessageStatus")),
		To:            r.FormValue("To"),
		ErrorMessage:  r.FormValue("ErrorMessage"),
	}
	if raw := r.FormValue("ErrorCode"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ErrorCode %q", raw)
		}
		cb.ErrorCode = code
	}
	if cb.MessageSid == "" || cb.MessageStatus == "" {
		return nil, fmt.Errorf("missing MessageSid or MessageStatus")
	}
	return cb, nil
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmetica/clinic-booking/internal/messaging"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

func postSend(h *Handler, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/functions/send-whatsapp", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.SendWhatsApp(rec, req)
	return rec
}

func TestSendWhatsApp_Success(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(NewDispatcher(sender, DispatcherConfig{Clinic: testClinic}, logging.Discard()), "", logging.Discard())

	rec := postSend(h, `{"type":"confirm","phone":"9870439934","name":"Asha","preferred_date":"2025-06-01","preferred_time":"11:00-11:30"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "SM123", resp["sid"])
	assert.Equal(t, "queued", resp["status"])
}

func TestSendWhatsApp_Errors(t *testing.T) {
	providerErr := &messaging.ProviderError{Kind: messaging.ErrKindAuth, HTTPStatus: 401}
	cases := []struct {
		name     string
		dispatch Dispatch
		token    string
		header   string
		body     string
		want     int
	}{
		{name: "misconfigured", dispatch: nil, body: `{}`, want: http.StatusServiceUnavailable},
		{name: "bad json", dispatch: dispatchFunc(nil), body: `{`, want: http.StatusBadRequest},
		{
			name: "invalid phone",
			dispatch: dispatchFunc(func(context.Context, Request) (*messaging.Receipt, error) {
				return nil, ErrInvalidPhone
			}),
			body: `{"phone":"123"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "provider error",
			dispatch: dispatchFunc(func(context.Context, Request) (*messaging.Receipt, error) {
				return nil, providerErr
			}),
			body: `{"phone":"9870439934"}`,
			want: http.StatusBadGateway,
		},
		{name: "missing token", dispatch: dispatchFunc(nil), token: "secret", body: `{}`, want: http.StatusUnauthorized},
		{name: "wrong token", dispatch: dispatchFunc(nil), token: "secret", header: "nope", body: `{}`, want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(tc.dispatch, tc.token, logging.Discard())
			rec := postSend(h, tc.body, tc.header)
			assert.Equal(t, tc.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "401")
		})
	}
}

func TestSendWhatsApp_TokenAccepted(t *testing.T) {
	h := NewHandler(NewDispatcher(&fakeSender{}, DispatcherConfig{Clinic: testClinic}, logging.Discard()), "secret", logging.Discard())
	rec := postSend(h, `{"type":"cancel","phone":"9870439934"}`, "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmetica/clinic-booking/pkg/logging"
)

func newTestSender(t *testing.T, srv *httptest.Server) *WhatsAppSender {
	t.Helper()
	s, err := NewWhatsAppSender(WhatsAppConfig{
		AccountSID: "AC123",
		AuthToken:  "token",
		From:       "+14155238886",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}, logging.Discard())
	require.NoError(t, err)
	return s
}

func TestNewWhatsAppSenderValidatesConfig(t *testing.T) {
	_, err := NewWhatsAppSender(WhatsAppConfig{AuthToken: "t", From: "+1"}, nil)
	assert.ErrorIs(t, err, ErrMisconfigured)

	_, err = NewWhatsAppSender(WhatsAppConfig{AccountSID: "SK123", AuthToken: "t", From: "+1"}, nil)
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestWhatsAppSendTemplate(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+919876543210", r.PostForm.Get("To"))
		assert.Equal(t, "whatsapp:+14155238886", r.PostForm.Get("From"))
		assert.Equal(t, "HX1", r.PostForm.Get("ContentSid"))
		assert.Empty(t, r.PostForm.Get("Body"))
		var vars map[string]string
		assert.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("ContentVariables")), &vars))
		assert.Equal(t, "Asha", vars["1"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	receipt, err := newTestSender(t, srv).Send(context.Background(), WhatsAppMessage{
		To:          "whatsapp:+919876543210",
		TemplateSID: "HX1",
		Variables:   map[string]string{"1": "Asha"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SM1", receipt.SID)
	assert.Equal(t, "queued", receipt.Status)
	assert.Equal(t, 1, calls)
}

func TestWhatsAppSendClassifiesErrorsWithoutRetry(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"auth", http.StatusUnauthorized, `{"code":20003,"message":"Authenticate"}`, ErrKindAuth},
		{"declined", http.StatusBadRequest, `{"code":63049,"message":"Meta chose not to deliver"}`, ErrKindDeclined},
		{"invalid recipient", http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number"}`, ErrKindInvalidRecipient},
		{"server error", http.StatusInternalServerError, `oops`, ErrKindRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestSender(t, srv).Send(context.Background(), WhatsAppMessage{To: "whatsapp:+919876543210", Body: "hi"})
			var perr *ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tc.kind, perr.Kind)
			assert.Equal(t, tc.status, perr.HTTPStatus)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Equal(t, 1, calls)
		})
	}
}

func TestWhatsAppSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	sender := newTestSender(t, srv)
	srv.Close()

	_, err := sender.Send(context.Background(), WhatsAppMessage{To: "whatsapp:+919876543210", Body: "hi"})
	assert.Equal(t, ErrKindTransport, KindOf(err))
}

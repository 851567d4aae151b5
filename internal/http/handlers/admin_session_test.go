package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmetica/clinic-booking/internal/auth"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

type fakeSessions struct {
	signedOut []string
	lookupErr error
}

func (f *fakeSessions) SignIn(_ context.Context, email, password string) (*auth.Session, error) {
	if email == "owner@clinic.in" && password == "correct-horse" {
		return &auth.Session{UserID: "u-1", Email: email, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	if email == "broken@clinic.in" {
		return nil, errors.New("db down")
	}
	return nil, auth.ErrInvalidCredentials
}

func (f *fakeSessions) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

func (f *fakeSessions) CurrentSession(_ context.Context, token string) (*auth.Session, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if token != "tok" {
		return nil, auth.ErrNoSession
	}
	return &auth.Session{UserID: "u-1", Email: "owner@clinic.in"}, nil
}

func sessionRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminLogin(t *testing.T) {
	h := NewAdminSessionHandler(&fakeSessions{}, logging.Discard())

	rec := httptest.NewRecorder()
	h.Login(rec, sessionRequest(http.MethodPost, "/admin/login", `{"email":"owner@clinic.in","password":"correct-horse"}`, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token":"tok"`)

	for _, body := range []string{
		`{"email":"owner@clinic.in","password":"nope"}`,
		`{"email":"stranger@clinic.in","password":"correct-horse"}`,
	} {
		rec = httptest.NewRecorder()
		h.Login(rec, sessionRequest(http.MethodPost, "/admin/login", body, ""))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid email or password"}`, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Login(rec, sessionRequest(http.MethodPost, "/admin/login", `{"email":"broken@clinic.in","password":"x"}`, ""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, sessionRequest(http.MethodPost, "/admin/login", `{`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminLogoutAndSession(t *testing.T) {
	sessions := &fakeSessions{}
	h := NewAdminSessionHandler(sessions, logging.Discard())

	rec := httptest.NewRecorder()
	h.Session(rec, sessionRequest(http.MethodGet, "/admin/session", "", "tok"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "owner@clinic.in")

	rec = httptest.NewRecorder()
	h.Session(rec, sessionRequest(http.MethodGet, "/admin/session", "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Logout(rec, sessionRequest(http.MethodPost, "/admin/logout", "", "tok"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"tok"}, sessions.signedOut)

	sessions.lookupErr = errors.New("redis down")
	rec = httptest.NewRecorder()
	h.Session(rec, sessionRequest(http.MethodGet, "/admin/session", "", "tok"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

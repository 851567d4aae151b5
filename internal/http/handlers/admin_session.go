package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cosmetica/clinic-booking/internal/auth"
	"github.com/cosmetica/clinic-booking/internal/http/middleware"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

// SessionService is the admin session collaborator.
type SessionService interface {
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	CurrentSession(ctx context.Context, token string) (*auth.Session, error)
}

// AdminSessionHandler serves admin sign-in, sign-out and session lookup.
type AdminSessionHandler struct {
	sessions SessionService
	logger   *logging.Logger
}

func NewAdminSessionHandler(sessions SessionService, logger *logging.Logger) *AdminSessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionHandler{sessions: sessions, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /admin/login
func (h *AdminSessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			jsonError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.Error("admin sign-in failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "sign-in unavailable")
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// Logout handles POST /admin/logout
func (h *AdminSessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.BearerToken(r); ok {
		if err := h.sessions.SignOut(r.Context(), token); err != nil {
			h.logger.Error("admin sign-out failed", "error", err)
			jsonError(w, http.StatusInternalServerError, "sign-out failed")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /admin/session
func (h *AdminSessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		jsonError(w, http.StatusUnauthorized, "no active session")
		return
	}
	session, err := h.sessions.CurrentSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			jsonError(w, http.StatusUnauthorized, "no active session")
			return
		}
		h.logger.Error("admin session lookup failed", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "session check failed")
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

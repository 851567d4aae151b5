package notify

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cosmetica/clinic-booking/pkg/logging"
)

// Handler exposes synchronous notification sends for staff re-sends.
type Handler struct {
	dispatch Dispatch
	apiToken string
	logger   *logging.Logger
}

// NewHandler builds the send endpoint. A nil dispatcher makes every request fail with 503.
func NewHandler(dispatch Dispatch, apiToken string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{dispatch: dispatch, apiToken: strings.TrimSpace(apiToken), logger: logger}
}

type sendResponse struct {
	OK     bool   `json:"ok"`
	SID    string `json:"sid,omitempty"`
	Status string `json:"status,omitempty"`
}

// SendWhatsApp handles POST /functions/send-whatsapp
func (h *Handler) SendWhatsApp(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.dispatch == nil {
		writeError(w, http.StatusServiceUnavailable, "Server misconfigured: messaging provider not set up")
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	receipt, err := h.dispatch.Dispatch(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidPhone) {
			writeError(w, http.StatusBadRequest, "Invalid phone number")
			return
		}
		h.logger.Error("send-whatsapp failed", "kind", req.Kind, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to send WhatsApp message")
		return
	}

	resp := sendResponse{OK: true}
	if receipt != nil {
		resp.SID = receipt.SID
		resp.Status = receipt.Status
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.apiToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.apiToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

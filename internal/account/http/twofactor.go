package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"strconv"

	"github.com/shieldsphere/shieldsphere/internal/account/service"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
	"github.com/shieldsphere/shieldsphere/pkg/httpx"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

const qrImageSize = 256

// TwoFactorHandler handles the 2FA management endpoints. The account is
// taken from the session token, never from the request body.
type TwoFactorHandler struct {
	TwoFactorService *service.TwoFactorService
}

type twoFactorSetupResponse struct {
	Secret  string `json:"secret"`
	URI     string `json:"uri"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

type twoFactorStatusResponse struct {
	Enabled bool `json:"enabled"`
}

type twoFactorDisableRequest struct {
	Password string `json:"password"`
}

// HandleSetup handles POST /v1/2fa/setup.
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email, ok := ctx.Value(httpx.CtxKeyEmail).(string)
	if !ok || email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	enr, err := h.TwoFactorService.EnableOrGetSecret(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "account_not_found", "Account no longer exists")
			return
		}
		log.Error("2fa setup failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to set up two-factor authentication")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, twoFactorSetupResponse{
		Secret:  enr.Secret,
		URI:     enr.URI,
		Issuer:  enr.Issuer,
		Account: enr.Account,
	})
}

// HandleQRImage handles GET /v1/2fa/qr.png, rendering the provisioning URI
// as a scannable PNG.
func (h *TwoFactorHandler) HandleQRImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email, ok := ctx.Value(httpx.CtxKeyEmail).(string)
	if !ok || email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	key, err := h.TwoFactorService.QRKey(ctx, email)
	if err != nil {
		if errors.Is(err, service.ErrTwoFactorNotEnabled) {
			httpx.WriteError(w, http.StatusConflict, "2fa_not_enabled", "Set up two-factor authentication first")
			return
		}
		log.Error("2fa qr failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to render QR code")
		return
	}

	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		log.Error("2fa qr render failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to render QR code")
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Error("2fa qr encode failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to render QR code")
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandleStatus handles GET /v1/2fa/status.
func (h *TwoFactorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	email, ok := ctx.Value(httpx.CtxKeyEmail).(string)
	if !ok || email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	enabled, err := h.TwoFactorService.Status(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "account_not_found", "Account no longer exists")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to load status")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, twoFactorStatusResponse{Enabled: enabled})
}

// HandleDisable handles POST /v1/2fa/disable. Disabling requires re-proving
// the account password.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email, ok := ctx.Value(httpx.CtxKeyEmail).(string)
	if !ok || email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	var req twoFactorDisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Password is required to disable two-factor authentication")
		return
	}

	err := h.TwoFactorService.Disable(ctx, email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_password", "Password verification failed")
		case errors.Is(err, service.ErrTwoFactorNotEnabled):
			httpx.WriteError(w, http.StatusConflict, "2fa_not_enabled", "Two-factor authentication is not enabled")
		case errors.Is(err, store.ErrNotFound):
			httpx.WriteError(w, http.StatusNotFound, "account_not_found", "Account no longer exists")
		default:
			log.Error("2fa disable failed", "email", email, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to disable two-factor authentication")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Two-factor authentication disabled",
	})
}

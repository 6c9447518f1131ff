package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/service"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
	"github.com/shieldsphere/shieldsphere/pkg/httpx"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

// LoginHandler handles the two authentication entry points: the password
// stage and the TOTP completion stage.
type LoginHandler struct {
	Gateway *service.AuthGateway
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type completeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginResponse struct {
	SecondFactorRequired bool `json:"second_factor_required,omitempty"`

	Token     string                 `json:"token,omitempty"`
	TokenType string                 `json:"token_type,omitempty"`
	ExpiresIn int64                  `json:"expires_in,omitempty"`
	Risk      *domain.RiskAssessment `json:"risk,omitempty"`
	Location  *domain.GeoLocation    `json:"location,omitempty"`
}

// HandleLogin handles POST /v1/login.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Email and password are required")
		return
	}

	res, err := h.Gateway.Login(ctx, service.Attempt{
		Email:     req.Email,
		Password:  req.Password,
		ClientIP:  httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Login failed")
		return
	}

	if res.SecondFactorRequired {
		httpx.WriteJSON(w, http.StatusOK, loginResponse{SecondFactorRequired: true})
		return
	}

	writeAuthenticated(w, res)
}

// HandleComplete handles POST /v1/login/2fa.
func (h *LoginHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Email and code are required")
		return
	}

	res, err := h.Gateway.CompleteTwoFactor(ctx, service.Attempt{
		Email:     req.Email,
		Code:      req.Code,
		ClientIP:  httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTOTPCode):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_code", "Invalid TOTP code")
		case errors.Is(err, service.ErrTwoFactorNotEnabled):
			httpx.WriteError(w, http.StatusConflict, "2fa_not_enabled", "Two-factor authentication is not enabled for this account")
		case errors.Is(err, store.ErrNotFound):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		default:
			log.Error("2fa completion failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Login failed")
		}
		return
	}

	writeAuthenticated(w, res)
}

func writeAuthenticated(w http.ResponseWriter, res service.LoginResult) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresIn: int64(res.ExpiresIn.Seconds()),
		Risk:      &res.Risk,
		Location:  &res.Location,
	})
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/service"
	"github.com/shieldsphere/shieldsphere/pkg/httpx"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

// RegisterHandler handles POST /v1/register.
type RegisterHandler struct {
	AccountService *service.AccountService
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Email    string              `json:"email"`
	Breach   domain.BreachResult `json:"breach"`
	Advisory string              `json:"advisory"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	res, err := h.AccountService.Register(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_email", "A valid email address is required")
		case errors.Is(err, service.ErrPasswordTooWeak):
			httpx.WriteError(w, http.StatusBadRequest, "weak_password", "Password must be at least 8 characters")
		case errors.Is(err, service.ErrPasswordBreached):
			httpx.WriteError(w, http.StatusBadRequest, "breached_password", "This password has appeared in known data breaches, choose a different one")
		case errors.Is(err, service.ErrEmailTaken):
			httpx.WriteError(w, http.StatusConflict, "email_taken", "This email is already registered")
		default:
			log.Error("registration failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Registration failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		Email:    res.Email,
		Breach:   res.Breach,
		Advisory: res.Advisory,
	})
}

package http

import (
	"encoding/json"
	"net/http"
	"net/netip"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/extsec"
	"github.com/shieldsphere/shieldsphere/internal/account/service"
	"github.com/shieldsphere/shieldsphere/pkg/httpx"
)

// SecurityHandler exposes the standalone security tooling endpoints.
type SecurityHandler struct {
	AccountService *service.AccountService
	Reputation     *extsec.ReputationClient
}

type passwordCheckRequest struct {
	Password string `json:"password"`
}

type passwordCheckResponse struct {
	domain.BreachResult
	Advisory string `json:"advisory"`
}

type ipCheckResponse struct {
	domain.Reputation
	Recommendation string `json:"recommendation"`
}

// HandlePasswordCheck handles POST /v1/security/password-check.
func (h *SecurityHandler) HandlePasswordCheck(w http.ResponseWriter, r *http.Request) {
	var req passwordCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Password is required")
		return
	}

	res := h.AccountService.CheckPassword(r.Context(), req.Password)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, passwordCheckResponse{
		BreachResult: res,
		Advisory:     extsec.Advisory(res),
	})
}

// HandleIPCheck handles GET /v1/security/ip-check/{ip}.
func (h *SecurityHandler) HandleIPCheck(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")
	if _, err := netip.ParseAddr(ip); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_ip", "Invalid IP address format")
		return
	}

	rep := h.Reputation.Check(r.Context(), ip)

	httpx.WriteJSON(w, http.StatusOK, ipCheckResponse{
		Reputation:     rep,
		Recommendation: extsec.Recommendation(rep),
	})
}

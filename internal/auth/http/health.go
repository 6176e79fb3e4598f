package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/aussiebroadwan/authify/pkg/httpx"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	StartTime time.Time
	Version   string
	Store     store.Store
	Keys      *jwtx.KeySet
}

func (h *HealthHandler) response(status string) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.StartTime).Round(time.Second).String(),
		Version: h.Version,
	}
}

// HandleLivez godoc
//
//	@Summary		Liveness probe
//	@Description	Returns 200 while the process is serving requests. Dependencies are not checked.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Router			/livez [get]
func (h *HealthHandler) HandleLivez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.response(healthOK))
}

// HandleReadyz godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the credential store connection and that signing keys are published.
//	@Description	Reports the store driver so operators can tell a local sqlite instance from a shared postgres one.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Failure		503	{object}	authsdk.HealthResponse	"a dependency is unavailable"
//	@Router			/readyz [get]
func (h *HealthHandler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := &authsdk.HealthChecks{
		Driver:      h.Store.Driver(),
		Database:    healthOK,
		Signer:      healthOK,
		SigningKeys: len(h.Keys.PublicJWKS().Keys),
	}

	if err := h.Store.Ping(r.Context()); err != nil {
		checks.Database = "error: " + err.Error()
	}
	if !h.Keys.IsReady() {
		checks.Signer = "error: no signing keys"
	}

	status, code := healthOK, http.StatusOK
	if checks.Database != healthOK || checks.Signer != healthOK {
		status, code = healthDegraded, http.StatusServiceUnavailable
	}

	res := h.response(status)
	res.Checks = checks
	httpx.WriteJSON(w, code, res)
}

package handler

import (
	"net/http"

	"edgegate/internal/audit"
	"edgegate/internal/identity"
	"edgegate/internal/verify"
	"edgegate/pkg/logger"
)

// ChallengeHandler serves the human-verification page. The gate exempts
// this path so a challenged client can always load it.
type ChallengeHandler struct {
	sink audit.Sink
	log  *logger.Logger
}

// NewChallengeHandler creates a challenge handler
func NewChallengeHandler(sink audit.Sink, log *logger.Logger) *ChallengeHandler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &ChallengeHandler{sink: sink, log: log}
}

// Serve handles GET /challenge?returnTo=<path>
func (h *ChallengeHandler) Serve(w http.ResponseWriter, r *http.Request) {
	returnTo := verify.SanitizeReturnTo(r.URL.Query().Get("returnTo"))
	ip := identity.FromRequest(r)

	h.sink.Record("CHALLENGE_SERVED", map[string]any{
		"ip":       ip,
		"returnTo": returnTo,
	})

	h.log.WithFields(map[string]interface{}{
		"ip":       ip,
		"returnTo": returnTo,
	}).Debug("Serving challenge page")

	verify.RenderChallenge(w, returnTo)
}

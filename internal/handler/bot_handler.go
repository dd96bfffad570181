package handler

import (
	"encoding/json"
	"net/http"

	"edgegate/internal/audit"
	"edgegate/internal/botscore"
	"edgegate/internal/identity"
	"edgegate/internal/verify"
	"edgegate/pkg/logger"
)

// BotHandler exposes the bot heuristics: a scoring probe on GET and the
// verification acknowledgment on POST.
type BotHandler struct {
	sink audit.Sink
	log  *logger.Logger
}

// NewBotHandler creates a bot check handler
func NewBotHandler(sink audit.Sink, log *logger.Logger) *BotHandler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &BotHandler{sink: sink, log: log}
}

// BotCheckResponse reports the score band the request fell into.
type BotCheckResponse struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	Challenge string `json:"challenge,omitempty"`
	Score     int    `json:"score"`
}

// Check handles GET /bot-check
func (h *BotHandler) Check(w http.ResponseWriter, r *http.Request) {
	score := botscore.Score(r)
	ip := identity.FromRequest(r)

	h.sink.Record("BOT_PROTECTION_CHECK", map[string]any{
		"ip":        ip,
		"path":      r.URL.Path,
		"userAgent": r.Header.Get("User-Agent"),
		"score":     score,
	})

	if score >= botscore.ThresholdBlock {
		writeJSON(w, h.log, http.StatusForbidden, BotCheckResponse{
			Allowed: false,
			Reason:  "High bot score",
			Score:   score,
		})
		return
	}

	if score >= botscore.ThresholdChallenge && !verify.IsVerified(r) {
		writeJSON(w, h.log, http.StatusAccepted, BotCheckResponse{
			Allowed:   false,
			Reason:    "JS challenge required",
			Challenge: "/challenge",
			Score:     score,
		})
		return
	}

	writeJSON(w, h.log, http.StatusOK, BotCheckResponse{Allowed: true, Score: score})
}

// VerifyRequest is the payload a client posts after passing the challenge.
type VerifyRequest struct {
	Verified bool `json:"verified"`
}

// Verify handles POST /bot-check. On {verified:true} it issues the
// server-set verification cookie; the acknowledgment grants nothing beyond
// marking the session as human for scoring.
func (h *BotHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Verified {
		writeJSON(w, h.log, http.StatusBadRequest, map[string]interface{}{"allowed": false})
		return
	}

	verify.Issue(w)

	h.sink.Record("BOT_VERIFY", map[string]any{
		"ip":   identity.FromRequest(r),
		"path": r.URL.Path,
	})

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{"allowed": true})
}

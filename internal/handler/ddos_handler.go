package handler

import (
	"math"
	"net/http"
	"strconv"

	"edgegate/internal/audit"
	"edgegate/internal/identity"
	"edgegate/internal/ratelimit"
	apperrors "edgegate/pkg/errors"
	"edgegate/pkg/logger"
)

// DDoSHandler exposes the rate budget as a standalone check endpoint.
// Reads cost less than writes so cheap GET traffic sustains higher
// throughput from the same bucket.
type DDoSHandler struct {
	limiter    ratelimit.Store
	sink       audit.Sink
	log        *logger.Logger
	readCost   int
	writeCost  int
	failClosed bool
}

// NewDDoSHandler creates a DDoS check handler
func NewDDoSHandler(limiter ratelimit.Store, sink audit.Sink, log *logger.Logger, readCost, writeCost int, failClosed bool) *DDoSHandler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &DDoSHandler{
		limiter:    limiter,
		sink:       sink,
		log:        log,
		readCost:   readCost,
		writeCost:  writeCost,
		failClosed: failClosed,
	}
}

// RateCheckResponse is the body for both outcomes of the check.
type RateCheckResponse struct {
	OK              bool   `json:"ok"`
	Reason          string `json:"reason,omitempty"`
	RemainingTokens int    `json:"remainingTokens"`
}

// Get handles GET /ddos-check, consuming the light read cost.
func (h *DDoSHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, h.readCost, "Rate limit exceeded. Slow down or solve a challenge.")
}

// Post handles POST /ddos-check, consuming the heavier write cost.
func (h *DDoSHandler) Post(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, h.writeCost, "Rate limit exceeded for write operation.")
}

func (h *DDoSHandler) check(w http.ResponseWriter, r *http.Request, cost int, rejectReason string) {
	ip := identity.FromRequest(r)

	res, err := h.limiter.TryConsume(r.Context(), ip, cost)
	if err != nil {
		h.log.WithError(err).Error("Rate limiter unreachable")
		if h.failClosed {
			writeAppError(w, h.log, apperrors.NewUnavailableError("Rate limiter unavailable", err))
			return
		}
		// Fail open: pretend the budget covered it.
		res = ratelimit.Result{Allowed: true, Remaining: -1}
	}

	remaining := int(math.Floor(res.Remaining))

	h.sink.Record("DDOS_RATE_LIMIT", map[string]any{
		"ip":        ip,
		"method":    r.Method,
		"path":      r.URL.Path,
		"allowed":   res.Allowed,
		"cost":      cost,
		"remaining": remaining,
	})

	if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
		writeJSON(w, h.log, http.StatusTooManyRequests, RateCheckResponse{
			OK:              false,
			Reason:          rejectReason,
			RemainingTokens: remaining,
		})
		return
	}

	writeJSON(w, h.log, http.StatusOK, RateCheckResponse{OK: true, RemainingTokens: remaining})
}

package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"edgegate/internal/domain"
	"edgegate/internal/gate"
	"edgegate/internal/verify"
	"edgegate/pkg/logger"
)

// blockResponse is the JSON body returned for blocked requests.
type blockResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

// Gate runs the admission pipeline before routing. Allowed requests pass
// through untouched; blocked ones get a structured 403 or 429; challenged
// ones are served the challenge document in place of the original content.
func Gate(g *gate.Gate, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dec := g.Evaluate(r)

			switch dec.Action {
			case domain.ActionChallenge:
				verify.RenderChallenge(w, dec.ReturnTo)

			case domain.ActionBlock:
				status := http.StatusForbidden
				switch {
				case dec.Reason == gate.ReasonStoreDown:
					// A degraded backend under fail-closed is an outage,
					// not a verdict on the client.
					status = http.StatusServiceUnavailable
				case dec.RetryAfter > 0:
					status = http.StatusTooManyRequests
					w.Header().Set("Retry-After", strconv.Itoa(int(dec.RetryAfter.Seconds())))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				if err := json.NewEncoder(w).Encode(blockResponse{OK: false, Reason: dec.Reason}); err != nil {
					log.WithError(err).Error("Failed to encode block response")
				}

			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

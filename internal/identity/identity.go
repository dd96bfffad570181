// Package identity resolves a canonical client key from request headers.
package identity

import (
	"net/http"
	"strings"
)

// Unknown is the shared key assigned to clients that carry no identity
// signal at all. Every such client lands in the same rate budget; that is
// a deliberate fail-open trade-off rather than an oversight.
const Unknown = "unknown"

// FromRequest extracts the client IP for keying the blacklist and rate
// limiter. Precedence: first X-Forwarded-For entry, then CF-Connecting-IP,
// then Unknown. It never fails.
func FromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); ip != "" {
			return ip
		}
	}
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	return Unknown
}

// Package botscore computes a heuristic score estimating how likely a
// request is automated. The score is a pure function of the request's
// headers, cookies, and query string; nothing is persisted between calls.
package botscore

import (
	"net/http"
	"strings"

	"edgegate/internal/verify"
)

// Score bands consumed by the gate: below ThresholdChallenge the request
// passes, between the two the client must solve the challenge unless
// already verified, at or above ThresholdBlock it is rejected outright.
const (
	ThresholdChallenge = 25
	ThresholdBlock     = 60
)

// HoneypotParam is a query parameter no legitimate client sends; links
// carrying it are only ever followed by naive scrapers.
const HoneypotParam = "hp"

// signatures are matched case-insensitively as substrings of the
// user-agent. Only the first match counts.
var signatures = []string{
	"bot",
	"crawler",
	"spider",
	"python-requests",
	"curl",
	"wget",
	"scrapy",
}

// Score accumulates signal weights into a non-negative bot score.
func Score(r *http.Request) int {
	score := 0

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	if len(ua) < 10 {
		score += 20
	}
	for _, sig := range signatures {
		if strings.Contains(ua, sig) {
			score += 50
			break
		}
	}

	if r.Header.Get("Accept-Language") == "" {
		score += 5
	}
	if r.Header.Get("Referer") == "" {
		score += 2
	}

	if r.URL.Query().Has(HoneypotParam) {
		score += 30
	}

	if verify.IsVerified(r) {
		score -= 40
	}

	if score < 0 {
		return 0
	}
	return score
}

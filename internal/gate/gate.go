// Package gate composes the admission checks into a single synchronous
// decision per request: allow, challenge, or block. Ordering is cheapest
// and most authoritative first, short-circuiting on the first non-allow
// outcome.
package gate

import (
	"net/http"
	"strings"

	"edgegate/internal/audit"
	"edgegate/internal/blacklist"
	"edgegate/internal/botscore"
	"edgegate/internal/domain"
	"edgegate/internal/identity"
	"edgegate/internal/ratelimit"
	"edgegate/internal/verify"
	"edgegate/pkg/logger"
)

// Reason strings surfaced in responses. Stable: clients and dashboards
// match on them.
const (
	ReasonExempt       = "exempt"
	ReasonBlacklisted  = "IP blacklisted"
	ReasonHighBotScore = "High bot score"
	ReasonChallenge    = "JS challenge required"
	ReasonRateLimited  = "Rate limit exceeded. Slow down or solve a challenge."
	ReasonStoreDown    = "Security backend unavailable"
	ReasonWithinBudget = "ok"
)

// ProbeHeader marks trusted infrastructure probes that bypass all checks.
const ProbeHeader = "X-Internal-Probe"

// Config controls which requests the gate exempts and how it meters.
type Config struct {
	// SkipPrefixes and SkipPaths are exempt from every check. The
	// challenge path must be listed here so challenged clients are not
	// challenged again while loading it.
	SkipPrefixes []string
	SkipPaths    []string

	// SessionCookie names an application session cookie whose presence
	// exempts authenticated users.
	SessionCookie string

	// SelfMetered paths run the full pipeline except the limiter stage;
	// their handlers consume tokens themselves at an endpoint-specific
	// cost.
	SelfMetered []string

	// ReadCost and WriteCost weight limiter consumption by method.
	ReadCost  int
	WriteCost int

	// FailClosed blocks requests when a backing store errors instead of
	// waving them through.
	FailClosed bool
}

// DefaultConfig returns the reference gate wiring.
func DefaultConfig() Config {
	return Config{
		SkipPrefixes: []string{
			"/static/",
			"/assets/",
			"/images/",
			"/favicon.ico",
			"/robots.txt",
			"/sitemap.xml",
			"/manifest.json",
			"/challenge",
		},
		SkipPaths:     []string{"/health", "/status"},
		SessionCookie: "gs_session",
		SelfMetered:   []string{"/ddos-check", "/ip-blacklist-check", "/bot-check"},
		ReadCost:      1,
		WriteCost:     5,
	}
}

// Gate evaluates requests against the blacklist, bot scorer, verification
// state, and rate limiter.
type Gate struct {
	cfg       Config
	blacklist blacklist.Store
	limiter   ratelimit.Store
	sink      audit.Sink
	log       *logger.Logger
}

// New wires a gate. A nil sink disables auditing.
func New(cfg Config, bl blacklist.Store, rl ratelimit.Store, sink audit.Sink, log *logger.Logger) *Gate {
	if cfg.ReadCost <= 0 {
		cfg.ReadCost = 1
	}
	if cfg.WriteCost <= 0 {
		cfg.WriteCost = 5
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Gate{cfg: cfg, blacklist: bl, limiter: rl, sink: sink, log: log}
}

// Evaluate runs the decision pipeline for one request. It performs no I/O
// beyond the configured stores and always returns a decision; exactly one
// audit event is emitted per call.
func (g *Gate) Evaluate(r *http.Request) domain.Decision {
	path := r.URL.Path
	key := identity.FromRequest(r)

	dec := g.evaluate(r, key, path)

	g.sink.Record("GATE_DECISION", map[string]any{
		"ip":        key,
		"method":    r.Method,
		"path":      path,
		"decision":  string(dec.Action),
		"reason":    dec.Reason,
		"score":     dec.Score,
		"remaining": dec.RemainingTokens,
	})
	return dec
}

func (g *Gate) evaluate(r *http.Request, key, path string) domain.Decision {
	// 1. Infrastructure exemptions bypass everything.
	if g.exempt(r, path) {
		return domain.Decision{Action: domain.ActionAllow, Reason: ReasonExempt}
	}

	// 2. Blacklist is authoritative regardless of score or budget.
	blocked, err := g.blacklist.Contains(r.Context(), key)
	if err != nil {
		if dec, fatal := g.storeFailure(err, "blacklist"); fatal {
			return dec
		}
	} else if blocked {
		return domain.Decision{Action: domain.ActionBlock, Reason: ReasonBlacklisted}
	}

	// 3–4. Bot heuristics: outright block, or challenge the medium band.
	score := botscore.Score(r)
	if score >= botscore.ThresholdBlock {
		return domain.Decision{Action: domain.ActionBlock, Reason: ReasonHighBotScore, Score: score}
	}
	if score >= botscore.ThresholdChallenge && !verify.IsVerified(r) {
		returnTo := path
		if r.URL.RawQuery != "" {
			returnTo += "?" + r.URL.RawQuery
		}
		return domain.Decision{
			Action:   domain.ActionChallenge,
			Reason:   ReasonChallenge,
			Score:    score,
			ReturnTo: returnTo,
		}
	}

	// 5. Rate budget, weighted by method. Endpoints that meter themselves
	// are skipped so one request never pays twice.
	if g.selfMetered(path) {
		return domain.Decision{Action: domain.ActionAllow, Reason: ReasonWithinBudget, Score: score}
	}

	cost := g.cfg.WriteCost
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		cost = g.cfg.ReadCost
	}

	res, err := g.limiter.TryConsume(r.Context(), key, cost)
	if err != nil {
		if dec, fatal := g.storeFailure(err, "ratelimit"); fatal {
			return dec
		}
		return domain.Decision{Action: domain.ActionAllow, Reason: ReasonWithinBudget, Score: score}
	}
	if !res.Allowed {
		return domain.Decision{
			Action:          domain.ActionBlock,
			Reason:          ReasonRateLimited,
			Score:           score,
			RemainingTokens: res.Remaining,
			RetryAfter:      res.RetryAfter,
		}
	}

	return domain.Decision{
		Action:          domain.ActionAllow,
		Reason:          ReasonWithinBudget,
		Score:           score,
		RemainingTokens: res.Remaining,
	}
}

func (g *Gate) exempt(r *http.Request, path string) bool {
	for _, p := range g.cfg.SkipPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range g.cfg.SkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if r.Header.Get(ProbeHeader) == "1" {
		return true
	}
	if g.cfg.SessionCookie != "" {
		if c, err := r.Cookie(g.cfg.SessionCookie); err == nil && c.Value != "" {
			return true
		}
	}
	return false
}

func (g *Gate) selfMetered(path string) bool {
	for _, p := range g.cfg.SelfMetered {
		if path == p {
			return true
		}
	}
	return false
}

// storeFailure applies the fail-open/fail-closed policy for an unreachable
// store. The error is always logged; fatal is true only when the policy
// turns it into a block.
func (g *Gate) storeFailure(err error, store string) (domain.Decision, bool) {
	if g.log != nil {
		g.log.WithError(err).WithField("store", store).Error("Store unreachable during evaluation")
	}
	if g.cfg.FailClosed {
		return domain.Decision{Action: domain.ActionBlock, Reason: ReasonStoreDown}, true
	}
	return domain.Decision{}, false
}

package gate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgegate/internal/audit"
	"edgegate/internal/blacklist"
	"edgegate/internal/domain"
	"edgegate/internal/ratelimit"
	"edgegate/internal/verify"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

func newGate(t *testing.T, opts ...func(*Config)) (*Gate, *audit.ChannelSink) {
	t.Helper()

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	sink := audit.NewChannelSink(64)
	g := New(cfg,
		blacklist.NewMemory(blacklist.DefaultSeed),
		ratelimit.NewMemory(100, 5),
		sink,
		nil,
	)
	return g, sink
}

func browserRequest(target, ip string) *http.Request {
	r := httptest.NewRequest("GET", target, nil)
	r.Header.Set("User-Agent", browserUA)
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set("Referer", "https://example.com/")
	r.Header.Set("X-Forwarded-For", ip)
	return r
}

func drainOne(t *testing.T, sink *audit.ChannelSink) audit.Event {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no audit event emitted")
		return audit.Event{}
	}
}

func TestEvaluateAllowsCleanBrowser(t *testing.T) {
	g, sink := newGate(t)

	dec := g.Evaluate(browserRequest("/blog", "203.0.113.7"))
	assert.Equal(t, domain.ActionAllow, dec.Action)
	assert.Less(t, dec.Score, 25)

	ev := drainOne(t, sink)
	assert.Equal(t, "GATE_DECISION", ev.Tag)
	assert.Equal(t, "203.0.113.7", ev.Fields["ip"])
	assert.Equal(t, "allow", ev.Fields["decision"])
}

func TestEvaluateExemptions(t *testing.T) {
	tests := []struct {
		name string
		mod  func(r *http.Request)
		path string
	}{
		{name: "health path", path: "/health"},
		{name: "status path", path: "/status"},
		{name: "static prefix", path: "/static/app.css"},
		{name: "challenge path", path: "/challenge"},
		{name: "challenge with query", path: "/challenge?returnTo=/blog"},
		{
			name: "internal probe header",
			path: "/anything",
			mod:  func(r *http.Request) { r.Header.Set(ProbeHeader, "1") },
		},
		{
			name: "session cookie",
			path: "/anything",
			mod:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "gs_session", Value: "abc"}) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGate(t)

			// A request that would otherwise be blocked outright.
			r := httptest.NewRequest("GET", tt.path, nil)
			r.Header.Set("User-Agent", "curl/8.5.0")
			r.Header.Set("X-Forwarded-For", "198.51.100.10")
			if tt.mod != nil {
				tt.mod(r)
			}

			dec := g.Evaluate(r)
			assert.Equal(t, domain.ActionAllow, dec.Action)
			assert.Equal(t, ReasonExempt, dec.Reason)
		})
	}
}

func TestEvaluateBlacklistBeatsEverything(t *testing.T) {
	g, sink := newGate(t)

	// Clean browser signals, verified cookie, full budget: the listing
	// still wins.
	r := browserRequest("/blog", "198.51.100.10")
	r.AddCookie(&http.Cookie{Name: verify.CookieName, Value: verify.CookieValue})

	dec := g.Evaluate(r)
	assert.Equal(t, domain.ActionBlock, dec.Action)
	assert.Equal(t, ReasonBlacklisted, dec.Reason)
	assert.Zero(t, dec.RetryAfter)

	ev := drainOne(t, sink)
	assert.Equal(t, "block", ev.Fields["decision"])
}

func TestEvaluateHighScoreBlocksEvenWhenVerified(t *testing.T) {
	g, _ := newGate(t)

	// Short signature UA plus honeypot pushes the score past the block
	// threshold even after the verified cookie's -40.
	r := httptest.NewRequest("GET", "/blog?hp=1", nil)
	r.Header.Set("User-Agent", "curl")
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.AddCookie(&http.Cookie{Name: verify.CookieName, Value: verify.CookieValue})

	dec := g.Evaluate(r)
	assert.Equal(t, domain.ActionBlock, dec.Action)
	assert.Equal(t, ReasonHighBotScore, dec.Reason)
	assert.GreaterOrEqual(t, dec.Score, 60)
}

func TestEvaluateMediumScoreChallenges(t *testing.T) {
	g, _ := newGate(t)

	// Empty UA +20, missing accept-language +5, missing referer +2 = 27.
	r := httptest.NewRequest("GET", "/products?page=2", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")

	dec := g.Evaluate(r)
	require.Equal(t, domain.ActionChallenge, dec.Action)
	assert.Equal(t, 27, dec.Score)
	assert.Equal(t, "/products?page=2", dec.ReturnTo)
}

func TestEvaluateVerifiedCookieSkipsChallenge(t *testing.T) {
	g, _ := newGate(t)

	r := httptest.NewRequest("GET", "/products", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.AddCookie(&http.Cookie{Name: verify.CookieName, Value: verify.CookieValue})

	dec := g.Evaluate(r)
	assert.Equal(t, domain.ActionAllow, dec.Action)
}

func TestEvaluateRateLimitBlocksWithRetryAfter(t *testing.T) {
	g, _ := newGate(t)

	// POST weight 5 against capacity 100: 20 requests drain it.
	r := httptest.NewRequest("POST", "/submit", nil)
	r.Header.Set("User-Agent", browserUA)
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set("Referer", "https://example.com/")
	r.Header.Set("X-Forwarded-For", "203.0.113.8")

	var dec domain.Decision
	for i := 0; i < 20; i++ {
		dec = g.Evaluate(cloneRequest(r))
		require.Equal(t, domain.ActionAllow, dec.Action)
	}

	dec = g.Evaluate(cloneRequest(r))
	assert.Equal(t, domain.ActionBlock, dec.Action)
	assert.Equal(t, ReasonRateLimited, dec.Reason)
	assert.GreaterOrEqual(t, dec.RetryAfter, time.Second)
}

func cloneRequest(r *http.Request) *http.Request {
	return r.Clone(context.Background())
}

func TestEvaluateSelfMeteredPathsSkipTheLimiter(t *testing.T) {
	g, _ := newGate(t)

	// Far more traffic than the budget covers; the endpoint meters itself,
	// so the gate never blocks it on tokens.
	for i := 0; i < 150; i++ {
		dec := g.Evaluate(browserRequest("/ddos-check", "203.0.113.7"))
		require.Equal(t, domain.ActionAllow, dec.Action)
	}
}

func TestEvaluateEmitsExactlyOneAuditEventPerCall(t *testing.T) {
	g, sink := newGate(t)

	g.Evaluate(browserRequest("/blog", "203.0.113.7"))
	g.Evaluate(browserRequest("/health", "203.0.113.7"))
	g.Evaluate(browserRequest("/blog", "198.51.100.10"))

	for i := 0; i < 3; i++ {
		drainOne(t, sink)
	}
	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected extra audit event %v", ev)
	default:
	}
}

type failingBlacklist struct{ err error }

func (f failingBlacklist) Contains(context.Context, string) (bool, error) { return false, f.err }
func (f failingBlacklist) Add(context.Context, string) error              { return f.err }
func (f failingBlacklist) Remove(context.Context, string) error           { return f.err }

type failingLimiter struct{ err error }

func (f failingLimiter) TryConsume(context.Context, string, int) (ratelimit.Result, error) {
	return ratelimit.Result{}, f.err
}

func (f failingLimiter) Peek(context.Context, string) (ratelimit.Result, error) {
	return ratelimit.Result{}, f.err
}

func TestEvaluateStoreFailurePolicy(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("fail open lets the request through", func(t *testing.T) {
		cfg := DefaultConfig()
		g := New(cfg, failingBlacklist{err: boom}, failingLimiter{err: boom}, nil, nil)

		dec := g.Evaluate(browserRequest("/blog", "203.0.113.7"))
		assert.Equal(t, domain.ActionAllow, dec.Action)
	})

	t.Run("fail closed blocks", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FailClosed = true
		g := New(cfg, failingBlacklist{err: boom}, ratelimit.NewMemory(100, 5), nil, nil)

		dec := g.Evaluate(browserRequest("/blog", "203.0.113.7"))
		assert.Equal(t, domain.ActionBlock, dec.Action)
		assert.Equal(t, ReasonStoreDown, dec.Reason)
	})

	t.Run("fail closed blocks on limiter failure", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FailClosed = true
		g := New(cfg, blacklist.NewMemory(nil), failingLimiter{err: boom}, nil, nil)

		dec := g.Evaluate(browserRequest("/blog", "203.0.113.7"))
		assert.Equal(t, domain.ActionBlock, dec.Action)
	})
}

func TestEvaluateUnknownClientsShareOneBudget(t *testing.T) {
	g, _ := newGate(t)

	// No identity headers at all: both "different" clients draw from the
	// shared unknown bucket.
	r := httptest.NewRequest("POST", "/submit", nil)
	r.Header.Set("User-Agent", browserUA)
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set("Referer", "https://example.com/")

	var dec domain.Decision
	for i := 0; i < 20; i++ {
		dec = g.Evaluate(cloneRequest(r))
		require.Equal(t, domain.ActionAllow, dec.Action)
	}

	dec = g.Evaluate(cloneRequest(r))
	assert.Equal(t, domain.ActionBlock, dec.Action)
	assert.Equal(t, ReasonRateLimited, dec.Reason)
}

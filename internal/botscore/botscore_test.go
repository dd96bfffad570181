package botscore

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"edgegate/internal/verify"
)

type signals struct {
	ua             string
	acceptLanguage string
	referer        string
	verified       bool
	query          string
}

func request(t *testing.T, s signals) *http.Request {
	t.Helper()
	target := "/page"
	if s.query != "" {
		target += "?" + s.query
	}
	r := httptest.NewRequest("GET", target, nil)
	if s.ua != "" {
		r.Header.Set("User-Agent", s.ua)
	}
	if s.acceptLanguage != "" {
		r.Header.Set("Accept-Language", s.acceptLanguage)
	}
	if s.referer != "" {
		r.Header.Set("Referer", s.referer)
	}
	if s.verified {
		r.AddCookie(&http.Cookie{Name: verify.CookieName, Value: verify.CookieValue})
	}
	return r
}

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		in   signals
		want int
	}{
		{
			name: "well-behaved browser",
			in:   signals{ua: browserUA, acceptLanguage: "en-US", referer: "https://example.com/"},
			want: 0,
		},
		{
			name: "empty UA and missing browser headers lands in challenge band",
			in:   signals{},
			want: 27, // 20 + 5 + 2
		},
		{
			name: "short UA",
			in:   signals{ua: "tiny", acceptLanguage: "en", referer: "https://example.com/"},
			want: 20,
		},
		{
			name: "signature match counts once",
			in:   signals{ua: "SpiderBot-crawler", acceptLanguage: "en", referer: "https://example.com/"},
			want: 50,
		},
		{
			name: "curl with verification cookie",
			in:   signals{ua: "curl/8.5.0 libcurl", acceptLanguage: "en", referer: "https://example.com/", verified: true},
			want: 10, // 50 - 40
		},
		{
			name: "honeypot parameter",
			in:   signals{ua: browserUA, acceptLanguage: "en", referer: "https://example.com/", query: "hp=1"},
			want: 30,
		},
		{
			name: "verified cookie never drives score negative",
			in:   signals{ua: browserUA, acceptLanguage: "en", referer: "https://example.com/", verified: true},
			want: 0,
		},
		{
			name: "scripted client without browser headers",
			in:   signals{ua: "python-requests/2.31"},
			want: 57, // 50 + 5 + 2
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(request(t, tt.in)))
		})
	}
}

func TestScoreIsPure(t *testing.T) {
	r := request(t, signals{ua: "curl/8.5.0 libcurl", verified: true, query: "hp=drop"})
	first := Score(r)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Score(r))
	}
	assert.GreaterOrEqual(t, first, 0)
}

func TestVerifiedCookieShiftsScoreByForty(t *testing.T) {
	with := Score(request(t, signals{ua: "curl/8.5.0 libcurl", acceptLanguage: "en", referer: "https://example.com/", verified: true}))
	without := Score(request(t, signals{ua: "curl/8.5.0 libcurl", acceptLanguage: "en", referer: "https://example.com/"}))
	assert.Equal(t, 40, without-with)
}

package verify

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVerified(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
		want   bool
	}{
		{name: "no cookie", cookie: nil, want: false},
		{name: "valid cookie", cookie: &http.Cookie{Name: CookieName, Value: CookieValue}, want: true},
		{name: "wrong value", cookie: &http.Cookie{Name: CookieName, Value: "yes"}, want: false},
		{name: "empty value", cookie: &http.Cookie{Name: CookieName, Value: ""}, want: false},
		{name: "unrelated cookie", cookie: &http.Cookie{Name: "session", Value: "1"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}
			assert.Equal(t, tt.want, IsVerified(r))
		})
	}
}

func TestIsVerifiedMalformedCookieHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Cookie", ";;=;garbage")
	assert.False(t, IsVerified(r))
}

func TestIssue(t *testing.T) {
	rec := httptest.NewRecorder()
	Issue(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, CookieValue, c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, CookieMaxAge, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestSanitizeReturnTo(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/dashboard", "/dashboard"},
		{"/search?q=a&page=2", "/search?q=a&page=2"},
		{"https://evil.example/", "/"},
		{"//evil.example/", "/"},
		{"not-a-path", "/"},
		{"javascript:alert(1)", "/"},
		{"/%zz", "/"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeReturnTo(tt.in), "input %q", tt.in)
	}
}

func TestRenderChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderChallenge(rec, "/blog?page=3")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, CookieName+"="+CookieValue)
	assert.Contains(t, body, "Max-Age=3600")
	assert.Contains(t, body, "/blog?page=3")
}

func TestRenderChallengeSanitizesTarget(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderChallenge(rec, "https://evil.example/phish")

	assert.NotContains(t, rec.Body.String(), "evil.example")
}

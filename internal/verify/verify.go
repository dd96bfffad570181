// Package verify holds the cookie-backed human-verification state: a
// client that has passed the challenge carries a short-lived cookie that
// downgrades its bot score and bypasses further challenges. The cookie is
// not integrity-protected; this marks a session as probably-human for
// scoring purposes and grants no privilege beyond that.
package verify

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"
)

const (
	// CookieName marks a client as human-verified when set to CookieValue.
	CookieName  = "__human_verified"
	CookieValue = "1"

	// CookieMaxAge bounds how long verification lasts; the server never
	// extends it, clients re-verify by passing the challenge again.
	CookieMaxAge = 3600
)

// IsVerified reports whether the request carries a valid verification
// cookie. Anything malformed or absent counts as unverified.
func IsVerified(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return c.Value == CookieValue
}

// Issue sets the server-side variant of the verification cookie. Unlike
// the client-set challenge cookie it is not script-readable.
func Issue(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    CookieValue,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SanitizeReturnTo restricts a returnTo target to a relative path on this
// site so the challenge page cannot be used as an open redirect.
func SanitizeReturnTo(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return raw
}

var challengeTmpl = template.Must(template.New("challenge").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Verifying</title>
  </head>
  <body>
    <p>Verifying you are human&hellip;</p>
    <script>
      document.cookie = "{{.CookieName}}={{.CookieValue}}; Path=/; Max-Age={{.MaxAge}}; SameSite=Lax";
      setTimeout(function () {
        window.location.href = {{.ReturnTo}};
      }, 600);
    </script>
  </body>
</html>
`))

// RenderChallenge writes the challenge document: a page that sets the
// verification cookie from client-side script and then navigates back to
// returnTo. The returnTo value is sanitized before rendering.
func RenderChallenge(w http.ResponseWriter, returnTo string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = challengeTmpl.Execute(w, map[string]any{
		"CookieName":  CookieName,
		"CookieValue": CookieValue,
		"MaxAge":      CookieMaxAge,
		"ReturnTo":    SanitizeReturnTo(returnTo),
	})
}

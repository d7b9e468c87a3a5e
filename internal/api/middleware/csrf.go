package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfCookieTTL  = 24 * time.Hour
)

// CSRFGuard issues per-session CSRF tokens. A token is an HMAC of the
// session cookie, so it needs no server-side storage and stays valid for
// as long as the session does.
type CSRFGuard struct {
	key []byte
}

// NewCSRFGuard derives the signing key from secret. An empty secret gets a
// random key, which invalidates outstanding tokens on restart.
func NewCSRFGuard(secret string) *CSRFGuard {
	if secret == "" {
		key := make([]byte, 32)
		_, _ = rand.Read(key)
		return &CSRFGuard{key: key}
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("eco-energy csrf"))
	return &CSRFGuard{key: mac.Sum(nil)}
}

// Token returns the token for the caller's cookie session, or "" when the
// request is not cookie-authenticated.
func (g *CSRFGuard) Token(r *http.Request) string {
	session := sessionCookie(r)
	if session == "" {
		return ""
	}
	return g.sign(session)
}

func (g *CSRFGuard) sign(session string) string {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(session))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (g *CSRFGuard) valid(session, provided string) bool {
	want := g.sign(session)
	return hmac.Equal([]byte(want), []byte(provided))
}

// CSRF protects state-changing requests authenticated only by the "token"
// cookie. Requests carrying the JWT in a header cannot be forged cross-site
// and pass straight through.
func CSRF(guard *CSRFGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				setCSRFCookie(w, r, guard)
				next.ServeHTTP(w, r)
				return
			}

			if r.Header.Get("Authorization") != "" || r.Header.Get("X-Auth-Token") != "" {
				next.ServeHTTP(w, r)
				return
			}

			session := sessionCookie(r)
			if session == "" {
				// No cookie session either; Auth will reject it.
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(csrfHeaderName)
			if provided == "" {
				writeError(w, http.StatusForbidden, "CSRF token missing")
				return
			}
			if !guard.valid(session, provided) {
				writeError(w, http.StatusForbidden, "Invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setCSRFCookie(w http.ResponseWriter, r *http.Request, guard *CSRFGuard) {
	token := guard.Token(r)
	if token == "" {
		return
	}
	if c, err := r.Cookie(csrfCookieName); err == nil && c.Value == token {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false, // read by the client and echoed in X-CSRF-Token
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(csrfCookieTTL.Seconds()),
	})
}

func sessionCookie(r *http.Request) string {
	cookie, err := r.Cookie("token")
	if err != nil {
		return ""
	}
	return cookie.Value
}

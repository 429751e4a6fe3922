package httpx

import (
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/service"
)

const (
	codeVerifierMaxAge = 600 // 10 minutes
	// refreshCookieMaxAge outlives the access token so an expired session can
	// still be rotated.
	refreshCookieMaxAge = 30 * 24 * 60 * 60
)

// SessionCookies names and writes the session cookies for one deployment.
type SessionCookies struct {
	Prefix string
	Domain string
}

// AccessName is the access token cookie name.
func (c SessionCookies) AccessName() string { return c.prefix() + "-access-token" }

// RefreshName is the refresh token cookie name.
func (c SessionCookies) RefreshName() string { return c.prefix() + "-refresh-token" }

// VerifierName is the PKCE code verifier cookie name.
func (c SessionCookies) VerifierName() string { return c.prefix() + "-code-verifier" }

func (c SessionCookies) prefix() string {
	if c.Prefix == "" {
		return "sb"
	}
	return c.Prefix
}

// Read extracts the session tokens from r.
func (c SessionCookies) Read(r *http.Request) service.SessionTokens {
	return service.SessionTokens{
		AccessToken:  cookieValue(r, c.AccessName()),
		RefreshToken: cookieValue(r, c.RefreshName()),
	}
}

// SetSession writes both session cookies for s.
func (c SessionCookies) SetSession(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if s.ExpiresAt.IsZero() || maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	http.SetCookie(w, c.cookie(r, c.AccessName(), s.AccessToken, maxAge))
	if s.RefreshToken != "" {
		http.SetCookie(w, c.cookie(r, c.RefreshName(), s.RefreshToken, refreshCookieMaxAge))
	}
}

// ClearSession expires both session cookies.
func (c SessionCookies) ClearSession(w http.ResponseWriter, r *http.Request) {
	c.clear(w, r, c.AccessName())
	c.clear(w, r, c.RefreshName())
}

// SetVerifier stores the PKCE verifier until the callback.
func (c SessionCookies) SetVerifier(w http.ResponseWriter, r *http.Request, verifier string) {
	http.SetCookie(w, c.cookie(r, c.VerifierName(), verifier, codeVerifierMaxAge))
}

// Verifier returns the stored PKCE verifier, if any.
func (c SessionCookies) Verifier(r *http.Request) string {
	return cookieValue(r, c.VerifierName())
}

// ClearVerifier expires the PKCE verifier cookie.
func (c SessionCookies) ClearVerifier(w http.ResponseWriter, r *http.Request) {
	c.clear(w, r, c.VerifierName())
}

// ApplyToRequest replaces the session cookies on r with those of s so
// downstream handlers see the rotated tokens.
func (c SessionCookies) ApplyToRequest(r *http.Request, s domainauth.Session) {
	kept := make([]*http.Cookie, 0, len(r.Cookies())+2)
	for _, ck := range r.Cookies() {
		if ck.Name == c.AccessName() || ck.Name == c.RefreshName() {
			continue
		}
		kept = append(kept, ck)
	}
	kept = append(kept,
		&http.Cookie{Name: c.AccessName(), Value: s.AccessToken},
		&http.Cookie{Name: c.RefreshName(), Value: s.RefreshToken},
	)
	r.Header.Del("Cookie")
	for _, ck := range kept {
		r.AddCookie(ck)
	}
}

func (c SessionCookies) cookie(r *http.Request, name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// clear mirrors the attributes used when setting so browsers match the cookie.
func (c SessionCookies) clear(w http.ResponseWriter, r *http.Request, name string) {
	ck := c.cookie(r, name, "", -1)
	ck.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, ck)
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

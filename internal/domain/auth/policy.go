package auth

import (
	"net/url"
	"strings"
)

const (
	// LoginPath is where unauthenticated callers are sent.
	LoginPath = "/login"
	// DefaultDestination is the fallback target after sign-in.
	DefaultDestination = "/dashboard"
	// RedirectParam carries the post-login destination.
	RedirectParam = "redirectTo"
)

// Action is the outcome kind of a policy decision.
type Action int

const (
	ActionAllow Action = iota
	ActionRedirect
)

func (a Action) String() string {
	if a == ActionRedirect {
		return "redirect"
	}
	return "allow"
}

// Decision reasons, used for logs and metrics only.
const (
	ReasonUnauthenticated      = "unauthenticated"
	ReasonAlreadyAuthenticated = "already_authenticated"
	ReasonInsufficientRole     = "insufficient_role"
)

// Decision is the pure output of Decide.
type Decision struct {
	Action Action
	Target string
	Reason string
}

// Allow is the zero-reason pass-through decision.
func Allow() Decision { return Decision{Action: ActionAllow} }

// RedirectTo builds a redirect decision.
func RedirectTo(target, reason string) Decision {
	return Decision{Action: ActionRedirect, Target: target, Reason: reason}
}

// Policy holds the knobs of the access policy. The zero value does not
// enforce the admin role; use DefaultPolicy for production behavior.
type Policy struct {
	EnforceAdminRole bool
}

// DefaultPolicy enforces the admin role on admin-gated routes.
func DefaultPolicy() Policy {
	return Policy{EnforceAdminRole: true}
}

// DecisionInput groups the request facts the policy needs.
// RequestURL must carry the request origin (scheme and host) and path.
type DecisionInput struct {
	Class      RouteClass
	Identity   *Identity
	RequestURL *url.URL
	RedirectTo string
}

// Decide applies the DefaultPolicy.
func Decide(in DecisionInput) Decision {
	return DefaultPolicy().Decide(in)
}

// Decide evaluates the route access table for a single request.
func (p Policy) Decide(in DecisionInput) Decision {
	switch in.Class {
	case RouteProtected, RouteAdminGated:
		if in.Identity == nil {
			return RedirectTo(LoginRedirect(in.RequestURL), ReasonUnauthenticated)
		}
		if in.Class == RouteAdminGated && p.EnforceAdminRole && ResolveRole(in.Identity) != RoleAdmin {
			return RedirectTo(DefaultDestination, ReasonInsufficientRole)
		}
		return Allow()
	case RouteAuthOnly:
		if in.Identity == nil {
			return Allow()
		}
		if target, ok := SafeRedirect(in.RedirectTo, Origin(in.RequestURL)); ok {
			return RedirectTo(target, ReasonAlreadyAuthenticated)
		}
		return RedirectTo(DefaultDestination, ReasonAlreadyAuthenticated)
	default:
		return Allow()
	}
}

// LoginRedirect builds the login URL that returns the caller to u after sign-in.
func LoginRedirect(u *url.URL) string {
	original := "/"
	if u != nil {
		original = u.RequestURI()
	}
	return LoginPath + "?" + RedirectParam + "=" + url.QueryEscape(original)
}

// Origin returns the scheme://host part of u, or nil when u has no host.
func Origin(u *url.URL) *url.URL {
	if u == nil || u.Host == "" {
		return nil
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}
}

// SafeRedirect validates raw as a redirect target for origin. It accepts absolute
// or relative URLs and only returns ok when the resolved target shares scheme,
// host and port with origin. The returned target is relative (path, query, fragment).
func SafeRedirect(raw string, origin *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || origin == nil || strings.ContainsAny(raw, "\\\r\n\t") {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	resolved := origin.ResolveReference(ref)
	if !sameOrigin(resolved, origin) {
		return "", false
	}
	path := resolved.EscapedPath()
	if path == "" {
		path = "/"
	}
	if strings.HasPrefix(path, "//") {
		return "", false
	}
	target := path
	if resolved.RawQuery != "" {
		target += "?" + resolved.RawQuery
	}
	if resolved.Fragment != "" {
		target += "#" + resolved.EscapedFragment()
	}
	return target, true
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	}
	return ""
}

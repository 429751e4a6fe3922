package httpx

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// parseBoolQuery returns a pointer to the boolean value of key, or nil when
// the parameter is absent or not a boolean.
func parseBoolQuery(r *http.Request, key string) *bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

// ParseLimitOffset parses common pagination params and clamps to sane bounds.
// - defLimit: default limit when not specified
// - maxLimit: maximum allowed limit (values > maxLimit are clamped to maxLimit).
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int) {
	if maxLimit < 1 {
		maxLimit = 1
	}
	limit := parseIntQuery(r, "limit", defLimit)
	if limit <= 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := parseIntQuery(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// requestOrigin reconstructs the scheme and host the client used.
func requestOrigin(r *http.Request) *url.URL {
	scheme := "http"
	if isSecure(r) {
		scheme = "https"
	}
	if r.Host == "" {
		return nil
	}
	return &url.URL{Scheme: scheme, Host: r.Host}
}

// requestURL is r's URL made absolute with requestOrigin.
func requestURL(r *http.Request) *url.URL {
	u := *r.URL
	if origin := requestOrigin(r); origin != nil {
		u.Scheme = origin.Scheme
		u.Host = origin.Host
	}
	return &u
}

// wantsJSON reports whether the client asked for a JSON response.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

package gotrue

// Package gotrue is an HTTP client for GoTrue-compatible identity providers
// (the hosted Supabase Auth API). Each exported method is a single round trip.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/target/sitegate/internal/adapters/claims"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/ports"
)

const (
	apiPrefix       = "/auth/v1"
	maxResponseBody = 1 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the project URL, e.g. https://abc.supabase.co.
	BaseURL string
	// APIKey is the public (anon) key sent as the apikey header.
	APIKey string
	// Roles extracts the role claim from user payloads. Optional.
	Roles *claims.RoleExtractor
	// Timeout bounds each call. Defaults to 5s.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the provider's /auth/v1 API.
type Client struct {
	base    *url.URL
	apiKey  string
	roles   *claims.RoleExtractor
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

var _ ports.IdentityProvider = (*Client)(nil)

// NewClient validates opts and constructs a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", opts.BaseURL)
	}
	if opts.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:    base,
		apiKey:  opts.APIKey,
		roles:   opts.Roles,
		timeout: timeout,
		http:    hc,
		logger:  logger.With("component", "gotrue"),
	}, nil
}

// Issuer is the value the provider puts in the iss claim of access tokens.
func (c *Client) Issuer() string {
	return c.endpoint("", nil)
}

// JWKSURL is where the provider publishes its signing keys.
func (c *Client) JWKSURL() string {
	return c.endpoint("/.well-known/jwks.json", nil)
}

// Verify implements ports.TokenVerifier by asking the user endpoint.
func (c *Client) Verify(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	return c.GetUser(ctx, accessToken)
}

// GetUser returns the identity behind accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	if accessToken == "" {
		return domainauth.Identity{}, errors.New("access token is required")
	}
	var user map[string]any
	err := c.call(ctx, callSpec{
		op:     "get_user",
		method: http.MethodGet,
		path:   "/user",
		bearer: accessToken,
	}, &user)
	if err != nil {
		return domainauth.Identity{}, err
	}
	return claims.FromUser(user, c.roles)
}

// ExchangeCode trades a PKCE auth code for a session.
func (c *Client) ExchangeCode(ctx context.Context, in ports.ExchangeRequest) (domainauth.Session, error) {
	if in.Code == "" {
		return domainauth.Session{}, errors.New("auth code is required")
	}
	body := map[string]string{"auth_code": in.Code, "code_verifier": in.CodeVerifier}
	return c.token(ctx, "exchange_code", "pkce", body)
}

// SignInWithPassword authenticates an email/password pair.
func (c *Client) SignInWithPassword(ctx context.Context, in ports.Credentials) (domainauth.Session, error) {
	body := map[string]string{"email": in.Email, "password": in.Password}
	return c.token(ctx, "sign_in_password", "password", body)
}

// Refresh rotates a session using its refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domainauth.Session, error) {
	if refreshToken == "" {
		return domainauth.Session{}, errors.New("refresh token is required")
	}
	return c.token(ctx, "refresh", "refresh_token", map[string]string{"refresh_token": refreshToken})
}

// SignUp registers a new user. The provider returns a session right away only
// when email confirmation is disabled.
func (c *Client) SignUp(ctx context.Context, in ports.SignUpRequest) (ports.SignUpResult, error) {
	q := url.Values{}
	if in.EmailRedirectTo != "" {
		q.Set("redirect_to", in.EmailRedirectTo)
	}
	var raw json.RawMessage
	err := c.call(ctx, callSpec{
		op:     "sign_up",
		method: http.MethodPost,
		path:   "/signup",
		query:  q,
		body:   map[string]string{"email": in.Email, "password": in.Password},
	}, &raw)
	if err != nil {
		return ports.SignUpResult{}, err
	}
	var probe struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ports.SignUpResult{}, fmt.Errorf("decode sign up: %w", err)
	}
	if probe.AccessToken != "" {
		sess, err := c.sessionFrom(raw)
		if err != nil {
			return ports.SignUpResult{}, err
		}
		return ports.SignUpResult{User: sess.User, Session: &sess}, nil
	}
	var user map[string]any
	if err := json.Unmarshal(raw, &user); err != nil {
		return ports.SignUpResult{}, fmt.Errorf("decode sign up: %w", err)
	}
	id, err := claims.FromUser(user, c.roles)
	if err != nil {
		return ports.SignUpResult{}, fmt.Errorf("decode sign up: %w", err)
	}
	return ports.SignUpResult{User: id}, nil
}

// AuthorizeURL builds the provider redirect for an OAuth sign-in.
func (c *Client) AuthorizeURL(in ports.OAuthRequest) (string, error) {
	if in.Provider == "" {
		return "", errors.New("provider is required")
	}
	q := url.Values{}
	q.Set("provider", in.Provider)
	if in.RedirectTo != "" {
		q.Set("redirect_to", in.RedirectTo)
	}
	if in.CodeChallenge != "" {
		q.Set("code_challenge", in.CodeChallenge)
		q.Set("code_challenge_method", "s256")
	}
	return c.endpoint("/authorize", q), nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return c.call(ctx, callSpec{
		op:     "sign_out",
		method: http.MethodPost,
		path:   "/logout",
		bearer: accessToken,
	}, nil)
}

// tokenResponse is the provider's token payload. The oauth2.Token fields cover
// the standard part; the rest is provider specific.
type tokenResponse struct {
	oauth2.Token
	ExpiresAt int64          `json:"expires_at"`
	User      map[string]any `json:"user"`
}

func (c *Client) token(ctx context.Context, op, grant string, body any) (domainauth.Session, error) {
	var raw json.RawMessage
	err := c.call(ctx, callSpec{
		op:     op,
		method: http.MethodPost,
		path:   "/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	}, &raw)
	if err != nil {
		return domainauth.Session{}, err
	}
	return c.sessionFrom(raw)
}

func (c *Client) sessionFrom(raw []byte) (domainauth.Session, error) {
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return domainauth.Session{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return domainauth.Session{}, errors.New("token response has no access token")
	}
	user, err := claims.FromUser(tr.User, c.roles)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("decode token user: %w", err)
	}
	expires := time.Unix(tr.ExpiresAt, 0)
	if tr.ExpiresAt == 0 && tr.ExpiresIn > 0 {
		expires = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return domainauth.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.Type(),
		ExpiresAt:    expires,
		User:         user,
	}, nil
}

type callSpec struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	bearer string
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + apiPrefix + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) call(ctx context.Context, spec callSpec, out any) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveProviderCall(spec.op, started, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if spec.body != nil {
		b, mErr := json.Marshal(spec.body)
		if mErr != nil {
			return fmt.Errorf("%s: encode body: %w", spec.op, mErr)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, spec.method, c.endpoint(spec.path, spec.query), reqBody)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", spec.op, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if spec.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if spec.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+spec.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", spec.op, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", "op", spec.op, "error", cerr)
		}
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", spec.op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %w", spec.op, parseError(resp.StatusCode, payload))
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", spec.op, err)
	}
	return nil
}

// errorBody covers the error shapes the provider has used across versions.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func parseError(status int, payload []byte) *ports.ProviderError {
	pe := &ports.ProviderError{Status: status}
	var eb errorBody
	if json.Unmarshal(payload, &eb) == nil {
		pe.Code = firstNonEmpty(eb.ErrorCode, eb.Error)
		pe.Message = firstNonEmpty(eb.ErrorDescription, eb.Msg, eb.Message, eb.Error)
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

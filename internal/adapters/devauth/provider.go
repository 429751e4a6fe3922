package devauth

// Package devauth provides an in-process IdentityProvider for local development.
// Users, codes and tokens live in memory and vanish on restart.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/ports"
)

// Config controls the dev provider's seeded user.
type Config struct {
	UserID          string
	Email           string
	Password        string
	Role            string        // stored as user_metadata.role; empty for none
	SessionDuration time.Duration // default 1h when zero
	Logger          *slog.Logger
}

type user struct {
	identity domainauth.Identity
	password string
}

type tokenEntry struct {
	email     string
	expiresAt time.Time
}

// Provider implements ports.IdentityProvider and ports.TokenVerifier in memory.
// OAuth sign-ins short-circuit straight back to the callback with a local code.
type Provider struct {
	mu       sync.Mutex
	users    map[string]*user // by email
	codes    map[string]string
	access   map[string]tokenEntry
	refresh  map[string]string
	duration time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

var (
	_ ports.IdentityProvider = (*Provider)(nil)
	_ ports.TokenVerifier    = (*Provider)(nil)
)

// NewProvider constructs a dev provider seeded with the configured user.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("dev auth: Password is required")
	}
	if cfg.UserID == "" {
		cfg.UserID = uuid.NewString()
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		users:    make(map[string]*user),
		codes:    make(map[string]string),
		access:   make(map[string]tokenEntry),
		refresh:  make(map[string]string),
		duration: dur,
		now:      time.Now,
		logger:   logger.With("component", "devauth"),
	}
	seeded := domainauth.Identity{
		ID:            cfg.UserID,
		Email:         strings.ToLower(cfg.Email),
		EmailVerified: true,
		CreatedAt:     p.now(),
		AuthProvider:  "email",
	}
	if cfg.Role != "" {
		role := cfg.Role
		seeded.RoleClaim = &role
	}
	p.users[seeded.Email] = &user{identity: seeded, password: cfg.Password}
	return p, nil
}

// Verify implements ports.TokenVerifier.
func (p *Provider) Verify(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	return p.GetUser(ctx, accessToken)
}

// GetUser resolves an access token issued by this provider.
func (p *Provider) GetUser(_ context.Context, accessToken string) (domainauth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.access[accessToken]
	if !ok || p.now().After(entry.expiresAt) {
		return domainauth.Identity{}, unauthorized("invalid JWT")
	}
	u, ok := p.users[entry.email]
	if !ok {
		return domainauth.Identity{}, unauthorized("user not found")
	}
	return u.identity, nil
}

// ExchangeCode redeems a single-use code issued by AuthorizeURL or SignUp.
func (p *Provider) ExchangeCode(_ context.Context, in ports.ExchangeRequest) (domainauth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	email, ok := p.codes[in.Code]
	if !ok {
		return domainauth.Session{}, &ports.ProviderError{
			Status: http.StatusBadRequest, Code: "invalid_grant", Message: "invalid flow state, no valid flow state found",
		}
	}
	delete(p.codes, in.Code)
	return p.issueLocked(email)
}

// SignInWithPassword checks the in-memory credentials.
func (p *Provider) SignInWithPassword(_ context.Context, in ports.Credentials) (domainauth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[strings.ToLower(in.Email)]
	if !ok || u.password != in.Password {
		return domainauth.Session{}, &ports.ProviderError{
			Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials",
		}
	}
	return p.issueLocked(u.identity.Email)
}

// SignUp registers a confirmed user and logs the confirmation link instead of
// sending email.
func (p *Provider) SignUp(_ context.Context, in ports.SignUpRequest) (ports.SignUpResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.users[email]; exists {
		return ports.SignUpResult{}, &ports.ProviderError{
			Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered",
		}
	}
	id := domainauth.Identity{
		ID:            uuid.NewString(),
		Email:         email,
		EmailVerified: true,
		CreatedAt:     p.now(),
		AuthProvider:  "email",
	}
	p.users[email] = &user{identity: id, password: in.Password}

	code, err := randomString(32)
	if err != nil {
		return ports.SignUpResult{}, fmt.Errorf("generate code: %w", err)
	}
	p.codes[code] = email
	p.logger.Info("dev auth confirmation link", "email", email, "link", appendCode(in.EmailRedirectTo, code))
	return ports.SignUpResult{User: id}, nil
}

// AuthorizeURL skips the external provider and points straight back at
// RedirectTo with a code for the seeded user.
func (p *Provider) AuthorizeURL(in ports.OAuthRequest) (string, error) {
	if in.Provider == "" {
		return "", errors.New("provider is required")
	}
	code, err := randomString(32)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var email string
	for e := range p.users {
		if email == "" || e < email {
			email = e
		}
	}
	p.codes[code] = email
	return appendCode(in.RedirectTo, code), nil
}

// Refresh rotates both tokens of a session.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (domainauth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	email, ok := p.refresh[refreshToken]
	if !ok {
		return domainauth.Session{}, &ports.ProviderError{
			Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token",
		}
	}
	delete(p.refresh, refreshToken)
	return p.issueLocked(email)
}

// SignOut revokes accessToken.
func (p *Provider) SignOut(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.access, accessToken)
	return nil
}

func (p *Provider) issueLocked(email string) (domainauth.Session, error) {
	u, ok := p.users[email]
	if !ok {
		return domainauth.Session{}, unauthorized("user not found")
	}
	at, err := randomString(40)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("generate access token: %w", err)
	}
	rt, err := randomString(40)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("generate refresh token: %w", err)
	}
	now := p.now()
	exp := now.Add(p.duration)
	p.access[at] = tokenEntry{email: email, expiresAt: exp}
	p.refresh[rt] = email

	// identity as of before this sign-in, so the first sign-in reads as new
	session := domainauth.Session{AccessToken: at, RefreshToken: rt, TokenType: "bearer", ExpiresAt: exp, User: u.identity}
	u.identity.LastSignInAt = &now
	return session, nil
}

func unauthorized(msg string) error {
	return &ports.ProviderError{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: msg}
}

func appendCode(target, code string) string {
	u, err := url.Parse(target)
	if err != nil || target == "" {
		return "/auth/callback?code=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}

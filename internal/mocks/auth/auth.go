package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockIdentityProvider)(nil)
	_ ports.SessionRefresher = (*MockIdentityProvider)(nil)
	_ ports.TokenVerifier    = (*StaticVerifier)(nil)
	_ ports.CodeLedger       = (*MemoryCodeLedger)(nil)
)

// ErrInvalidToken is returned by StaticVerifier for unknown tokens.
var ErrInvalidToken = &ports.ProviderError{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "invalid JWT"}

// MockIdentityProvider simulates the hosted identity provider. Each method
// delegates to its Func field when set and otherwise returns a session for
// DefaultUser. Calls are counted per method name.
type MockIdentityProvider struct {
	GetUserFunc            func(ctx context.Context, accessToken string) (domainauth.Identity, error)
	ExchangeCodeFunc       func(ctx context.Context, in ports.ExchangeRequest) (domainauth.Session, error)
	SignInWithPasswordFunc func(ctx context.Context, in ports.Credentials) (domainauth.Session, error)
	SignUpFunc             func(ctx context.Context, in ports.SignUpRequest) (ports.SignUpResult, error)
	AuthorizeURLFunc       func(in ports.OAuthRequest) (string, error)
	RefreshFunc            func(ctx context.Context, refreshToken string) (domainauth.Session, error)
	SignOutFunc            func(ctx context.Context, accessToken string) error

	DefaultUser domainauth.Identity
	AuthURL     string

	mu    sync.Mutex
	calls map[string]int
	last  map[string]any
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		AuthURL: "https://mock-idp/auth/v1/authorize",
		DefaultUser: domainauth.Identity{
			ID:            "mock-user-1",
			Email:         "mock.user@example.com",
			EmailVerified: true,
			CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			AuthProvider:  "email",
		},
	}
}

func (m *MockIdentityProvider) record(name string, arg any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
		m.last = make(map[string]any)
	}
	m.calls[name]++
	m.last[name] = arg
}

// Calls returns how many times method name was invoked.
func (m *MockIdentityProvider) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls returns the number of provider round trips made so far.
// AuthorizeURL builds a URL locally and is not counted.
func (m *MockIdentityProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for name, n := range m.calls {
		if name != "AuthorizeURL" {
			total += n
		}
	}
	return total
}

// LastArg returns the last argument passed to method name.
func (m *MockIdentityProvider) LastArg(name string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[name]
}

func (m *MockIdentityProvider) session(access string) domainauth.Session {
	return domainauth.Session{
		AccessToken:  access,
		RefreshToken: access + "-refresh",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         m.DefaultUser,
	}
}

func (m *MockIdentityProvider) GetUser(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	m.record("GetUser", accessToken)
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, accessToken)
	}
	if accessToken == "" {
		return domainauth.Identity{}, ErrInvalidToken
	}
	return m.DefaultUser, nil
}

func (m *MockIdentityProvider) ExchangeCode(ctx context.Context, in ports.ExchangeRequest) (domainauth.Session, error) {
	m.record("ExchangeCode", in)
	if m.ExchangeCodeFunc != nil {
		return m.ExchangeCodeFunc(ctx, in)
	}
	return m.session("exchanged-access"), nil
}

func (m *MockIdentityProvider) SignInWithPassword(ctx context.Context, in ports.Credentials) (domainauth.Session, error) {
	m.record("SignInWithPassword", in)
	if m.SignInWithPasswordFunc != nil {
		return m.SignInWithPasswordFunc(ctx, in)
	}
	return m.session("password-access"), nil
}

func (m *MockIdentityProvider) SignUp(ctx context.Context, in ports.SignUpRequest) (ports.SignUpResult, error) {
	m.record("SignUp", in)
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, in)
	}
	user := m.DefaultUser
	user.Email = in.Email
	return ports.SignUpResult{User: user}, nil
}

func (m *MockIdentityProvider) AuthorizeURL(in ports.OAuthRequest) (string, error) {
	m.record("AuthorizeURL", in)
	if m.AuthorizeURLFunc != nil {
		return m.AuthorizeURLFunc(in)
	}
	if in.Provider == "" {
		return "", errors.New("provider is required")
	}
	q := url.Values{}
	q.Set("provider", in.Provider)
	q.Set("redirect_to", in.RedirectTo)
	if in.CodeChallenge != "" {
		q.Set("code_challenge", in.CodeChallenge)
		q.Set("code_challenge_method", "s256")
	}
	return m.AuthURL + "?" + q.Encode(), nil
}

func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshToken string) (domainauth.Session, error) {
	m.record("Refresh", refreshToken)
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return m.session("rotated-access"), nil
}

func (m *MockIdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	m.record("SignOut", accessToken)
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, accessToken)
	}
	return nil
}

// StaticVerifier resolves a fixed set of access tokens.
type StaticVerifier struct {
	Tokens map[string]domainauth.Identity
	// Err, when set, is returned for every call.
	Err error

	mu    sync.Mutex
	calls int
}

// NewStaticVerifier creates a StaticVerifier that accepts token for id.
func NewStaticVerifier(token string, id domainauth.Identity) *StaticVerifier {
	return &StaticVerifier{Tokens: map[string]domainauth.Identity{token: id}}
}

func (v *StaticVerifier) Verify(_ context.Context, accessToken string) (domainauth.Identity, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.Err != nil {
		return domainauth.Identity{}, v.Err
	}
	id, ok := v.Tokens[accessToken]
	if !ok {
		return domainauth.Identity{}, ErrInvalidToken
	}
	return id, nil
}

// Calls returns how many times Verify was invoked.
func (v *StaticVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// MemoryCodeLedger is an in-memory ports.CodeLedger.
type MemoryCodeLedger struct {
	// Err, when set, is returned for every claim.
	Err error

	mu    sync.Mutex
	codes map[string]struct{}
}

// NewMemoryCodeLedger creates an empty ledger.
func NewMemoryCodeLedger() *MemoryCodeLedger {
	return &MemoryCodeLedger{codes: make(map[string]struct{})}
}

func (l *MemoryCodeLedger) Claim(_ context.Context, code string) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}
	if code == "" {
		return false, errors.New("code cannot be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.codes == nil {
		l.codes = make(map[string]struct{})
	}
	if _, used := l.codes[code]; used {
		return false, nil
	}
	l.codes[code] = struct{}{}
	return true, nil
}

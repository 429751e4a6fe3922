package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	domainauth "github.com/target/sitegate/internal/domain/auth"
)

// ErrCodeAlreadyUsed is returned when a callback code was claimed before.
var ErrCodeAlreadyUsed = &ProviderError{
	Status:  http.StatusBadRequest,
	Code:    "invalid_grant",
	Message: "auth code has already been used",
}

// ProviderError is a failure reported by the identity provider.
// Message is human readable and safe to surface to the user.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("identity provider: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("identity provider: %s: %s (status %d)", e.Code, e.Message, e.Status)
}

// ProviderMessage extracts the user-facing message from err.
func ProviderMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return "authentication failed"
}

// Credentials are an email/password pair.
type Credentials struct {
	Email    string
	Password string
}

// ExchangeRequest groups parameters for the code-for-session exchange.
type ExchangeRequest struct {
	Code         string
	CodeVerifier string
}

// SignUpRequest carries registration input.
type SignUpRequest struct {
	Credentials
	// EmailRedirectTo is the absolute URL the confirmation email links back to.
	EmailRedirectTo string
}

// SignUpResult is the provider outcome of a registration. Session is nil when
// the provider requires email confirmation first.
type SignUpResult struct {
	User    domainauth.Identity
	Session *domainauth.Session
}

// OAuthRequest carries the inputs for building a provider authorize URL.
type OAuthRequest struct {
	Provider      string
	RedirectTo    string
	CodeChallenge string
}

// IdentityProvider is the hosted auth service. Every method is a single
// round trip; none of them retry.
type IdentityProvider interface {
	GetUser(ctx context.Context, accessToken string) (domainauth.Identity, error)
	ExchangeCode(ctx context.Context, in ExchangeRequest) (domainauth.Session, error)
	SignInWithPassword(ctx context.Context, in Credentials) (domainauth.Session, error)
	SignUp(ctx context.Context, in SignUpRequest) (SignUpResult, error)
	AuthorizeURL(in OAuthRequest) (string, error)
	Refresh(ctx context.Context, refreshToken string) (domainauth.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// TokenVerifier turns an access token into an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (domainauth.Identity, error)
}

// SessionRefresher rotates an expired session.
type SessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (domainauth.Session, error)
}

// CodeLedger records consumed callback codes. Claim returns false when the
// code was claimed before.
type CodeLedger interface {
	Claim(ctx context.Context, code string) (bool, error)
}

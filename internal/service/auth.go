package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/oauth2"

	"github.com/target/sitegate/internal/core"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	apperrors "github.com/target/sitegate/internal/errors"
	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/ports"
)

const (
	// CallbackPath is where the provider sends users back after sign-in.
	CallbackPath = "/auth/callback"
	// WelcomePath greets users on their first sign-in.
	WelcomePath = "/auth/welcome"
	// VerifyEmailPath tells users to confirm their address.
	VerifyEmailPath = "/auth/verify-email"
	// SignUpPath is the registration page.
	SignUpPath = "/signup"

	errMissingAuthCode = "missing_auth_code"
)

// AuthServiceConfig holds the non-dependency settings of AuthService.
type AuthServiceConfig struct {
	// SiteURL is the public origin used when the request origin is unknown
	// and for the email confirmation link.
	SiteURL string
	// OAuthProviders lists the providers BeginOAuth accepts.
	OAuthProviders []string
	// Timeout bounds each provider call. Defaults to 5s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.IdentityProvider // Required
	Ledger   ports.CodeLedger       // Optional: without it codes are not deduplicated
	Profiles core.ProfileRepository // Optional: profile rows are created on sign-in when set
	Config   AuthServiceConfig
}

// AuthService sequences sign-in, sign-up, OAuth and callback flows against the
// hosted identity provider.
type AuthService struct {
	provider  ports.IdentityProvider
	ledger    ports.CodeLedger
	profiles  core.ProfileRepository
	siteURL   *url.URL
	providers map[string]struct{}
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Provider == nil {
		panic("IdentityProvider is required")
	}
	cfg := opts.Config
	s := &AuthService{
		provider:  opts.Provider,
		ledger:    opts.Ledger,
		profiles:  opts.Profiles,
		providers: make(map[string]struct{}, len(cfg.OAuthProviders)),
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
	if u, err := url.Parse(strings.TrimRight(cfg.SiteURL, "/")); err == nil && u.Host != "" {
		s.siteURL = domainauth.Origin(u)
	}
	for _, p := range cfg.OAuthProviders {
		s.providers[strings.ToLower(p)] = struct{}{}
	}
	if s.timeout <= 0 {
		s.timeout = defaultProviderTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "auth_service")
	return s
}

// CallbackInput carries the query parameters and cookies of an auth callback.
type CallbackInput struct {
	Code             string
	Error            string
	ErrorDescription string
	RedirectTo       string
	CodeVerifier     string
	// Origin is the scheme and host of the callback request.
	Origin *url.URL
}

// CallbackResult is the outcome of CompleteCallback. Redirect is always an
// absolute URL. Session is set only when the exchange succeeded.
type CallbackResult struct {
	Redirect string
	Session  *domainauth.Session
	Outcome  string
	Err      error
}

// CompleteCallback redeems a callback code and decides where to send the user.
func (s *AuthService) CompleteCallback(ctx context.Context, in CallbackInput) CallbackResult {
	origin := s.origin(in.Origin)

	if in.Error != "" {
		msg := in.ErrorDescription
		if msg == "" {
			msg = in.Error
		}
		return s.callbackResult(origin, LoginErrorPath(msg), nil, metrics.CallbackProviderError, errors.New(msg))
	}
	if in.Code == "" {
		return s.callbackResult(origin, LoginErrorPath(errMissingAuthCode), nil, metrics.CallbackMissingCode, nil)
	}

	if s.ledger != nil {
		fresh, err := s.ledger.Claim(ctx, in.Code)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "code ledger unavailable, continuing without replay check", "error", err)
		case !fresh:
			return s.callbackResult(origin, LoginErrorPath(ports.ErrCodeAlreadyUsed.Message), nil,
				metrics.CallbackCodeReused, ports.ErrCodeAlreadyUsed)
		}
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	sess, err := s.provider.ExchangeCode(pctx, ports.ExchangeRequest{Code: in.Code, CodeVerifier: in.CodeVerifier})
	if err != nil {
		return s.callbackResult(origin, LoginErrorPath(ports.ProviderMessage(err)), nil,
			metrics.CallbackExchangeError, fmt.Errorf("exchange code: %w", err))
	}
	s.ensureProfile(ctx, sess.User)

	dest := s.destination(in.RedirectTo, origin)
	if sess.User.IsNewUser() {
		welcome := WelcomePath + "?" + domainauth.RedirectParam + "=" + url.QueryEscape(dest)
		return s.callbackResult(origin, welcome, &sess, metrics.CallbackNewUser, nil)
	}
	return s.callbackResult(origin, dest, &sess, metrics.CallbackSignedIn, nil)
}

func (s *AuthService) callbackResult(origin *url.URL, path string, sess *domainauth.Session, outcome string, err error) CallbackResult {
	metrics.ObserveCallback(outcome)
	return CallbackResult{Redirect: absolute(origin, path), Session: sess, Outcome: outcome, Err: err}
}

// SignInInput carries a password sign-in attempt.
type SignInInput struct {
	Email      string
	Password   string
	RedirectTo string
	Origin     *url.URL
}

// Validate checks the credentials are present and well formed.
func (in *SignInInput) Validate() error {
	in.Email = strings.TrimSpace(in.Email)
	return validation.ValidateStruct(in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required),
	)
}

// SignInResult is a successful sign-in. Redirect is a same-origin path.
type SignInResult struct {
	Session  domainauth.Session
	Redirect string
}

// SignIn exchanges an email and password for a session.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	if err := in.Validate(); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	sess, err := s.provider.SignInWithPassword(pctx, ports.Credentials{Email: in.Email, Password: in.Password})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	s.ensureProfile(ctx, sess.User)
	return &SignInResult{Session: sess, Redirect: s.destination(in.RedirectTo, s.origin(in.Origin))}, nil
}

// SignUpResult is a successful registration. Session is nil when the user
// must confirm their email first; Redirect says where to go next.
type SignUpResult struct {
	User     domainauth.Identity
	Session  *domainauth.Session
	Redirect string
}

// SignUp registers a new account. The confirmation email links back to the
// callback on SiteURL.
func (s *AuthService) SignUp(ctx context.Context, in ports.Credentials) (*SignUpResult, error) {
	check := SignInInput{Email: in.Email, Password: in.Password}
	if err := check.Validate(); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.provider.SignUp(pctx, ports.SignUpRequest{
		Credentials:     ports.Credentials{Email: check.Email, Password: check.Password},
		EmailRedirectTo: absolute(s.siteURL, CallbackPath),
	})
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	out := &SignUpResult{User: res.User, Session: res.Session}
	if res.Session != nil {
		s.ensureProfile(ctx, res.Session.User)
		out.Redirect = domainauth.DefaultDestination
		return out, nil
	}
	out.Redirect = VerifyEmailPath + "?email=" + url.QueryEscape(check.Email)
	return out, nil
}

// OAuthStart is the first leg of an OAuth sign-in. CodeVerifier must be kept
// by the client until the callback.
type OAuthStart struct {
	URL          string
	CodeVerifier string
}

// BeginOAuth builds the provider authorize URL with a fresh PKCE verifier.
func (s *AuthService) BeginOAuth(provider, redirectTo string, origin *url.URL) (*OAuthStart, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if _, ok := s.providers[provider]; !ok {
		return nil, apperrors.ValidationField("provider", fmt.Sprintf("unsupported OAuth provider %q", provider))
	}
	origin = s.origin(origin)

	callback := CallbackPath
	if target, ok := domainauth.SafeRedirect(redirectTo, origin); ok {
		callback += "?" + domainauth.RedirectParam + "=" + url.QueryEscape(target)
	}

	verifier := oauth2.GenerateVerifier()
	authURL, err := s.provider.AuthorizeURL(ports.OAuthRequest{
		Provider:      provider,
		RedirectTo:    absolute(origin, callback),
		CodeChallenge: oauth2.S256ChallengeFromVerifier(verifier),
	})
	if err != nil {
		return nil, fmt.Errorf("authorize url: %w", err)
	}
	return &OAuthStart{URL: authURL, CodeVerifier: verifier}, nil
}

// SignOut revokes the session at the provider. Failures are logged only;
// the caller clears cookies regardless.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.provider.SignOut(pctx, accessToken); err != nil {
		s.logger.WarnContext(ctx, "provider sign out failed", "error", err)
	}
}

func (s *AuthService) ensureProfile(ctx context.Context, id domainauth.Identity) {
	if s.profiles == nil || id.ID == "" {
		return
	}
	if err := s.profiles.Ensure(ctx, id.ID, id.CreatedAt); err != nil {
		s.logger.WarnContext(ctx, "failed to ensure profile", "user_id", id.ID, "error", err)
	}
}

func (s *AuthService) origin(reqOrigin *url.URL) *url.URL {
	if reqOrigin != nil && reqOrigin.Host != "" {
		return reqOrigin
	}
	return s.siteURL
}

// destination validates redirectTo against origin, defaulting to the dashboard.
func (s *AuthService) destination(redirectTo string, origin *url.URL) string {
	if target, ok := domainauth.SafeRedirect(redirectTo, origin); ok {
		return target
	}
	return domainauth.DefaultDestination
}

// LoginErrorPath is the login page showing msg.
func LoginErrorPath(msg string) string {
	return domainauth.LoginPath + "?error=" + url.QueryEscape(msg)
}

func absolute(origin *url.URL, path string) string {
	if origin == nil {
		return path
	}
	return strings.TrimRight(origin.String(), "/") + path
}

package service

import (
	"context"
	"log/slog"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/ports"
)

const defaultProviderTimeout = 5 * time.Second

// SessionTokens are the raw session cookies of a request.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
}

// IsEmpty reports whether no session cookie was presented.
func (t SessionTokens) IsEmpty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// ReadResult is the outcome of a session read. Identity is nil for anonymous
// callers. Rotated is set when the session was refreshed and the caller must
// persist the new tokens.
type ReadResult struct {
	Identity *domainauth.Identity
	Rotated  *domainauth.Session
}

// SessionReaderConfig holds the optional knobs of SessionReader.
type SessionReaderConfig struct {
	// Timeout bounds the single provider round trip. Defaults to 5s.
	Timeout time.Duration
	// ExpiresAt reads an access token's expiry without verifying it. When nil
	// or when it cannot tell, the token is treated as unexpired.
	ExpiresAt func(accessToken string) (time.Time, bool)
	Now       func() time.Time
	Logger    *slog.Logger
}

// SessionReaderOptions groups dependencies for SessionReader.
type SessionReaderOptions struct {
	Verifier  ports.TokenVerifier    // Required
	Refresher ports.SessionRefresher // Optional: without it expired sessions read as anonymous
	Config    SessionReaderConfig
}

// SessionReader turns request cookies into an identity. It makes at most one
// provider round trip per read and never returns an error: any failure
// degrades to an anonymous result.
type SessionReader struct {
	verifier  ports.TokenVerifier
	refresher ports.SessionRefresher
	timeout   time.Duration
	expiresAt func(string) (time.Time, bool)
	now       func() time.Time
	logger    *slog.Logger
}

// NewSessionReader constructs a SessionReader.
func NewSessionReader(opts SessionReaderOptions) *SessionReader {
	if opts.Verifier == nil {
		panic("TokenVerifier is required")
	}
	cfg := opts.Config
	r := &SessionReader{
		verifier:  opts.Verifier,
		refresher: opts.Refresher,
		timeout:   cfg.Timeout,
		expiresAt: cfg.ExpiresAt,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = defaultProviderTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "session_reader")
	return r
}

// Read derives the caller's identity from tok.
func (r *SessionReader) Read(ctx context.Context, tok SessionTokens) ReadResult {
	if tok.IsEmpty() {
		return ReadResult{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if tok.RefreshToken != "" && r.refresher != nil && r.expired(tok.AccessToken) {
		sess, err := r.refresher.Refresh(ctx, tok.RefreshToken)
		if err != nil {
			r.degrade(ctx, "refresh", err)
			return ReadResult{}
		}
		metrics.SessionRotationsTotal.Inc()
		id := sess.User
		return ReadResult{Identity: &id, Rotated: &sess}
	}

	if tok.AccessToken == "" {
		return ReadResult{}
	}
	id, err := r.verifier.Verify(ctx, tok.AccessToken)
	if err != nil {
		r.degrade(ctx, "verify", err)
		return ReadResult{}
	}
	return ReadResult{Identity: &id}
}

// expired reports whether accessToken is missing or past its exp claim.
func (r *SessionReader) expired(accessToken string) bool {
	if accessToken == "" {
		return true
	}
	if r.expiresAt == nil {
		return false
	}
	exp, ok := r.expiresAt(accessToken)
	if !ok {
		return false
	}
	return !r.now().Before(exp)
}

func (r *SessionReader) degrade(ctx context.Context, op string, err error) {
	metrics.ObserveSessionFailure(err)
	r.logger.DebugContext(ctx, "session unavailable, continuing anonymously", "op", op, "error", err)
}

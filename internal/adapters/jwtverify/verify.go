package jwtverify

// Package jwtverify checks provider-issued access tokens locally, either with
// the project's shared HS256 secret or against the provider's JWKS.

import (
	"context"
	"errors"
	"fmt"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/target/sitegate/internal/adapters/claims"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	obserrors "github.com/target/sitegate/internal/observability/errors"
	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/ports"
)

var (
	_ ports.TokenVerifier = (*SecretVerifier)(nil)
	_ ports.TokenVerifier = (*JWKSVerifier)(nil)
)

// SecretVerifier verifies HS256 tokens signed with the project JWT secret.
type SecretVerifier struct {
	secret []byte
	issuer string
	roles  *claims.RoleExtractor
}

// NewSecretVerifier builds a SecretVerifier. issuer is optional; when set the
// iss claim must match it.
func NewSecretVerifier(secret, issuer string, roles *claims.RoleExtractor) (*SecretVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &SecretVerifier{secret: []byte(secret), issuer: issuer, roles: roles}, nil
}

// Verify checks the signature, expiry and issuer of accessToken.
func (v *SecretVerifier) Verify(_ context.Context, accessToken string) (domainauth.Identity, error) {
	started := time.Now()
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	mc := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(accessToken, mc, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		err = fmt.Errorf("%w: %w", obserrors.ErrInvalidToken, err)
		metrics.ObserveProviderCall("verify_secret", started, err)
		return domainauth.Identity{}, err
	}
	id, err := claims.FromTokenClaims(mc, v.roles)
	metrics.ObserveProviderCall("verify_secret", started, err)
	return id, err
}

// JWKSVerifier verifies asymmetric tokens against a key set, normally the
// provider's remote JWKS.
type JWKSVerifier struct {
	verifier *gooidc.IDTokenVerifier
	roles    *claims.RoleExtractor
}

// NewJWKSVerifier builds a verifier for tokens issued by issuer and signed by keys.
func NewJWKSVerifier(issuer string, keys gooidc.KeySet, roles *claims.RoleExtractor) (*JWKSVerifier, error) {
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if keys == nil {
		return nil, errors.New("key set is required")
	}
	cfg := &gooidc.Config{
		// access tokens carry aud=authenticated rather than a client id
		SkipClientIDCheck:    true,
		SupportedSigningAlgs: []string{gooidc.RS256, gooidc.ES256},
	}
	return &JWKSVerifier{verifier: gooidc.NewVerifier(issuer, keys, cfg), roles: roles}, nil
}

// NewRemoteKeySet fetches and caches the key set at jwksURL. ctx must outlive
// the verifier; it scopes background key refreshes.
func NewRemoteKeySet(ctx context.Context, jwksURL string) gooidc.KeySet {
	return gooidc.NewRemoteKeySet(ctx, jwksURL)
}

// Verify checks signature, expiry and issuer of accessToken.
func (v *JWKSVerifier) Verify(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	started := time.Now()
	tok, err := v.verifier.Verify(ctx, accessToken)
	if err != nil {
		err = fmt.Errorf("%w: %w", obserrors.ErrInvalidToken, err)
		metrics.ObserveProviderCall("verify_jwks", started, err)
		return domainauth.Identity{}, err
	}
	var raw map[string]any
	if err := tok.Claims(&raw); err != nil {
		metrics.ObserveProviderCall("verify_jwks", started, err)
		return domainauth.Identity{}, fmt.Errorf("decode claims: %w", err)
	}
	id, err := claims.FromTokenClaims(raw, v.roles)
	metrics.ObserveProviderCall("verify_jwks", started, err)
	return id, err
}

// ExpiresAt reads the exp claim without verifying the signature. It is only
// used to decide whether a refresh should be attempted.
func ExpiresAt(accessToken string) (time.Time, bool) {
	tok, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

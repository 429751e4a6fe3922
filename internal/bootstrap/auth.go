package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/sitegate/config"
	"github.com/target/sitegate/internal/adapters/claims"
	"github.com/target/sitegate/internal/adapters/devauth"
	"github.com/target/sitegate/internal/adapters/gotrue"
	"github.com/target/sitegate/internal/adapters/jwtverify"
	"github.com/target/sitegate/internal/ports"
)

// Identity bundles the provider-facing ports selected by AUTH_MODE and
// AUTH_VERIFY_MODE.
type Identity struct {
	Provider ports.IdentityProvider
	Verifier ports.TokenVerifier
	// ExpiresAt reads a token's expiry locally; nil when tokens are opaque.
	ExpiresAt func(accessToken string) (time.Time, bool)
}

// BuildIdentity wires the identity provider and token verifier. ctx scopes
// background JWKS refreshes and must live as long as the server.
func BuildIdentity(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (Identity, error) {
	if logger == nil {
		logger = slog.Default()
	}
	roles, err := claims.NewRoleExtractor(cfg.RoleClaimPath)
	if err != nil {
		return Identity{}, fmt.Errorf("role claim path: %w", err)
	}

	if cfg.Mode == config.AuthModeMock {
		logger.WarnContext(ctx, "mock auth mode enabled; do not use in production", "email", cfg.DevAuth.Email)
		prov, err := devauth.NewProvider(devauth.Config{
			UserID:   cfg.DevAuth.UserID,
			Email:    cfg.DevAuth.Email,
			Password: cfg.DevAuth.Password,
			Role:     cfg.DevAuth.Role,
			Logger:   logger,
		})
		if err != nil {
			return Identity{}, fmt.Errorf("dev auth provider: %w", err)
		}
		return Identity{Provider: prov, Verifier: prov}, nil
	}

	client, err := gotrue.NewClient(gotrue.Options{
		BaseURL: cfg.Supabase.URL,
		APIKey:  cfg.Supabase.AnonKey,
		Roles:   roles,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("identity provider client: %w", err)
	}

	id := Identity{Provider: client, ExpiresAt: jwtverify.ExpiresAt}
	switch cfg.VerifyMode {
	case config.VerifyModeJWKS:
		v, err := jwtverify.NewJWKSVerifier(client.Issuer(), jwtverify.NewRemoteKeySet(ctx, client.JWKSURL()), roles)
		if err != nil {
			return Identity{}, fmt.Errorf("jwks verifier: %w", err)
		}
		id.Verifier = v
	case config.VerifyModeSecret:
		v, err := jwtverify.NewSecretVerifier(cfg.Supabase.JWTSecret, client.Issuer(), roles)
		if err != nil {
			return Identity{}, fmt.Errorf("secret verifier: %w", err)
		}
		id.Verifier = v
	default:
		id.Verifier = client
	}
	logger.InfoContext(ctx, "identity provider configured", "mode", cfg.Mode, "verify_mode", cfg.VerifyMode)
	return id, nil
}

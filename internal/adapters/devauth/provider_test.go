package devauth

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/target/sitegate/internal/ports"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	prov, err := NewProvider(Config{UserID: "dev-user", Email: "Dev@Example.com", Password: "pw", Role: "admin"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	return prov
}

func TestNewProvider_Validation(t *testing.T) {
	if _, err := NewProvider(Config{Password: "pw"}); err == nil {
		t.Fatal("expected error without email")
	}
	if _, err := NewProvider(Config{Email: "a@example.com"}); err == nil {
		t.Fatal("expected error without password")
	}
}

func TestProvider_OAuthAndExchange(t *testing.T) {
	prov := newProvider(t)
	ctx := context.Background()

	authURL, err := prov.AuthorizeURL(ports.OAuthRequest{Provider: "google", RedirectTo: "http://localhost:8080/auth/callback?redirectTo=%2Fadmin"})
	if err != nil {
		t.Fatalf("AuthorizeURL error: %v", err)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	code := u.Query().Get("code")
	if code == "" || u.Query().Get("redirectTo") != "/admin" {
		t.Fatalf("unexpected authorize URL: %s", authURL)
	}

	sess, err := prov.ExchangeCode(ctx, ports.ExchangeRequest{Code: code})
	if err != nil {
		t.Fatalf("ExchangeCode error: %v", err)
	}
	if sess.User.ID != "dev-user" || sess.User.Email != "dev@example.com" {
		t.Fatalf("unexpected identity: %+v", sess.User)
	}
	if !sess.User.IsNewUser() {
		t.Fatal("first sign-in should read as new user")
	}
	if sess.User.RoleClaim == nil || *sess.User.RoleClaim != "admin" {
		t.Fatal("role claim should be carried over")
	}

	if _, err := prov.ExchangeCode(ctx, ports.ExchangeRequest{Code: code}); err == nil {
		t.Fatal("second exchange of the same code must fail")
	}

	id, err := prov.GetUser(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if id.LastSignInAt == nil {
		t.Fatal("stored identity should record the sign-in")
	}
}

func TestProvider_PasswordRefreshSignOut(t *testing.T) {
	prov := newProvider(t)
	ctx := context.Background()

	if _, err := prov.SignInWithPassword(ctx, ports.Credentials{Email: "dev@example.com", Password: "nope"}); err == nil {
		t.Fatal("expected bad credentials error")
	}
	sess, err := prov.SignInWithPassword(ctx, ports.Credentials{Email: "DEV@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("SignInWithPassword error: %v", err)
	}

	rotated, err := prov.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if rotated.AccessToken == sess.AccessToken {
		t.Fatal("refresh should issue a new access token")
	}
	if _, err := prov.Refresh(ctx, sess.RefreshToken); err == nil {
		t.Fatal("refresh tokens are single use")
	}

	if err := prov.SignOut(ctx, rotated.AccessToken); err != nil {
		t.Fatalf("SignOut error: %v", err)
	}
	if _, err := prov.Verify(ctx, rotated.AccessToken); err == nil {
		t.Fatal("revoked token should not verify")
	}
}

func TestProvider_TokenExpiry(t *testing.T) {
	prov := newProvider(t)
	sess, err := prov.SignInWithPassword(context.Background(), ports.Credentials{Email: "dev@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("SignInWithPassword error: %v", err)
	}
	prov.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := prov.GetUser(context.Background(), sess.AccessToken); err == nil {
		t.Fatal("expired token should not verify")
	}
}

func TestProvider_SignUp(t *testing.T) {
	prov := newProvider(t)
	ctx := context.Background()

	res, err := prov.SignUp(ctx, ports.SignUpRequest{
		Credentials:     ports.Credentials{Email: "new@example.com", Password: "pw2"},
		EmailRedirectTo: "http://localhost:8080/auth/callback",
	})
	if err != nil {
		t.Fatalf("SignUp error: %v", err)
	}
	if res.Session != nil || res.User.Email != "new@example.com" {
		t.Fatalf("unexpected sign up result: %+v", res)
	}
	if _, err := prov.SignUp(ctx, ports.SignUpRequest{Credentials: ports.Credentials{Email: "new@example.com", Password: "x"}}); err == nil {
		t.Fatal("duplicate sign up should fail")
	}
	if _, err := prov.SignInWithPassword(ctx, ports.Credentials{Email: "new@example.com", Password: "pw2"}); err != nil {
		t.Fatalf("new user should sign in: %v", err)
	}
}

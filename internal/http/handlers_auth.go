package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	apperrors "github.com/target/sitegate/internal/errors"
	"github.com/target/sitegate/internal/ports"
	"github.com/target/sitegate/internal/service"
)

// AuthServiceInterface defines the auth flows the handlers drive.
type AuthServiceInterface interface {
	CompleteCallback(ctx context.Context, in service.CallbackInput) service.CallbackResult
	SignIn(ctx context.Context, in service.SignInInput) (*service.SignInResult, error)
	SignUp(ctx context.Context, in ports.Credentials) (*service.SignUpResult, error)
	BeginOAuth(provider, redirectTo string, origin *url.URL) (*service.OAuthStart, error)
	SignOut(ctx context.Context, accessToken string)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Cookies SessionCookies
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// credentialsInput is the body of the login and signup endpoints.
type credentialsInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RedirectTo string `json:"redirectTo"`
}

// Callback redeems the provider code.
// GET /auth/callback?code=<code>&redirectTo=<path>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := h.Svc.CompleteCallback(r.Context(), service.CallbackInput{
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		RedirectTo:       q.Get(domainauth.RedirectParam),
		CodeVerifier:     h.Cookies.Verifier(r),
		Origin:           requestOrigin(r),
	})
	if res.Err != nil {
		h.logger().WarnContext(r.Context(), "auth callback failed", "outcome", res.Outcome, "error", res.Err)
	}
	if res.Session != nil {
		h.Cookies.SetSession(w, r, *res.Session)
	}
	if h.Cookies.Verifier(r) != "" {
		h.Cookies.ClearVerifier(w, r)
	}
	http.Redirect(w, r, res.Redirect, http.StatusTemporaryRedirect)
}

// Login signs in with email and password.
// POST /auth/login (form or JSON).
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.SignIn(r.Context(), service.SignInInput{
		Email:      in.Email,
		Password:   in.Password,
		RedirectTo: in.RedirectTo,
		Origin:     requestOrigin(r),
	})
	if err != nil {
		h.fail(w, r, domainauth.LoginPath, err)
		return
	}
	h.Cookies.SetSession(w, r, res.Session)
	h.succeed(w, r, res.Redirect)
}

// SignUp registers a new account.
// POST /auth/signup (form or JSON).
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.SignUp(r.Context(), ports.Credentials{Email: in.Email, Password: in.Password})
	if err != nil {
		h.fail(w, r, service.SignUpPath, err)
		return
	}
	if res.Session != nil {
		h.Cookies.SetSession(w, r, *res.Session)
	}
	h.succeed(w, r, res.Redirect)
}

// OAuth starts a provider sign-in.
// GET /auth/oauth/{provider}?redirectTo=<path>.
func (h *AuthHandlers) OAuth(w http.ResponseWriter, r *http.Request) {
	start, err := h.Svc.BeginOAuth(r.PathValue("provider"), r.URL.Query().Get(domainauth.RedirectParam), requestOrigin(r))
	if err != nil {
		h.logger().WarnContext(r.Context(), "oauth start failed", "error", err)
		http.Redirect(w, r, service.LoginErrorPath(authErrorMessage(err)), http.StatusSeeOther)
		return
	}
	h.Cookies.SetVerifier(w, r, start.CodeVerifier)
	http.Redirect(w, r, start.URL, http.StatusTemporaryRedirect)
}

// Logout ends the session.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Svc.SignOut(r.Context(), h.Cookies.Read(r).AccessToken)
	h.Cookies.ClearSession(w, r)
	h.succeed(w, r, domainauth.LoginPath)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := GetIdentityFromContext(r.Context())
	if !ok {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	role := domainauth.ResolveRole(id)
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          id,
		"role":          role,
		"home":          domainauth.HomePath(role),
	})
}

func (h *AuthHandlers) readCredentials(w http.ResponseWriter, r *http.Request) (credentialsInput, bool) {
	var in credentialsInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return in, DecodeJSON(w, r, &in)
	}
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
		return in, false
	}
	in.Email = r.PostFormValue("email")
	in.Password = r.PostFormValue("password")
	in.RedirectTo = r.PostFormValue(domainauth.RedirectParam)
	return in, true
}

// succeed sends a form client to target with 303 and tells a JSON client where to go.
func (h *AuthHandlers) succeed(w http.ResponseWriter, r *http.Request, target string) {
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"redirect": target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// fail sends a form client back to page with the error message.
func (h *AuthHandlers) fail(w http.ResponseWriter, r *http.Request, page string, err error) {
	msg := authErrorMessage(err)
	h.logger().InfoContext(r.Context(), "auth request rejected", "page", page, "error", err)
	if wantsJSON(r) {
		code := http.StatusUnauthorized
		if apperrors.IsValidation(err) || page == service.SignUpPath {
			code = http.StatusBadRequest
		}
		WriteError(w, ErrorParams{Code: code, ErrCode: "auth_failed", Err: errors.New(msg)})
		return
	}
	http.Redirect(w, r, page+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

// authErrorMessage picks the message safe to show the user.
func authErrorMessage(err error) string {
	if apperrors.IsValidation(err) {
		return apperrors.PublicMessage(err)
	}
	return ports.ProviderMessage(err)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/service"
)

// maxBodyBytes caps auth request bodies; they are a few short strings.
const maxBodyBytes = 1 << 20

const stateCookieName = "oauth_state"

// AuthService is the part of *service.AuthService the handler calls.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	GetCurrentUser(ctx context.Context, id string) (*model.PublicUser, error)
	LoginWithGoogle(ctx context.Context, credential string) (*service.AuthResult, error)
	LoginWithGoogleIdentity(ctx context.Context, identity *auth.GoogleIdentity) (*service.AuthResult, error)
}

// GoogleRedirector runs the Authorization Code redirect flow.
// *auth.GoogleProvider implements it.
type GoogleRedirector interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleIdentity, error)
}

// AuthResponse is the success body of the auth endpoints.
type AuthResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	User    *model.PublicUser `json:"user"`
	Token   string            `json:"token,omitempty"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleRequest struct {
	Credential string `json:"credential"`
}

// AuthHandler serves /api/auth/*.
//
//   - HandleRegister       POST /api/auth/register
//   - HandleLogin          POST /api/auth/login
//   - HandleMe             GET  /api/auth/me (behind the guard)
//   - HandleGoogle         POST /api/auth/google
//   - HandleGoogleLogin    GET  /api/auth/google/login
//   - HandleGoogleCallback GET  /api/auth/google/callback
type AuthHandler struct {
	auth        AuthService
	google      GoogleRedirector // nil when Google sign-in is disabled
	frontendURL string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil; frontendURL is
// where the redirect flow sends the browser back to.
func NewAuthHandler(svc AuthService, google GoogleRedirector, frontendURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        svc,
		google:      google,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.logFailure(r, "register", err)
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Success: true,
		Message: "User registered successfully",
		User:    result.User,
		Token:   result.Token,
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logFailure(r, "login", err)
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		User:    result.User,
		Token:   result.Token,
	})
}

// HandleMe returns the caller's profile. The guard has already resolved the
// identity, but the user is read again so the response reflects the store.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Only reachable if the route is mounted without the guard.
		WriteError(w, apperror.MissingToken())
		return
	}

	user, err := h.auth.GetCurrentUser(r.Context(), identity.ID)
	if err != nil {
		h.logFailure(r, "me", err)
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: user})
}

// HandleGoogle signs in with an ID token obtained by the SPA from Google
// Identity Services. 201 when the account was just created, else 200.
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	result, err := h.auth.LoginWithGoogle(r.Context(), req.Credential)
	if err != nil {
		h.logFailure(r, "google", err)
		WriteError(w, err)
		return
	}

	status, message := http.StatusOK, "Login successful"
	if result.Created {
		status, message = http.StatusCreated, "User registered successfully"
	}
	writeJSON(w, status, AuthResponse{
		Success: true,
		Message: message,
		User:    result.User,
		Token:   result.Token,
	})
}

// HandleGoogleLogin starts the redirect flow. A random state goes into a
// short-lived HttpOnly cookie and the consent URL; the callback checks that
// they match, which ties the callback to a flow this browser started.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		WriteError(w, apperror.ValidationFailed("google", "Google sign-in is not enabled"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback finishes the redirect flow and sends the browser to
// FRONTEND_URL/auth/callback with the token (or an error code) in the URL
// fragment. Fragments never reach servers or logs.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		WriteError(w, apperror.ValidationFailed("google", "Google sign-in is not enabled"))
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		WriteError(w, apperror.ValidationFailed("state", "Invalid OAuth state"))
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		h.redirectToFrontend(w, r, url.Values{"error": {"access_denied"}})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		WriteError(w, apperror.ValidationFailed("code", "Missing OAuth code"))
		return
	}

	identity, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		fragmentCode := "internal_error"
		if errors.Is(err, auth.ErrInvalidIDToken) {
			fragmentCode = "invalid_credentials"
		}
		h.redirectToFrontend(w, r, url.Values{"error": {fragmentCode}})
		return
	}

	result, err := h.auth.LoginWithGoogleIdentity(r.Context(), identity)
	if err != nil {
		h.logFailure(r, "google callback", err)
		_, errCode := errorStatus(err)
		h.redirectToFrontend(w, r, url.Values{"error": {errCode}})
		return
	}

	h.redirectToFrontend(w, r, url.Values{"token": {result.Token}})
}

func (h *AuthHandler) redirectToFrontend(w http.ResponseWriter, r *http.Request, fragment url.Values) {
	http.Redirect(w, r, h.frontendURL+"/auth/callback#"+fragment.Encode(), http.StatusSeeOther)
}

// logFailure logs expected failures at Info and everything else at Error.
// Expected failures are part of normal traffic (typos, duplicate sign-ups).
func (h *AuthHandler) logFailure(r *http.Request, op string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && !errors.Is(err, apperror.ErrConfiguration) {
		h.logger.Info("auth request rejected",
			slog.String("op", op),
			slog.String("path", r.URL.Path),
			slog.String("reason", appErr.Message),
		)
		return
	}
	h.logger.Error("auth request failed",
		slog.String("op", op),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}

// decodeJSON reads a size-limited JSON body into dst. Any decode failure is
// a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}

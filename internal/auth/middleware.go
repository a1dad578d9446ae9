package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
)

// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue compares keys by type and value. A plain string key like
// "identity" could collide with any other package using the same string.
// An unexported type cannot be constructed outside this package, so no other
// code can read or overwrite the identity stored under it.
type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller, attached to the request context by
// RequireAuth. It lives only as long as the request.
type Identity struct {
	ID    string
	Email string
	Name  string
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller set by RequireAuth, or (nil, false)
// on routes that are not guarded.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// UserLookup is the slice of the credential store the Guard needs.
// It must return an error wrapping apperror.ErrNotFound for unknown IDs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// ErrorWriter renders an error as an HTTP response. The handler package
// provides one so guard failures share the API's JSON error format.
type ErrorWriter func(w http.ResponseWriter, err error)

// Guard resolves "Authorization: Bearer <token>" into an Identity.
type Guard struct {
	tokens     *TokenService
	users      UserLookup
	writeError ErrorWriter
	logger     *slog.Logger
}

// NewGuard wires a Guard. tokens may be nil only in a misconfigured process;
// every request then fails with a configuration error (500).
func NewGuard(tokens *TokenService, users UserLookup, writeError ErrorWriter, logger *slog.Logger) *Guard {
	return &Guard{
		tokens:     tokens,
		users:      users,
		writeError: writeError,
		logger:     logger,
	}
}

// Authenticate runs the per-request state machine on an Authorization
// header value:
//
//	no header / not "Bearer <t>"      → apperror.ErrMissingToken
//	bad signature / malformed          → apperror.ErrInvalidToken
//	valid signature, past expiry       → apperror.ErrTokenExpired
//	user ID not in the store           → apperror.ErrUserNotFound
//	token service missing              → apperror.ErrConfiguration
//	store failure                      → wrapped, unclassified error
//	otherwise                          → the caller's Identity
func (g *Guard) Authenticate(ctx context.Context, header string) (*Identity, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return nil, apperror.MissingToken()
	}

	if g.tokens == nil {
		return nil, apperror.Configuration("auth: guard has no token service")
	}

	userID, err := g.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("auth: token subject %s: %w", userID, apperror.UserNotFound())
		}
		return nil, fmt.Errorf("auth: loading user %s: %w", userID, err)
	}

	return &Identity{ID: user.ID, Email: user.Email, Name: user.Name}, nil
}

// RequireAuth is the middleware form of Authenticate. On success the
// Identity is stored in the request context and next runs; on failure the
// error is written and the chain stops.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			g.logFailure(r, err)
			g.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (g *Guard) logFailure(r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && !errors.Is(err, apperror.ErrConfiguration) {
		g.logger.Debug("request not authenticated",
			slog.String("path", r.URL.Path),
			slog.String("reason", err.Error()),
		)
		return
	}
	g.logger.Error("authentication could not be completed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}

// bearerToken extracts <t> from "Bearer <t>". The scheme is matched
// case-insensitively, as RFC 6750 allows.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

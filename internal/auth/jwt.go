// Package auth provides the building blocks of authentication: session
// tokens (JWT), password hashing (bcrypt), Google sign-in, and the Guard
// middleware that turns a bearer token into a request Identity.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client registers or logs in (POST /api/auth/register|login|google)
//  2. The auth service verifies the credential and mints a session token
//  3. The client stores the token and sends "Authorization: Bearer <token>"
//  4. The Guard verifies the token, loads the user and puts an Identity
//     into the request context for the handlers behind it
//
// Tokens are stateless: validity depends only on the signature and the
// expiry. Nothing is stored server-side, so nothing can be revoked early.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sakif/recipe-api/internal/apperror"
)

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

const (
	DefaultTokenTTL = 7 * 24 * time.Hour
	DefaultIssuer   = "recipe-api"
)

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret string
	TTL    time.Duration // zero means DefaultTokenTTL
	Issuer string        // empty means DefaultIssuer
}

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenService validates cfg and returns a ready TokenService.
//
// An unset or short secret is a configuration error, not something to
// default around: main treats it as fatal.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, apperror.Configuration("auth: JWT secret is not set")
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, apperror.Configuration(
			fmt.Sprintf("auth: JWT secret must be at least %d characters", MinSecretLength))
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
	}, nil
}

// TTL returns how long freshly minted tokens stay valid.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" carries the user ID; "jti" is random so
// two tokens for the same user minted in the same second still differ.
type claims struct {
	jwt.RegisteredClaims
}

// Generate mints a token for userID using the configured TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	if s == nil {
		return "", apperror.Configuration("auth: token service is not configured")
	}
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration mints a token that expires after d. Tests use a
// negative d to produce already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", apperror.Configuration("auth: token service is not configured")
	}
	if userID == "" {
		return "", errors.New("auth: cannot sign token without a subject")
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies tokenStr and returns the user ID in its subject.
//
// Errors carry one of two kinds:
//   - apperror.ErrTokenExpired: signature is good but exp has passed
//   - apperror.ErrInvalidToken: anything else (bad signature, wrong alg,
//     wrong issuer, garbage, missing subject)
//
// jwt/v5 verifies the signature before it validates claims, so a forged
// token that is also expired is reported as invalid, never as expired.
// Claim failures, however, come back joined: a token that is both expired
// and from another issuer matches ErrTokenExpired too, and is still invalid.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", apperror.Configuration("auth: token service is not configured")
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if onlyExpired(err) {
			return "", fmt.Errorf("auth: %w: %w", apperror.TokenExpired(), err)
		}
		return "", fmt.Errorf("auth: %w: %w", apperror.InvalidToken(), err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: unreadable claims: %w", apperror.InvalidToken())
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject: %w", apperror.InvalidToken())
	}

	return c.Subject, nil
}

// onlyExpired reports whether expiry is the sole reason err rejects a token.
func onlyExpired(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, other := range []error{
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}

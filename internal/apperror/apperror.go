// Package apperror defines the typed errors the service and auth layers
// return for expected failures.
//
// Every AppError wraps one sentinel "kind" (ErrValidation, ErrConflict, ...).
// Callers branch on the kind with errors.Is and show Message to the client.
// Anything that is NOT an AppError is an unexpected failure and is reported
// as a generic 500 by the HTTP layer.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")

	// Guard failures. All four are 401s, but clients react differently
	// (re-login vs. refresh), so each one is its own kind.
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUserNotFound = errors.New("user not found")

	// ErrConfiguration is an operator error (e.g. unset signing secret).
	ErrConfiguration = errors.New("configuration error")
)

type AppError struct {
	Err     error  // kind, one of the sentinels above
	Message string // safe to show to the client
	Field   string // optional: request field that caused the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation on resource.key.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s with this %s already exists", resource, key),
		Field:   key,
	}
}

// DuplicateAccount is the registration-time conflict on email.
func DuplicateAccount() *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "An account with this email already exists",
		Field:   "email",
	}
}

// InvalidCredentials is returned for every failed login, whatever the cause.
// The message must stay identical for unknown email and wrong password.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid email or password",
	}
}

// InvalidGoogleCredential is the Google sign-in counterpart of
// InvalidCredentials: a rejected ID token or an unverified email.
func InvalidGoogleCredential() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid Google credential",
	}
}

func MissingToken() *AppError {
	return &AppError{Err: ErrMissingToken, Message: "Access token is required"}
}

func InvalidToken() *AppError {
	return &AppError{Err: ErrInvalidToken, Message: "Invalid access token"}
}

func TokenExpired() *AppError {
	return &AppError{Err: ErrTokenExpired, Message: "Access token has expired"}
}

func UserNotFound() *AppError {
	return &AppError{Err: ErrUserNotFound, Message: "User for this token no longer exists"}
}

// Configuration wraps a startup/config problem. The message is for operators
// and is never sent to clients.
func Configuration(message string) *AppError {
	return &AppError{Err: ErrConfiguration, Message: message}
}

package handler

// Every response body carries "success". Errors add a human-readable
// "message" and a machine-readable "error" code:
//
//	{"success":false,"message":"Access token has expired","error":"token_expired"}
//
// The frontend switches on "error" (redirect to login, retry, show the form
// message) and never has to parse "message".

// WHY MAP ERRORS HERE AND NOT IN THE SERVICE?
// The service only knows error kinds (not found, conflict, expired token).
// Status codes are an HTTP concern, so the mapping lives next to the
// handlers. The Guard and the Recoverer get WriteError injected, which keeps
// one body format for every failure the API can produce.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/recipe-api/internal/apperror"
)

// internalErrorMessage is the only message a client ever sees for a 500.
const internalErrorMessage = "Internal server error"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// writeJSON sends data as JSON with the given status.
// Headers and status must be written before the body.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps an error kind to its HTTP status and code.
// Unknown errors are 500s.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest, "duplicate_account"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid_credentials"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrMissingToken):
		return http.StatusUnauthorized, "missing_token"
	case errors.Is(err, apperror.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, apperror.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired"
	case errors.Is(err, apperror.ErrUserNotFound):
		return http.StatusUnauthorized, "user_not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteError translates err into the standard error response.
//
// Business failures keep their AppError message. Everything else, including
// configuration errors, is logged in full and reported to the client only as
// "Internal server error": raw errors can carry SQL, paths or secrets.
//
// The auth guard uses WriteError too, so 401s from middleware and 4xx from
// handlers share one format.
func WriteError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)

	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		slog.Error("internal error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Message: internalErrorMessage,
			Error:   "internal_error",
		})
		return
	}

	writeJSON(w, status, ErrorResponse{
		Message: appErr.Message,
		Error:   code,
	})
}

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskd/internal/api/shared"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/service"
	"github.com/phrazzld/taskd/internal/service/auth"
)

// ErrUnauthorized is returned when a handler runs without an authenticated user.
var ErrUnauthorized = errors.New("unauthorized")

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case service.IsNotFound(err):
		return http.StatusNotFound

	case errors.Is(err, service.ErrPreconditionFailed):
		return http.StatusPreconditionFailed

	case service.IsValidation(err),
		errors.As(err, &verrs),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
// Validation messages name the field; everything else is generic.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var (
		ve    *domain.ValidationError
		verrs validator.ValidationErrors
	)

	switch {
	case errors.Is(err, ErrUnauthorized):
		return "User ID not found or invalid"

	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case service.IsNotFound(err):
		return "Task not found"

	case errors.Is(err, service.ErrPreconditionFailed):
		return "Task was modified by another request"

	case errors.As(err, &ve):
		if ve.Field == "" {
			return "Validation error"
		}
		return fmt.Sprintf("Invalid %s: %s", ve.Field, ve.Message)

	case errors.As(err, &verrs):
		return SanitizeValidationError(err)

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case service.IsStorage(err):
		return "Failed to access task storage"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the mapped status and safe message for err, logging
// the redacted detail. A non-empty fallback replaces the generic message of
// 5xx responses.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if fallback != "" && status >= http.StatusInternalServerError {
		msg = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err)
}

// SanitizeValidationError turns validator output into a short message naming
// the first offending field, without struct or type names.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "uuid", "uuid4":
		return "invalid id"
	case "dive", "unique":
		return "invalid list"
	default:
		return "validation failed"
	}
}

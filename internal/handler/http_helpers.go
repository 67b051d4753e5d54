package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"ebook-library/internal/domain"
	"ebook-library/internal/epub"
	"ebook-library/internal/reader"
	apperrors "ebook-library/pkg/errors"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "token"
)

// maxJSONBody bounds request bodies that are decoded as JSON.
const maxJSONBody = 1 << 20

var validate = validator.New()

// GetUserFromContext extracts the authenticated user from request context
func GetUserFromContext(r *http.Request) (*domain.SupabaseUser, bool) {
	user, ok := r.Context().Value(userContextKey).(*domain.SupabaseUser)
	return user, ok
}

// GetTokenFromContext extracts the authentication token from request context
func GetTokenFromContext(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(tokenContextKey).(string)
	return token, ok
}

// caller returns the authenticated user and token, writing a 401 when either is missing.
func caller(w http.ResponseWriter, r *http.Request) (*domain.SupabaseUser, string, bool) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return nil, "", false
	}
	token, ok := GetTokenFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Token not found in context")
		return nil, "", false
	}
	return user, token, true
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes a bounded request body into dst and runs its
// validate tags. Failures are returned as validation AppErrors.
func decodeJSON(r *http.Request, dst interface{}) error {
	body := io.LimitReader(r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return apperrors.NewValidationError("Invalid request body", err.Error())
	}
	return validateStruct(dst)
}

func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewValidationError("Invalid request", fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return apperrors.NewValidationError("Invalid request", err.Error())
	}
	return nil
}

// toAppError translates domain, epub and reader errors into AppErrors
// carrying the HTTP status to answer with.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return apperrors.NewValidationError(ve.Error())
	}

	switch {
	case errors.Is(err, domain.ErrBookNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFoundError(err.Error())
	case errors.Is(err, domain.ErrNotBookOwner), errors.Is(err, domain.ErrAccessDenied):
		return apperrors.NewForbiddenError(err.Error())
	case errors.Is(err, domain.ErrInvalidToken):
		return apperrors.NewUnauthorizedError(err.Error())
	case errors.Is(err, domain.ErrFileTooLarge):
		return withStatus(apperrors.NewValidationError(err.Error()), http.StatusRequestEntityTooLarge)
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return withStatus(apperrors.NewValidationError(err.Error()), http.StatusUnsupportedMediaType)
	case errors.Is(err, domain.ErrEmptyFile):
		return apperrors.NewValidationError(err.Error())
	case errors.Is(err, domain.ErrUploadFailed):
		return apperrors.NewUpstreamError("Failed to store file", err)
	case errors.Is(err, domain.ErrStorageNotConfigured):
		return apperrors.NewNetworkError("Object storage is not available", err)

	case errors.Is(err, epub.ErrFetch):
		return apperrors.NewUpstreamError(err.Error(), err)
	case errors.Is(err, epub.ErrInvalidArchive), errors.Is(err, epub.ErrNoReadableContent):
		return apperrors.NewProcessingError(err.Error(), err)
	case errors.Is(err, epub.ErrChapterNotFound):
		return apperrors.NewNotFoundError(err.Error())
	case errors.Is(err, reader.ErrHostBridge):
		return apperrors.NewValidationError(err.Error())
	case errors.Is(err, reader.ErrSessionClosed),
		errors.Is(err, reader.ErrNotReady),
		errors.Is(err, reader.ErrSessionFailed):
		return apperrors.NewConflictError(err.Error(), err)
	}
	return apperrors.NewInternalError("Internal server error", err)
}

func withStatus(e *apperrors.AppError, status int) *apperrors.AppError {
	e.StatusCode = status
	return e
}

// handleError logs server-side failures and writes the translated error.
func handleError(w http.ResponseWriter, logger domain.Logger, msg string, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.Error(msg, err)
	} else {
		logger.Debug(msg, "error", err.Error())
	}
	message := appErr.Message
	if appErr.Details != "" {
		message += ": " + appErr.Details
	}
	writeError(w, appErr.StatusCode, message)
}

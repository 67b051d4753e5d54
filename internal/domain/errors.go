package domain

import "errors"

// Domain errors
var (
	ErrBookNotFound         = errors.New("book not found")
	ErrNotBookOwner         = errors.New("only the uploader can delete this book")
	ErrAccessDenied         = errors.New("access denied")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidToken         = errors.New("invalid token")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrFileTooLarge         = errors.New("file too large")
	ErrEmptyFile            = errors.New("file is empty")
	ErrUploadFailed         = errors.New("upload failed")
	ErrSessionNotFound      = errors.New("reading session not found")
	ErrStorageNotConfigured = errors.New("object storage not configured")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

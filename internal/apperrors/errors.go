package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// Persistence medium errors
	ErrTypeStorage ErrorType = "storage"
	// Lookup misses
	ErrTypeNotFound ErrorType = "not_found"
	// Bad client input
	ErrTypeValidation ErrorType = "validation"
	// Classifier failures
	ErrTypeModel ErrorType = "model"
	// Configuration errors
	ErrTypeConfig ErrorType = "configuration"
	// Generic application errors
	ErrTypeApp ErrorType = "application"
)

// AppError represents a structured application error
type AppError struct {
	Type        ErrorType      `json:"type"`
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	UserMessage string         `json:"userMessage"`
	InternalErr error          `json:"-"`
	Context     map[string]any `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.InternalErr != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.InternalErr)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap exposes the underlying cause
func (e *AppError) Unwrap() error {
	return e.InternalErr
}

// Is matches any AppError carrying the same code, so errors.Is works
// against the predefined values below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithUserMessage sets a user-friendly message
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// WithContext returns a copy of e with the key/value added
func (e *AppError) WithContext(key string, value any) *AppError {
	c := e.clone()
	c.Context[key] = value
	return c
}

// Wrap returns a copy of e with err recorded as its cause
func (e *AppError) Wrap(err error) *AppError {
	c := e.clone()
	c.InternalErr = err
	return c
}

// Fields renders the error as zap fields
func (e *AppError) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("error_type", string(e.Type)),
		zap.String("error_code", e.Code),
	}
	if e.InternalErr != nil {
		fields = append(fields, zap.Error(e.InternalErr))
	}
	if len(e.Context) > 0 {
		var parts []string
		for k, v := range e.Context {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		fields = append(fields, zap.String("context", strings.Join(parts, ", ")))
	}
	return fields
}

// Log logs the error at warn level
func (e *AppError) Log(logger *zap.Logger) {
	logger.Warn(e.Message, e.Fields()...)
}

func (e *AppError) clone() *AppError {
	c := *e
	c.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		c.Context[k] = v
	}
	return &c
}

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// As extracts an *AppError from err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Predefined errors for common scenarios
var (
	ErrStorageUnavailable = New(ErrTypeStorage, "STORAGE_UNAVAILABLE", "persistence medium rejected write").
				WithUserMessage("Scan could not be saved to history. Storage may be full or disabled")

	ErrCorruptPersistedData = New(ErrTypeStorage, "CORRUPT_PERSISTED_DATA", "persisted history could not be decoded").
				WithUserMessage("Saved history was unreadable and has been reset")

	ErrScanNotFound = New(ErrTypeNotFound, "SCAN_NOT_FOUND", "scan record not found").
			WithUserMessage("Treatment information not found")

	ErrUnknownDisease = New(ErrTypeNotFound, "UNKNOWN_DISEASE", "disease label not in treatment catalog").
				WithUserMessage("No guidance is available for this diagnosis")

	ErrInvalidImage = New(ErrTypeValidation, "INVALID_IMAGE", "image payload could not be decoded").
			WithUserMessage("Invalid image format")

	ErrInvalidRequest = New(ErrTypeValidation, "INVALID_REQUEST", "malformed request").
				WithUserMessage("Invalid request")

	ErrClassificationFailed = New(ErrTypeModel, "CLASSIFICATION_FAILED", "classifier returned no usable diagnosis").
				WithUserMessage("Failed to process image")
)

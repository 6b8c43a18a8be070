package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Fields     []FieldError
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code so callers can test with errors.Is.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeConflict     = "CONFLICT"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

// Sentinels for errors.Is comparisons.
var (
	ErrValidation   = &DomainError{Code: CodeValidation}
	ErrUnauthorized = &DomainError{Code: CodeUnauthorized}
	ErrConflict     = &DomainError{Code: CodeConflict}
	ErrNotFound     = &DomainError{Code: CodeNotFound}
	ErrInternal     = &DomainError{Code: CodeInternal}
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}

func NewValidationError(message string, fields []FieldError) error {
	err := NewDomainError(CodeValidation, message, http.StatusBadRequest)
	err.Fields = fields
	return err
}

func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized)
}

// NewConflict reports a uniqueness violation. The API answers these with 400.
func NewConflict(message string) error {
	return NewDomainError(CodeConflict, message, http.StatusBadRequest)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Server Error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case http.StatusNotFound:
			return NewDomainError(CodeNotFound, "Route not found", http.StatusNotFound)
		case http.StatusUnauthorized:
			return NewDomainError(CodeUnauthorized, fiberErr.Message, http.StatusUnauthorized)
		}
		if fiberErr.Code >= 400 && fiberErr.Code < 500 {
			return NewDomainError(CodeValidation, fiberErr.Message, fiberErr.Code)
		}
	}
	return NewInternalError(err).(*DomainError)
}

package dto

import apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"

// Envelope wraps every API response.
type Envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    any                    `json:"data,omitempty"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
}

// Success builds a successful envelope.
func Success(message string, data any) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}

// Failure builds an error envelope.
func Failure(message string, fields []apperrors.FieldError) Envelope {
	return Envelope{Success: false, Message: message, Errors: fields}
}

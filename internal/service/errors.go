package service

import "fmt"

// ValidationError reports a request field that failed validation. Nothing is
// persisted when a ValidationError is returned.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

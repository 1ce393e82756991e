package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures
type ErrorKind string

const (
	KindTransientNetwork ErrorKind = "transient_network"
	KindRateLimit        ErrorKind = "rate_limit"
	KindMalformedOutput  ErrorKind = "malformed_output"
	KindValidation       ErrorKind = "validation"
	KindConfiguration    ErrorKind = "configuration"
)

// ScrapeError is a classified error with context
type ScrapeError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewError creates a classified error
func NewError(kind ErrorKind, message string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether any error in err's chain is a ScrapeError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

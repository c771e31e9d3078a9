package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode signals a malformed session token.
	ErrDecode = errors.New("malformed session token")
	// ErrExpansionUnavailable signals that the generator exhausted its attempts.
	ErrExpansionUnavailable = errors.New("expansion unavailable")
	// ErrMalformedResponse signals a generator response that does not parse into an Expansion.
	// It never leaves the expansion retry loop.
	ErrMalformedResponse = errors.New("malformed generator response")
	// ErrEngine signals that the search backend is unreachable or rejected the query.
	ErrEngine = errors.New("search engine error")
	// ErrGeneratorProviderError signals a text generation provider failure.
	ErrGeneratorProviderError = errors.New("generator provider error")
	// ErrGenerationQuotaExceeded signals an exhausted generation token budget.
	ErrGenerationQuotaExceeded = errors.New("generation quota exceeded")
	// ErrEmptyLog signals a query build over a session without turns.
	ErrEmptyLog = errors.New("session log is empty")
)

// DecodeError wraps ErrDecode with the stage that rejected the token.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDecode.Error(), e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// NewDecodeError creates a decode error for the given stage.
func NewDecodeError(stage string, err error) error {
	return &DecodeError{Stage: stage, Err: err}
}

// EngineError wraps ErrEngine with the backend status and reason.
type EngineError struct {
	Status int
	Reason string
}

func (e *EngineError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", ErrEngine.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrEngine.Error(), e.Status, e.Reason)
}

func (e *EngineError) Unwrap() error { return ErrEngine }

// NewEngineError creates an engine error. status is 0 when the backend was unreachable.
func NewEngineError(status int, reason string) error {
	return &EngineError{Status: status, Reason: reason}
}

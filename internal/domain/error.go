package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Orchestration errors
	ErrConfig              = errors.New("configuration error")
	ErrNoProviderAvailable = errors.New("no provider available")
	ErrBudgetExceeded      = errors.New("budget exceeded")
	ErrAttemptsExhausted   = errors.New("provider attempts exhausted")
	ErrPublish             = errors.New("publish failed")
	ErrRunCancelled        = errors.New("run cancelled")
	ErrRunNotOpen          = errors.New("run is not open in ledger")
	ErrUnknownTicket       = errors.New("unknown or settled reservation ticket")
	ErrIllegalTransition   = errors.New("illegal pipeline transition")
	ErrSource              = errors.New("raw input source failed")

	// Provider classifications, matched through ProviderError.Is
	ErrTransient      = errors.New("transient provider failure")
	ErrRateLimited    = errors.New("provider rate limited")
	ErrInvalidRequest = errors.New("invalid provider request")
	ErrAuth           = errors.New("provider authentication failed")
	ErrUnknown        = errors.New("unknown provider failure")
)

// ErrorKind is the uniform classification every adapter assigns to a failed attempt.
type ErrorKind string

const (
	KindTransient      ErrorKind = "transient"
	KindRateLimited    ErrorKind = "rate_limited"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindAuth           ErrorKind = "auth_error"
	KindUnknown        ErrorKind = "unknown"
)

// Retryable reports whether another attempt may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTransient, KindRateLimited, KindUnknown:
		return true
	default:
		return false
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTransient:
		return ErrTransient
	case KindRateLimited:
		return ErrRateLimited
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindAuth:
		return ErrAuth
	default:
		return ErrUnknown
	}
}

// ProviderError is a single classified attempt failure.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func NewProviderError(provider string, kind ErrorKind, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, StatusCode: status, Err: err}
}

func (e *ProviderError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (http %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Provider != "" {
		return e.Provider + ": " + msg
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// AttemptsExhaustedError is returned once a provider used its whole retry budget.
type AttemptsExhaustedError struct {
	Provider string
	Attempts int
	Last     *ProviderError
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d attempts exhausted: %v", e.Provider, e.Attempts, e.Last)
}

func (e *AttemptsExhaustedError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

func (e *AttemptsExhaustedError) Is(target error) bool {
	return target == ErrAttemptsExhausted
}

// Classify maps an error to the stable label stored on failed outcomes.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var exhausted *AttemptsExhaustedError
	switch {
	case errors.As(err, &exhausted):
		if exhausted.Last != nil {
			return "attempts_exhausted/" + string(exhausted.Last.Kind)
		}
		return "attempts_exhausted"
	case errors.Is(err, ErrRunCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrBudgetExceeded):
		return "budget_exceeded"
	case errors.Is(err, ErrAuth):
		return "auth_error"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrPublish):
		return "publish_error"
	case errors.Is(err, ErrNoProviderAvailable):
		return "no_provider"
	case errors.Is(err, ErrConfig):
		return "config_error"
	case errors.Is(err, ErrSource), errors.Is(err, ErrNotFound):
		return "source_error"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

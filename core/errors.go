package core

import (
	"errors"
	"fmt"
)

// Kind classifies errors for the transport layer
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindProvider       Kind = "provider"
	KindUpstream       Kind = "upstream"
	KindNotFound       Kind = "not_found"
)

var (
	// Validation errors are raised before any network call
	ErrInvalidInput     = errors.New("invalid input")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrWeakSecret       = errors.New("password does not meet policy")

	// Authentication errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrChallengeExpired    = errors.New("challenge session expired or already used")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidCode         = errors.New("invalid confirmation code")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token has expired")

	// Provider errors
	ErrConfiguration       = errors.New("identity provider is not configured")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrProvider            = errors.New("identity provider error")
	ErrUnknownAccount      = errors.New("unknown account")

	ErrUserNotFound = errors.New("user not found")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream service error")
)

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{ErrInvalidInput, ErrPasswordMismatch, ErrWeakSecret}},
	{KindAuthentication, []error{ErrInvalidCredentials, ErrChallengeExpired, ErrInvalidRefreshToken, ErrInvalidCode, ErrInvalidToken, ErrTokenExpired}},
	{KindNotFound, []error{ErrUserNotFound, ErrNotFound, ErrUnknownAccount}},
	{KindUpstream, []error{ErrUpstream}},
}

// Error carries a sentinel plus a message that is safe to show to callers
type Error struct {
	Err     error  // One of the sentinels above
	Message string // Safe to return to the caller
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Message)
	}
	return e.Err.Error()
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// NewError wraps a sentinel with a caller-safe message and an optional cause
func NewError(sentinel error, message string, cause error) *Error {
	return &Error{Err: sentinel, Message: message, Cause: cause}
}

// Invalid returns a validation error with the given message
func Invalid(message string) *Error {
	return NewError(ErrInvalidInput, message, nil)
}

// KindOf maps an error to its taxonomy kind. Anything unclassified is a provider error.
func KindOf(err error) Kind {
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindProvider
}

// SafeMessage returns a message that may be shown to callers
func SafeMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return capitalize(target.Error())
			}
		}
	}
	if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrConfiguration) {
		return "Identity provider unavailable."
	}
	return "An unexpected error occurred."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b) + "."
}

// UpstreamError is returned when a forwarded service answers with a non-2xx status
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

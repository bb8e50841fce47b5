package bustrack

import (
	"errors"
	"fmt"
)

var (
	// ErrReauthenticationRequired is returned when the stored tokens can no longer be used
	// and the user has to sign in again. The token store has been cleared.
	ErrReauthenticationRequired = errors.New("re-authentication required")

	// ErrMissingCredentials is returned when a username or password is empty
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrWeakPassword is returned when a new password is shorter than MinPasswordLength
	ErrWeakPassword = errors.New("password must be at least 8 characters long")

	// ErrPasswordMismatch is returned when a new password and its confirmation differ
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrNoChallenge is returned when SetNewPassword is called without a challenge
	ErrNoChallenge = errors.New("no pending challenge")
)

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

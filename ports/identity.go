package ports

import (
	"context"

	"github.com/layer-3/bustrack/core"
)

// IdentityProvider performs credential operations against the hosted user directory
type IdentityProvider interface {
	// InitiateAuth submits a username/password pair. It returns tokens or a challenge.
	InitiateAuth(ctx context.Context, username, password string) (core.AuthResult, error)

	// RespondToNewSecretChallenge answers a NEW_PASSWORD_REQUIRED challenge
	RespondToNewSecretChallenge(ctx context.Context, username, newPassword, session string) (*core.TokenSet, error)

	// Refresh exchanges a refresh token for a new access and id token
	Refresh(ctx context.Context, refreshToken, username string) (*core.TokenSet, error)

	// InitiatePasswordReset asks the provider to deliver a reset code
	InitiatePasswordReset(ctx context.Context, username string) error

	// ConfirmPasswordReset sets a new password using a delivered reset code
	ConfirmPasswordReset(ctx context.Context, username, code, newPassword string) error

	// ChangePassword changes the password of the user owning accessToken
	ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error

	// GetUser returns the directory record of a user
	GetUser(ctx context.Context, username string) (*core.UserDetails, error)

	// DisableUser prevents a user from signing in
	DisableUser(ctx context.Context, username string) error
}

package bustrack

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/bustrack/core"
)

const (
	// MinPasswordLength is the shortest new password the server accepts
	MinPasswordLength = core.MinSecretLength

	// ChallengeNewPasswordRequired is issued to users signing in with a temporary password
	ChallengeNewPasswordRequired = "NEW_PASSWORD_REQUIRED"
)

// TokenSet is the triple of tokens issued at sign in
type TokenSet struct {
	AccessToken  string    `json:"accessToken"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	Username     string    `json:"username,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Expired reports whether the access token is known to have expired at now
func (t *TokenSet) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// IdentityClaims are the profile claims carried by the id token
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Username string `json:"cognito:username"`
	TokenUse string `json:"token_use"`
}

// Identity decodes the id token without verifying it. The server verifies every
// token it receives; this is only for showing who is signed in.
func (t *TokenSet) Identity() (*IdentityClaims, error) {
	if t.IDToken == "" {
		return nil, fmt.Errorf("no id token")
	}

	claims := &IdentityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.IDToken, claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token: %w", err)
	}
	return claims, nil
}

// Challenge is returned by Authenticate instead of tokens when the server wants a new password
type Challenge struct {
	Kind     string
	Session  string
	Username string
}

// AuthResult holds either tokens or a challenge, never both
type AuthResult struct {
	Tokens    *TokenSet
	Challenge *Challenge
}

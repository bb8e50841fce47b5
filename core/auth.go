package core

import "time"

// MinSecretLength is the shortest new password accepted before asking the provider.
const MinSecretLength = 8

// ChallengeKind identifies what the provider wants before it will issue tokens
type ChallengeKind string

const (
	ChallengeNone              ChallengeKind = "NONE"
	ChallengeNewSecretRequired ChallengeKind = "NEW_PASSWORD_REQUIRED"
)

// Credential is an identifier/secret pair submitted for authentication.
// The secret is never persisted or logged.
type Credential struct {
	Identifier string
	Secret     string
}

// TokenSet is the triple of tokens issued by the identity provider
type TokenSet struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration // Zero when the provider did not say
}

// ChallengeSession is issued instead of tokens when the provider demands a challenge.
// Its Session is valid for exactly one follow-up call.
type ChallengeSession struct {
	Kind       ChallengeKind
	Session    string // Opaque, provider issued, short lived
	Identifier string
}

// AuthResult is the outcome of a successful authentication attempt: either tokens
// or a challenge, never both.
type AuthResult struct {
	Tokens    *TokenSet
	Challenge *ChallengeSession
}

// IsChallenge reports whether the caller must answer a challenge before tokens are issued
func (r AuthResult) IsChallenge() bool {
	return r.Challenge != nil && r.Challenge.Kind != ChallengeNone
}

// UserDetails describes a user record held by the identity provider
type UserDetails struct {
	Username   string
	Attributes map[string]string
	Enabled    bool
	Status     string
	CreatedAt  time.Time
}

// Principal is the identity extracted from a verified access token
type Principal struct {
	Subject   string
	Username  string
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time
}

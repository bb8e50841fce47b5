package bustrack

import "context"

// TokenStore holds the tokens of one signed in user between requests
type TokenStore interface {
	// Load returns the stored tokens, or nil when nobody is signed in
	Load(ctx context.Context) (*TokenSet, error)

	// Save replaces the stored tokens
	Save(ctx context.Context, tokens *TokenSet) error

	// Clear forgets all tokens
	Clear(ctx context.Context) error
}

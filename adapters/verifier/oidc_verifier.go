package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/layer-3/bustrack/core"
	"github.com/layer-3/bustrack/ports"
)

// OIDCVerifier implements the TokenVerifier interface for user pool access tokens
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	clientID string
}

// NewOIDCVerifier verifies tokens against the user pool's published signing keys.
// Keys are fetched lazily and cached by go-oidc.
func NewOIDCVerifier(ctx context.Context, issuer, jwksURL, clientID string) ports.TokenVerifier {
	return newOIDCVerifier(issuer, oidc.NewRemoteKeySet(ctx, jwksURL), clientID)
}

func newOIDCVerifier(issuer string, keySet oidc.KeySet, clientID string) *OIDCVerifier {
	// Access tokens carry client_id instead of aud, so the audience check is done by hand
	v := oidc.NewVerifier(issuer, keySet, &oidc.Config{SkipClientIDCheck: true})
	return &OIDCVerifier{verifier: v, clientID: clientID}
}

// VerifyAccessToken checks signature, issuer and expiry, then insists on an access token
// minted for our app client. ID and refresh tokens are rejected.
func (v *OIDCVerifier) VerifyAccessToken(ctx context.Context, raw string) (*core.Principal, error) {
	token, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	var claims AccessClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to decode claims: %v", core.ErrInvalidToken, err)
	}

	if claims.TokenUse != TokenUseAccess {
		return nil, fmt.Errorf("%w: token_use is %q", core.ErrInvalidToken, claims.TokenUse)
	}
	if v.clientID != "" && claims.ClientID != v.clientID {
		return nil, fmt.Errorf("%w: unexpected client", core.ErrInvalidToken)
	}

	principal := &core.Principal{
		Subject:   token.Subject,
		Username:  claims.Username,
		ClientID:  claims.ClientID,
		ExpiresAt: token.Expiry,
	}
	if claims.Scope != "" {
		principal.Scopes = strings.Fields(claims.Scope)
	}

	return principal, nil
}

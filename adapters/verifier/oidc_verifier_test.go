package verifier

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/bustrack/core"
)

const (
	testIssuer   = "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_pool"
	testClientID = "client-id"
)

func newTestVerifier(t *testing.T) (*rsa.PrivateKey, *OIDCVerifier) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return key, newOIDCVerifier(testIssuer, keySet, testClientID)
}

func sign(t *testing.T, key *rsa.PrivateKey, claims AccessClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() AccessClaims {
	now := time.Now()
	return AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "sub-123",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		TokenUse: TokenUseAccess,
		ClientID: testClientID,
		Username: "alice",
		Scope:    "aws.cognito.signin.user.admin",
	}
}

func TestVerifyAccessToken(t *testing.T) {
	key, v := newTestVerifier(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{
			name:  "valid access token",
			token: func() string { return sign(t, key, validClaims()) },
		},
		{
			name: "id token rejected",
			token: func() string {
				c := validClaims()
				c.TokenUse = TokenUseID
				return sign(t, key, c)
			},
			wantErr: core.ErrInvalidToken,
		},
		{
			name: "other client rejected",
			token: func() string {
				c := validClaims()
				c.ClientID = "someone-else"
				return sign(t, key, c)
			},
			wantErr: core.ErrInvalidToken,
		},
		{
			name: "wrong issuer rejected",
			token: func() string {
				c := validClaims()
				c.Issuer = "https://evil.example.com"
				return sign(t, key, c)
			},
			wantErr: core.ErrInvalidToken,
		},
		{
			name: "expired",
			token: func() string {
				c := validClaims()
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				return sign(t, key, c)
			},
			wantErr: core.ErrTokenExpired,
		},
		{
			name:    "foreign signature",
			token:   func() string { return sign(t, otherKey, validClaims()) },
			wantErr: core.ErrInvalidToken,
		},
		{
			// Refresh tokens are encrypted five-part JWEs and never parse as a signed token
			name:    "refresh token rejected",
			token:   func() string { return "eyJjdHkiOiJKV1QiLCJlbmMiOiJBMjU2R0NNIiwiYWxnIjoiUlNBLU9BRVAifQ.a.b.c.d" },
			wantErr: core.ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := v.VerifyAccessToken(context.Background(), tt.token())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, principal)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "sub-123", principal.Subject)
			assert.Equal(t, "alice", principal.Username)
			assert.Equal(t, testClientID, principal.ClientID)
			assert.Equal(t, []string{"aws.cognito.signin.user.admin"}, principal.Scopes)
		})
	}
}

package verifier

import "github.com/golang-jwt/jwt/v5"

// Token uses issued by the user pool
const (
	TokenUseAccess = "access"
	TokenUseID     = "id"
)

// AccessClaims combines standard claims with the ones the user pool puts into access tokens
type AccessClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Scope    string `json:"scope"`
}

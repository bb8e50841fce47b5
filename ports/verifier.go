package ports

import (
	"context"

	"github.com/layer-3/bustrack/core"
)

// TokenVerifier validates bearer access tokens presented to resource endpoints
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*core.Principal, error)
}

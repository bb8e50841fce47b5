package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/bustrack/core"
)

// statusFor maps an error to an HTTP status. authStatus is used for
// authentication failures, which some endpoints report as 400.
func statusFor(err error, authStatus int) int {
	var upstream *core.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return upstream.StatusCode
	case errors.Is(err, core.ErrProviderUnavailable), errors.Is(err, core.ErrConfiguration):
		return http.StatusServiceUnavailable
	}

	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindAuthentication:
		return authStatus
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindUpstream:
		return http.StatusBadGateway
	}

	if errors.Is(err, core.ErrProvider) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error, authStatus int) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err, authStatus), gin.H{"error": core.SafeMessage(err)})
}

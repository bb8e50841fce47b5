package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/bustrack/core"
	"github.com/layer-3/bustrack/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
}

func tokenResponse(tokens *core.TokenSet) gin.H {
	return gin.H{
		"accessToken":  tokens.AccessToken,
		"idToken":      tokens.IDToken,
		"refreshToken": tokens.RefreshToken,
	}
}

// Authenticate handles username/password sign in
func (h *AuthHandlers) Authenticate(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), core.Credential{
		Identifier: req.Username,
		Secret:     req.Password,
	})
	if err != nil {
		abortWithError(c, err, http.StatusUnauthorized)
		return
	}

	if result.IsChallenge() {
		c.JSON(http.StatusOK, gin.H{
			"challenge": result.Challenge.Kind,
			"session":   result.Challenge.Session,
		})
		return
	}

	c.JSON(http.StatusOK, tokenResponse(result.Tokens))
}

// SetNewPassword completes a NEW_PASSWORD_REQUIRED challenge
func (h *AuthHandlers) SetNewPassword(c *gin.Context) {
	var req struct {
		Username        string `json:"username"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
		Session         string `json:"session"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	tokens, err := h.authService.SetNewPassword(c.Request.Context(), req.Username, req.NewPassword, req.ConfirmPassword, req.Session)
	if err != nil {
		abortWithError(c, err, http.StatusUnauthorized)
		return
	}

	c.JSON(http.StatusOK, tokenResponse(tokens))
}

// RefreshToken exchanges a refresh token for new access and id tokens
func (h *AuthHandlers) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
		Username     string `json:"username"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, req.Username)
	if err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}

	resp := gin.H{
		"accessToken": tokens.AccessToken,
		"idToken":     tokens.IDToken,
		"expiresIn":   int64(tokens.ExpiresIn.Seconds()),
	}
	if tokens.RefreshToken != "" {
		resp["refreshToken"] = tokens.RefreshToken
	}
	c.JSON(http.StatusOK, resp)
}

// ForgotPassword sends a reset code. The answer does not reveal whether the account exists.
func (h *AuthHandlers) ForgotPassword(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Username); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset code sent successfully."})
}

// ConfirmForgotPassword sets a new password with a reset code
func (h *AuthHandlers) ConfirmForgotPassword(c *gin.Context) {
	var req struct {
		Username         string `json:"username"`
		ConfirmationCode string `json:"confirmationCode"`
		Password         string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := h.authService.ConfirmForgotPassword(c.Request.Context(), req.Username, req.ConfirmationCode, req.Password); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully."})
}

// ChangePassword changes the password of the user owning the access token
func (h *AuthHandlers) ChangePassword(c *gin.Context) {
	var req struct {
		Username    string `json:"username"`
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
		AccessToken string `json:"accessToken"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), req.Username, req.AccessToken, req.OldPassword, req.NewPassword); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully."})
}

// GetDetails returns the directory record of a user
func (h *AuthHandlers) GetDetails(c *gin.Context) {
	details, err := h.authService.GetUserDetails(c.Request.Context(), c.Query("username"))
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		abortWithError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username":   details.Username,
		"attributes": details.Attributes,
		"enabled":    details.Enabled,
		"status":     details.Status,
	})
}

// Deactivate disables the caller's own account
func (h *AuthHandlers) Deactivate(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	principal := principalFrom(c)
	if principal == nil || principal.Username != req.Username {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	if err := h.authService.DisableUser(c.Request.Context(), req.Username); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deactivated successfully."})
}

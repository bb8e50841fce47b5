package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/bustrack/adapters/events"
	"github.com/layer-3/bustrack/core"
	"github.com/layer-3/bustrack/internal/metrics"
	"github.com/layer-3/bustrack/ports"
)

const defaultSessionTTL = 3 * time.Minute

// AuthService drives the authentication flow against the identity provider.
// It keeps no per-user state; the only thing remembered is which challenge
// sessions were already consumed.
type AuthService struct {
	provider ports.IdentityProvider
	sessions ports.SessionStore
	eventPub ports.EventPublisher
	logger   *zap.Logger
	metrics  *metrics.Metrics

	sessionTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	provider ports.IdentityProvider,
	sessions ports.SessionStore,
	eventPub ports.EventPublisher,
	logger *zap.Logger,
	m *metrics.Metrics,
	sessionTTL time.Duration,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eventPub == nil {
		eventPub = events.NopPublisher{}
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &AuthService{
		provider:   provider,
		sessions:   sessions,
		eventPub:   eventPub,
		logger:     logger.Named("auth"),
		metrics:    m,
		sessionTTL: sessionTTL,
	}
}

// Authenticate submits a credential. The result carries either tokens or a challenge.
func (s *AuthService) Authenticate(ctx context.Context, cred core.Credential) (core.AuthResult, error) {
	if blank(cred.Identifier) || cred.Secret == "" {
		return core.AuthResult{}, core.Invalid("Username and password are required.")
	}

	result, err := s.provider.InitiateAuth(ctx, cred.Identifier, cred.Secret)
	if err != nil {
		s.logger.Info("authentication failed", zap.String("username", cred.Identifier), zap.Error(err))
		return core.AuthResult{}, err
	}

	if result.IsChallenge() {
		s.publish(ctx, events.ChallengeIssued, cred.Identifier)
	} else {
		s.publish(ctx, events.LoginSucceeded, cred.Identifier)
	}
	return result, nil
}

// SetNewPassword answers a NEW_PASSWORD_REQUIRED challenge. confirmation is
// optional; when given it must equal newPassword. A session is accepted once.
func (s *AuthService) SetNewPassword(ctx context.Context, username, newPassword, confirmation, session string) (*core.TokenSet, error) {
	if blank(username) || newPassword == "" || session == "" {
		return nil, core.Invalid("Username, new password, and session are required.")
	}
	if err := checkNewSecret(newPassword, confirmation); err != nil {
		return nil, err
	}

	fresh, err := s.sessions.Consume(ctx, fingerprint(session), s.sessionTTL)
	if err != nil {
		s.logger.Error("failed to record challenge session", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	if !fresh {
		if s.metrics != nil {
			s.metrics.RejectedReplays.Inc()
		}
		s.logger.Warn("challenge session replayed", zap.String("username", username))
		return nil, core.ErrChallengeExpired
	}

	tokens, err := s.provider.RespondToNewSecretChallenge(ctx, username, newPassword, session)
	if err != nil {
		s.logger.Info("new password challenge failed", zap.String("username", username), zap.Error(err))
		if retryable(err) {
			s.release(ctx, username, session)
		}
		return nil, err
	}

	s.publish(ctx, events.PasswordSet, username)
	return tokens, nil
}

// Refresh exchanges a refresh token for fresh access and id tokens.
// username is only needed when the app client has a secret.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, username string) (*core.TokenSet, error) {
	if refreshToken == "" {
		return nil, core.Invalid("Refresh token is required.")
	}

	tokens, err := s.provider.Refresh(ctx, refreshToken, username)
	if err != nil {
		s.logger.Info("token refresh failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	return tokens, nil
}

// ForgotPassword asks the provider to send a reset code. Known and unknown
// accounts get the same answer.
func (s *AuthService) ForgotPassword(ctx context.Context, username string) error {
	if blank(username) {
		return core.Invalid("Username is required.")
	}

	err := s.provider.InitiatePasswordReset(ctx, username)
	switch {
	case errors.Is(err, core.ErrUnknownAccount):
		s.logger.Info("password reset requested for unknown account", zap.String("username", username))
		return nil
	case err != nil:
		s.logger.Info("password reset request failed", zap.String("username", username), zap.Error(err))
		return err
	}

	s.publish(ctx, events.PasswordResetRequested, username)
	return nil
}

// ConfirmForgotPassword sets a new password with a delivered reset code
func (s *AuthService) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	if blank(username) || blank(code) || newPassword == "" {
		return core.Invalid("Username, confirmation code, and password are required.")
	}
	if err := checkNewSecret(newPassword, ""); err != nil {
		return err
	}

	if err := s.provider.ConfirmPasswordReset(ctx, username, code, newPassword); err != nil {
		s.logger.Info("password reset confirmation failed", zap.String("username", username), zap.Error(err))
		return err
	}

	s.publish(ctx, events.PasswordResetConfirmed, username)
	return nil
}

// ChangePassword changes the password of a signed in user
func (s *AuthService) ChangePassword(ctx context.Context, username, accessToken, oldPassword, newPassword string) error {
	if accessToken == "" || oldPassword == "" || newPassword == "" {
		return core.Invalid("Access token, old password, and new password are required.")
	}
	if err := checkNewSecret(newPassword, ""); err != nil {
		return err
	}

	if err := s.provider.ChangePassword(ctx, accessToken, oldPassword, newPassword); err != nil {
		s.logger.Info("password change failed", zap.String("username", username), zap.Error(err))
		return err
	}

	s.publish(ctx, events.PasswordChanged, username)
	return nil
}

// GetUserDetails returns the provider record of a user
func (s *AuthService) GetUserDetails(ctx context.Context, username string) (*core.UserDetails, error) {
	if blank(username) {
		return nil, core.Invalid("Username is required.")
	}

	details, err := s.provider.GetUser(ctx, username)
	if err != nil {
		s.logger.Info("user lookup failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	return details, nil
}

// DisableUser deactivates a user account
func (s *AuthService) DisableUser(ctx context.Context, username string) error {
	if blank(username) {
		return core.Invalid("Username is required.")
	}

	if err := s.provider.DisableUser(ctx, username); err != nil {
		s.logger.Warn("user deactivation failed", zap.String("username", username), zap.Error(err))
		return err
	}

	s.publish(ctx, events.UserDisabled, username)
	return nil
}

// publish sends an auth event. Failures are logged and never fail the request.
func (s *AuthService) publish(ctx context.Context, eventType, username string) {
	if err := s.eventPub.PublishAuthEvent(ctx, eventType, username); err != nil {
		s.logger.Warn("failed to publish auth event",
			zap.String("event", eventType),
			zap.String("username", username),
			zap.Error(err))
	}
}

// retryable reports whether the provider left the challenge session unanswered,
// so the caller may present it again
func retryable(err error) bool {
	return errors.Is(err, core.ErrProviderUnavailable) || errors.Is(err, core.ErrWeakSecret)
}

// release makes a consumed session usable again. A failure only costs the
// caller a fresh sign in, so it is logged and not returned.
func (s *AuthService) release(ctx context.Context, username, session string) {
	if err := s.sessions.Release(context.WithoutCancel(ctx), fingerprint(session)); err != nil {
		s.logger.Warn("failed to release challenge session", zap.String("username", username), zap.Error(err))
	}
}

func checkNewSecret(secret, confirmation string) error {
	if len([]rune(secret)) < core.MinSecretLength {
		return core.NewError(core.ErrWeakSecret, "Password must be at least 8 characters long.", nil)
	}
	if confirmation != "" && confirmation != secret {
		return core.NewError(core.ErrPasswordMismatch, "Passwords do not match.", nil)
	}
	return nil
}

// fingerprint keys a challenge session without storing the session itself
func fingerprint(session string) string {
	sum := sha256.Sum256([]byte(session))
	return hex.EncodeToString(sum[:])
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

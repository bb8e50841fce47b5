package cognito

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"go.uber.org/zap"

	"github.com/layer-3/bustrack/core"
	"github.com/layer-3/bustrack/internal/metrics"
	"github.com/layer-3/bustrack/ports"
)

const defaultTimeout = 10 * time.Second

// API is the subset of the Cognito user pool API used here, enabling mock injection for testing
type API interface {
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, params *cip.RespondToAuthChallengeInput, optFns ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error)
	ForgotPassword(ctx context.Context, params *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, params *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
	ChangePassword(ctx context.Context, params *cip.ChangePasswordInput, optFns ...func(*cip.Options)) (*cip.ChangePasswordOutput, error)
	AdminGetUser(ctx context.Context, params *cip.AdminGetUserInput, optFns ...func(*cip.Options)) (*cip.AdminGetUserOutput, error)
	AdminDisableUser(ctx context.Context, params *cip.AdminDisableUserInput, optFns ...func(*cip.Options)) (*cip.AdminDisableUserOutput, error)
}

// Settings identifies the user pool and app client
type Settings struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string        // Optional; when set every request carries a SECRET_HASH
	Endpoint     string        // Optional endpoint override, e.g. a local emulator
	Timeout      time.Duration // Per call; defaults to 10s
}

// Client implements ports.IdentityProvider on top of a Cognito user pool
type Client struct {
	api      API
	settings Settings
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

var _ ports.IdentityProvider = (*Client)(nil)

// NewClient creates a Client with a regional Cognito client
func NewClient(ctx context.Context, settings Settings, logger *zap.Logger, m *metrics.Metrics) (*Client, error) {
	if settings.Region == "" {
		return nil, core.NewError(core.ErrConfiguration, "cognito region is missing", nil)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := cip.NewFromConfig(cfg, func(o *cip.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
		}
	})

	return newClient(api, settings, logger, m), nil
}

func newClient(api API, settings Settings, logger *zap.Logger, m *metrics.Metrics) *Client {
	if settings.Timeout <= 0 {
		settings.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:      api,
		settings: settings,
		logger:   logger.Named("cognito"),
		metrics:  m,
	}
}

// checkConfig fails before any network call when the app client is not configured
func (c *Client) checkConfig() error {
	if c.settings.ClientID == "" {
		return core.NewError(core.ErrConfiguration, "cognito client id is missing", nil)
	}
	if c.settings.Region == "" {
		return core.NewError(core.ErrConfiguration, "cognito region is missing", nil)
	}
	return nil
}

// secretHash returns the SECRET_HASH for username, or nil when no client secret is configured
func (c *Client) secretHash(username string) *string {
	if c.settings.ClientSecret == "" {
		return nil
	}
	return aws.String(SecretHash(username, c.settings.ClientID, c.settings.ClientSecret))
}

// call bounds fn with the configured timeout and records metrics
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.settings.Timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	c.metrics.ObserveProviderCall(op, start, err)
	return err
}

// InitiateAuth runs the USER_PASSWORD_AUTH flow
func (c *Client) InitiateAuth(ctx context.Context, username, password string) (core.AuthResult, error) {
	if err := c.checkConfig(); err != nil {
		return core.AuthResult{}, err
	}

	params := map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	}
	if hash := c.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	var out *cip.InitiateAuthOutput
	err := c.call(ctx, "initiate_auth", func(ctx context.Context) error {
		var err error
		out, err = c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
			ClientId:       aws.String(c.settings.ClientID),
			AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
			AuthParameters: params,
		})
		return err
	})
	if err != nil {
		c.logger.Info("initiate auth failed", zap.String("username", username), zap.Error(err))
		return core.AuthResult{}, mapError(err, opInitiateAuth)
	}

	if out.ChallengeName == types.ChallengeNameTypeNewPasswordRequired {
		return core.AuthResult{Challenge: &core.ChallengeSession{
			Kind:       core.ChallengeNewSecretRequired,
			Session:    aws.ToString(out.Session),
			Identifier: username,
		}}, nil
	}
	if out.ChallengeName != "" {
		c.logger.Warn("unsupported challenge", zap.String("username", username), zap.String("challenge", string(out.ChallengeName)))
		return core.AuthResult{}, core.NewError(core.ErrProvider, fmt.Sprintf("Unsupported challenge %s.", out.ChallengeName), nil)
	}

	tokens := toTokenSet(out.AuthenticationResult)
	if tokens == nil {
		return core.AuthResult{}, core.NewError(core.ErrInvalidCredentials, "Invalid credentials.", nil)
	}
	return core.AuthResult{Tokens: tokens}, nil
}

// RespondToNewSecretChallenge answers NEW_PASSWORD_REQUIRED with the session from InitiateAuth
func (c *Client) RespondToNewSecretChallenge(ctx context.Context, username, newPassword, session string) (*core.TokenSet, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}

	responses := map[string]string{
		"USERNAME":     username,
		"NEW_PASSWORD": newPassword,
	}
	if hash := c.secretHash(username); hash != nil {
		responses["SECRET_HASH"] = *hash
	}

	var out *cip.RespondToAuthChallengeOutput
	err := c.call(ctx, "respond_to_challenge", func(ctx context.Context) error {
		var err error
		out, err = c.api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
			ChallengeName:      types.ChallengeNameTypeNewPasswordRequired,
			ClientId:           aws.String(c.settings.ClientID),
			Session:            aws.String(session),
			ChallengeResponses: responses,
		})
		return err
	})
	if err != nil {
		c.logger.Info("respond to challenge failed", zap.String("username", username), zap.Error(err))
		return nil, mapError(err, opRespondToChallenge)
	}

	tokens := toTokenSet(out.AuthenticationResult)
	if tokens == nil {
		return nil, core.NewError(core.ErrChallengeExpired, "Failed to complete new password challenge.", nil)
	}
	return tokens, nil
}

// Refresh runs the REFRESH_TOKEN_AUTH flow. The provider does not rotate the refresh token,
// so the returned set carries none.
func (c *Client) Refresh(ctx context.Context, refreshToken, username string) (*core.TokenSet, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}

	params := map[string]string{
		"REFRESH_TOKEN": refreshToken,
	}
	if hash := c.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	var out *cip.InitiateAuthOutput
	err := c.call(ctx, "refresh", func(ctx context.Context) error {
		var err error
		out, err = c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
			ClientId:       aws.String(c.settings.ClientID),
			AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
			AuthParameters: params,
		})
		return err
	})
	if err != nil {
		c.logger.Info("refresh failed", zap.String("username", username), zap.Error(err))
		return nil, mapError(err, opRefresh)
	}

	tokens := toTokenSet(out.AuthenticationResult)
	if tokens == nil {
		return nil, core.NewError(core.ErrInvalidRefreshToken, "Refresh token was not accepted.", nil)
	}
	return tokens, nil
}

// InitiatePasswordReset asks the provider to send a reset code to the registered channel
func (c *Client) InitiatePasswordReset(ctx context.Context, username string) error {
	if err := c.checkConfig(); err != nil {
		return err
	}

	err := c.call(ctx, "forgot_password", func(ctx context.Context) error {
		_, err := c.api.ForgotPassword(ctx, &cip.ForgotPasswordInput{
			ClientId:   aws.String(c.settings.ClientID),
			Username:   aws.String(username),
			SecretHash: c.secretHash(username),
		})
		return err
	})
	if err != nil {
		c.logger.Info("forgot password failed", zap.String("username", username), zap.Error(err))
		return mapError(err, opPasswordReset)
	}
	return nil
}

// ConfirmPasswordReset sets newPassword using the delivered code
func (c *Client) ConfirmPasswordReset(ctx context.Context, username, code, newPassword string) error {
	if err := c.checkConfig(); err != nil {
		return err
	}

	err := c.call(ctx, "confirm_forgot_password", func(ctx context.Context) error {
		_, err := c.api.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
			ClientId:         aws.String(c.settings.ClientID),
			Username:         aws.String(username),
			ConfirmationCode: aws.String(code),
			Password:         aws.String(newPassword),
			SecretHash:       c.secretHash(username),
		})
		return err
	})
	if err != nil {
		c.logger.Info("confirm forgot password failed", zap.String("username", username), zap.Error(err))
		return mapError(err, opConfirmReset)
	}
	return nil
}

// ChangePassword changes the password of the user that owns accessToken
func (c *Client) ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error {
	if err := c.checkConfig(); err != nil {
		return err
	}

	err := c.call(ctx, "change_password", func(ctx context.Context) error {
		_, err := c.api.ChangePassword(ctx, &cip.ChangePasswordInput{
			AccessToken:      aws.String(accessToken),
			PreviousPassword: aws.String(oldPassword),
			ProposedPassword: aws.String(newPassword),
		})
		return err
	})
	if err != nil {
		return mapError(err, opChangePassword)
	}
	return nil
}

// GetUser fetches the user record and flattens its attributes
func (c *Client) GetUser(ctx context.Context, username string) (*core.UserDetails, error) {
	if err := c.checkAdminConfig(); err != nil {
		return nil, err
	}

	var out *cip.AdminGetUserOutput
	err := c.call(ctx, "admin_get_user", func(ctx context.Context) error {
		var err error
		out, err = c.api.AdminGetUser(ctx, &cip.AdminGetUserInput{
			UserPoolId: aws.String(c.settings.UserPoolID),
			Username:   aws.String(username),
		})
		return err
	})
	if err != nil {
		return nil, mapError(err, opAdmin)
	}

	details := &core.UserDetails{
		Username:   aws.ToString(out.Username),
		Attributes: make(map[string]string, len(out.UserAttributes)),
		Enabled:    out.Enabled,
		Status:     string(out.UserStatus),
		CreatedAt:  aws.ToTime(out.UserCreateDate),
	}
	for _, attr := range out.UserAttributes {
		details.Attributes[aws.ToString(attr.Name)] = aws.ToString(attr.Value)
	}
	return details, nil
}

// DisableUser disables sign-in for username
func (c *Client) DisableUser(ctx context.Context, username string) error {
	if err := c.checkAdminConfig(); err != nil {
		return err
	}

	err := c.call(ctx, "admin_disable_user", func(ctx context.Context) error {
		_, err := c.api.AdminDisableUser(ctx, &cip.AdminDisableUserInput{
			UserPoolId: aws.String(c.settings.UserPoolID),
			Username:   aws.String(username),
		})
		return err
	})
	if err != nil {
		return mapError(err, opAdmin)
	}
	return nil
}

func (c *Client) checkAdminConfig() error {
	if c.settings.UserPoolID == "" {
		return core.NewError(core.ErrConfiguration, "cognito user pool id is missing", nil)
	}
	if c.settings.Region == "" {
		return core.NewError(core.ErrConfiguration, "cognito region is missing", nil)
	}
	return nil
}

func toTokenSet(result *types.AuthenticationResultType) *core.TokenSet {
	if result == nil || result.AccessToken == nil {
		return nil
	}
	return &core.TokenSet{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresIn:    time.Duration(result.ExpiresIn) * time.Second,
	}
}

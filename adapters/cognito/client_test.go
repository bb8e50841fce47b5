package cognito

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/bustrack/core"
)

// mockAPI implements API for testing and records the last request of each kind
type mockAPI struct {
	calls int

	initiateOut *cip.InitiateAuthOutput
	initiateIn  *cip.InitiateAuthInput
	respondOut  *cip.RespondToAuthChallengeOutput
	respondIn   *cip.RespondToAuthChallengeInput
	forgotIn    *cip.ForgotPasswordInput
	confirmIn   *cip.ConfirmForgotPasswordInput
	changeIn    *cip.ChangePasswordInput
	getUserOut  *cip.AdminGetUserOutput
	disableIn   *cip.AdminDisableUserInput
	err         error
	block       bool
}

func (m *mockAPI) wait(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (m *mockAPI) InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, _ ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	m.calls++
	m.initiateIn = in
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.initiateOut, m.err
}

func (m *mockAPI) RespondToAuthChallenge(_ context.Context, in *cip.RespondToAuthChallengeInput, _ ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error) {
	m.calls++
	m.respondIn = in
	return m.respondOut, m.err
}

func (m *mockAPI) ForgotPassword(_ context.Context, in *cip.ForgotPasswordInput, _ ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error) {
	m.calls++
	m.forgotIn = in
	return &cip.ForgotPasswordOutput{}, m.err
}

func (m *mockAPI) ConfirmForgotPassword(_ context.Context, in *cip.ConfirmForgotPasswordInput, _ ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error) {
	m.calls++
	m.confirmIn = in
	return &cip.ConfirmForgotPasswordOutput{}, m.err
}

func (m *mockAPI) ChangePassword(_ context.Context, in *cip.ChangePasswordInput, _ ...func(*cip.Options)) (*cip.ChangePasswordOutput, error) {
	m.calls++
	m.changeIn = in
	return &cip.ChangePasswordOutput{}, m.err
}

func (m *mockAPI) AdminGetUser(_ context.Context, _ *cip.AdminGetUserInput, _ ...func(*cip.Options)) (*cip.AdminGetUserOutput, error) {
	m.calls++
	return m.getUserOut, m.err
}

func (m *mockAPI) AdminDisableUser(_ context.Context, in *cip.AdminDisableUserInput, _ ...func(*cip.Options)) (*cip.AdminDisableUserOutput, error) {
	m.calls++
	m.disableIn = in
	return &cip.AdminDisableUserOutput{}, m.err
}

var testSettings = Settings{
	Region:       "us-east-1",
	UserPoolID:   "us-east-1_pool",
	ClientID:     "client-id",
	ClientSecret: "client-secret",
}

func authResult() *types.AuthenticationResultType {
	return &types.AuthenticationResultType{
		AccessToken:  aws.String("access"),
		IdToken:      aws.String("id"),
		RefreshToken: aws.String("refresh"),
		ExpiresIn:    3600,
	}
}

func TestSecretHash(t *testing.T) {
	// Base64(HMAC-SHA256(key="client-secret", msg="alice"+"client-id"))
	assert.Equal(t, "qROqM+PMKX09MK8ulDVm8LCWdCRqQQEUG9HcF+N7/S4=", SecretHash("alice", "client-id", "client-secret"))
	assert.NotEqual(t, SecretHash("alice", "client-id", "client-secret"), SecretHash("bob", "client-id", "client-secret"))
}

func TestInitiateAuth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name          string
		settings      Settings
		out           *cip.InitiateAuthOutput
		err           error
		wantErr       error
		wantChallenge bool
		wantCalls     int
	}{
		{
			name:      "tokens issued",
			settings:  testSettings,
			out:       &cip.InitiateAuthOutput{AuthenticationResult: authResult()},
			wantCalls: 1,
		},
		{
			name:     "new password required",
			settings: testSettings,
			out: &cip.InitiateAuthOutput{
				ChallengeName: types.ChallengeNameTypeNewPasswordRequired,
				Session:       aws.String("opaque-session"),
			},
			wantChallenge: true,
			wantCalls:     1,
		},
		{
			name:      "rejected credentials",
			settings:  testSettings,
			err:       &types.NotAuthorizedException{Message: aws.String("Incorrect username or password.")},
			wantErr:   core.ErrInvalidCredentials,
			wantCalls: 1,
		},
		{
			name:      "unknown user looks like bad credentials",
			settings:  testSettings,
			err:       &types.UserNotFoundException{Message: aws.String("User does not exist.")},
			wantErr:   core.ErrInvalidCredentials,
			wantCalls: 1,
		},
		{
			name:      "unsupported challenge",
			settings:  testSettings,
			out:       &cip.InitiateAuthOutput{ChallengeName: types.ChallengeNameTypeSmsMfa, Session: aws.String("s")},
			wantErr:   core.ErrProvider,
			wantCalls: 1,
		},
		{
			name:      "missing client id fails before any call",
			settings:  Settings{Region: "us-east-1"},
			wantErr:   core.ErrConfiguration,
			wantCalls: 0,
		},
		{
			name:      "missing region fails before any call",
			settings:  Settings{ClientID: "client-id"},
			wantErr:   core.ErrConfiguration,
			wantCalls: 0,
		},
		{
			name:      "transport failure",
			settings:  testSettings,
			err:       errors.New("dial tcp: connection refused"),
			wantErr:   core.ErrProviderUnavailable,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &mockAPI{initiateOut: tt.out, err: tt.err}
			client := newClient(api, tt.settings, nil, nil)

			result, err := client.InitiateAuth(ctx, "alice", "Passw0rd!")
			assert.Equal(t, tt.wantCalls, api.calls)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, types.AuthFlowTypeUserPasswordAuth, api.initiateIn.AuthFlow)
			assert.Equal(t, "alice", api.initiateIn.AuthParameters["USERNAME"])
			assert.Equal(t, SecretHash("alice", "client-id", "client-secret"), api.initiateIn.AuthParameters["SECRET_HASH"])

			if tt.wantChallenge {
				require.True(t, result.IsChallenge())
				assert.Nil(t, result.Tokens)
				assert.Equal(t, core.ChallengeNewSecretRequired, result.Challenge.Kind)
				assert.Equal(t, "opaque-session", result.Challenge.Session)
				return
			}
			require.NotNil(t, result.Tokens)
			assert.False(t, result.IsChallenge())
			assert.Equal(t, "access", result.Tokens.AccessToken)
			assert.Equal(t, "id", result.Tokens.IDToken)
			assert.Equal(t, "refresh", result.Tokens.RefreshToken)
			assert.Equal(t, time.Hour, result.Tokens.ExpiresIn)
		})
	}
}

func TestInitiateAuthWithoutSecretOmitsHash(t *testing.T) {
	api := &mockAPI{initiateOut: &cip.InitiateAuthOutput{AuthenticationResult: authResult()}}
	client := newClient(api, Settings{Region: "us-east-1", ClientID: "public-client"}, nil, nil)

	_, err := client.InitiateAuth(context.Background(), "alice", "Passw0rd!")
	require.NoError(t, err)

	_, ok := api.initiateIn.AuthParameters["SECRET_HASH"]
	assert.False(t, ok)
}

func TestInitiateAuthTimeout(t *testing.T) {
	api := &mockAPI{block: true}
	settings := testSettings
	settings.Timeout = 20 * time.Millisecond
	client := newClient(api, settings, nil, nil)

	_, err := client.InitiateAuth(context.Background(), "alice", "Passw0rd!")
	require.ErrorIs(t, err, core.ErrProviderUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRespondToNewSecretChallenge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		out     *cip.RespondToAuthChallengeOutput
		err     error
		wantErr error
	}{
		{
			name: "tokens issued",
			out:  &cip.RespondToAuthChallengeOutput{AuthenticationResult: authResult()},
		},
		{
			name:    "stale session",
			err:     &types.NotAuthorizedException{Message: aws.String("Invalid session for the user, session is expired.")},
			wantErr: core.ErrChallengeExpired,
		},
		{
			name:    "code mismatch on session",
			err:     &types.CodeMismatchException{Message: aws.String("Invalid session provided")},
			wantErr: core.ErrChallengeExpired,
		},
		{
			name:    "weak password",
			err:     &types.InvalidPasswordException{Message: aws.String("Password does not conform to policy: Password must have symbol characters")},
			wantErr: core.ErrWeakSecret,
		},
		{
			name:    "no tokens in response",
			out:     &cip.RespondToAuthChallengeOutput{},
			wantErr: core.ErrChallengeExpired,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &mockAPI{respondOut: tt.out, err: tt.err}
			client := newClient(api, testSettings, nil, nil)

			tokens, err := client.RespondToNewSecretChallenge(context.Background(), "alice", "N3wPassw0rd!", "session-1")

			require.NotNil(t, api.respondIn)
			assert.Equal(t, types.ChallengeNameTypeNewPasswordRequired, api.respondIn.ChallengeName)
			assert.Equal(t, "session-1", aws.ToString(api.respondIn.Session))
			assert.Equal(t, "N3wPassw0rd!", api.respondIn.ChallengeResponses["NEW_PASSWORD"])
			assert.Equal(t, SecretHash("alice", "client-id", "client-secret"), api.respondIn.ChallengeResponses["SECRET_HASH"])

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, tokens)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "access", tokens.AccessToken)
		})
	}
}

func TestRefresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		api := &mockAPI{initiateOut: &cip.InitiateAuthOutput{AuthenticationResult: &types.AuthenticationResultType{
			AccessToken: aws.String("new-access"),
			IdToken:     aws.String("new-id"),
			ExpiresIn:   300,
		}}}
		client := newClient(api, testSettings, nil, nil)

		tokens, err := client.Refresh(context.Background(), "refresh-token", "alice")
		require.NoError(t, err)
		assert.Equal(t, "new-access", tokens.AccessToken)
		assert.Equal(t, "new-id", tokens.IDToken)
		assert.Empty(t, tokens.RefreshToken)
		assert.Equal(t, 5*time.Minute, tokens.ExpiresIn)
		assert.Equal(t, types.AuthFlowTypeRefreshTokenAuth, api.initiateIn.AuthFlow)
		assert.Equal(t, "refresh-token", api.initiateIn.AuthParameters["REFRESH_TOKEN"])
	})

	t.Run("revoked", func(t *testing.T) {
		api := &mockAPI{err: &types.NotAuthorizedException{Message: aws.String("Refresh Token has expired")}}
		client := newClient(api, testSettings, nil, nil)

		_, err := client.Refresh(context.Background(), "refresh-token", "alice")
		require.ErrorIs(t, err, core.ErrInvalidRefreshToken)
		assert.Equal(t, "Refresh Token has expired", core.SafeMessage(err))
	})

	t.Run("malformed", func(t *testing.T) {
		api := &mockAPI{err: &types.InvalidParameterException{Message: aws.String("Invalid Refresh Token")}}
		client := newClient(api, testSettings, nil, nil)

		_, err := client.Refresh(context.Background(), "garbage", "alice")
		require.ErrorIs(t, err, core.ErrInvalidRefreshToken)
	})
}

func TestPasswordReset(t *testing.T) {
	t.Run("initiate sends hash", func(t *testing.T) {
		api := &mockAPI{}
		client := newClient(api, testSettings, nil, nil)

		require.NoError(t, client.InitiatePasswordReset(context.Background(), "alice"))
		assert.Equal(t, "alice", aws.ToString(api.forgotIn.Username))
		assert.Equal(t, SecretHash("alice", "client-id", "client-secret"), aws.ToString(api.forgotIn.SecretHash))
	})

	t.Run("initiate unknown account", func(t *testing.T) {
		api := &mockAPI{err: &types.UserNotFoundException{Message: aws.String("Username/client id combination not found.")}}
		client := newClient(api, testSettings, nil, nil)

		require.ErrorIs(t, client.InitiatePasswordReset(context.Background(), "ghost"), core.ErrUnknownAccount)
	})

	t.Run("confirm wrong code", func(t *testing.T) {
		api := &mockAPI{err: &types.CodeMismatchException{Message: aws.String("Invalid verification code provided, please try again.")}}
		client := newClient(api, testSettings, nil, nil)

		err := client.ConfirmPasswordReset(context.Background(), "alice", "000000", "N3wPassw0rd!")
		require.ErrorIs(t, err, core.ErrInvalidCode)
		assert.Equal(t, "000000", aws.ToString(api.confirmIn.ConfirmationCode))
	})

	t.Run("confirm unknown account looks like a wrong code", func(t *testing.T) {
		api := &mockAPI{err: &types.UserNotFoundException{Message: aws.String("Username/client id combination not found.")}}
		client := newClient(api, testSettings, nil, nil)

		err := client.ConfirmPasswordReset(context.Background(), "ghost", "123456", "N3wPassw0rd!")
		require.ErrorIs(t, err, core.ErrInvalidCode)
		assert.Equal(t, "Invalid confirmation code.", core.SafeMessage(err))
	})

	t.Run("confirm expired code", func(t *testing.T) {
		api := &mockAPI{err: &types.ExpiredCodeException{Message: aws.String("Invalid code provided, please request a code again.")}}
		client := newClient(api, testSettings, nil, nil)

		require.ErrorIs(t, client.ConfirmPasswordReset(context.Background(), "alice", "123456", "N3wPassw0rd!"), core.ErrInvalidCode)
	})

	t.Run("confirm weak password", func(t *testing.T) {
		api := &mockAPI{err: &types.InvalidPasswordException{Message: aws.String("Password does not conform to policy")}}
		client := newClient(api, testSettings, nil, nil)

		require.ErrorIs(t, client.ConfirmPasswordReset(context.Background(), "alice", "123456", "weakweak"), core.ErrWeakSecret)
	})
}

func TestChangePassword(t *testing.T) {
	api := &mockAPI{err: &types.NotAuthorizedException{Message: aws.String("Incorrect username or password.")}}
	client := newClient(api, testSettings, nil, nil)

	err := client.ChangePassword(context.Background(), "access", "old", "N3wPassw0rd!")
	require.ErrorIs(t, err, core.ErrInvalidCredentials)
	assert.Equal(t, "access", aws.ToString(api.changeIn.AccessToken))
	assert.Equal(t, "N3wPassw0rd!", aws.ToString(api.changeIn.ProposedPassword))
}

func TestGetUser(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	api := &mockAPI{getUserOut: &cip.AdminGetUserOutput{
		Username: aws.String("alice"),
		Enabled:  true,
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String("alice@example.com")},
			{Name: aws.String("given_name"), Value: aws.String("Alice")},
		},
		UserStatus:     types.UserStatusTypeConfirmed,
		UserCreateDate: &created,
	}}
	client := newClient(api, testSettings, nil, nil)

	details, err := client.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", details.Username)
	assert.Equal(t, "alice@example.com", details.Attributes["email"])
	assert.Equal(t, "Alice", details.Attributes["given_name"])
	assert.True(t, details.Enabled)
	assert.Equal(t, "CONFIRMED", details.Status)
	assert.Equal(t, created, details.CreatedAt)

	t.Run("not found", func(t *testing.T) {
		api := &mockAPI{err: &types.UserNotFoundException{Message: aws.String("User does not exist.")}}
		client := newClient(api, testSettings, nil, nil)

		_, err := client.GetUser(context.Background(), "ghost")
		require.ErrorIs(t, err, core.ErrUserNotFound)
	})

	t.Run("missing pool id", func(t *testing.T) {
		api := &mockAPI{}
		client := newClient(api, Settings{Region: "us-east-1", ClientID: "client-id"}, nil, nil)

		_, err := client.GetUser(context.Background(), "alice")
		require.ErrorIs(t, err, core.ErrConfiguration)
		assert.Zero(t, api.calls)
	})
}

func TestDisableUser(t *testing.T) {
	api := &mockAPI{}
	client := newClient(api, testSettings, nil, nil)

	require.NoError(t, client.DisableUser(context.Background(), "alice"))
	assert.Equal(t, "us-east-1_pool", aws.ToString(api.disableIn.UserPoolId))
	assert.Equal(t, "alice", aws.ToString(api.disableIn.Username))
}

func TestNewClientRequiresRegion(t *testing.T) {
	_, err := NewClient(context.Background(), Settings{ClientID: "client-id"}, nil, nil)
	require.ErrorIs(t, err, core.ErrConfiguration)
}

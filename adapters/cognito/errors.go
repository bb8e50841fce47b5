package cognito

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"github.com/layer-3/bustrack/core"
)

type operation int

const (
	opInitiateAuth operation = iota
	opRespondToChallenge
	opRefresh
	opPasswordReset
	opConfirmReset
	opChangePassword
	opAdmin
)

// mapError translates a user pool error into the core taxonomy, keeping the provider message
func mapError(err error, op operation) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewError(core.ErrProviderUnavailable, "Identity provider did not respond in time.", err)
	}
	if errors.Is(err, context.Canceled) {
		return core.NewError(core.ErrProviderUnavailable, "Request was cancelled.", err)
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return core.NewError(core.ErrProviderUnavailable, "Identity provider unreachable.", err)
	}
	msg := apiErr.ErrorMessage()

	var (
		notAuthorized   *types.NotAuthorizedException
		userNotFound    *types.UserNotFoundException
		invalidPassword *types.InvalidPasswordException
		codeMismatch    *types.CodeMismatchException
		expiredCode     *types.ExpiredCodeException
		invalidParam    *types.InvalidParameterException
		notConfirmed    *types.UserNotConfirmedException
		resetRequired   *types.PasswordResetRequiredException
	)

	switch {
	case errors.As(err, &invalidPassword):
		return core.NewError(core.ErrWeakSecret, msg, err)
	case errors.As(err, &codeMismatch), errors.As(err, &expiredCode):
		if op == opRespondToChallenge {
			return core.NewError(core.ErrChallengeExpired, msg, err)
		}
		return core.NewError(core.ErrInvalidCode, msg, err)
	case errors.As(err, &notAuthorized):
		switch op {
		case opRespondToChallenge:
			return core.NewError(core.ErrChallengeExpired, msg, err)
		case opRefresh:
			return core.NewError(core.ErrInvalidRefreshToken, msg, err)
		default:
			return core.NewError(core.ErrInvalidCredentials, msg, err)
		}
	case errors.As(err, &userNotFound):
		switch op {
		case opInitiateAuth, opRespondToChallenge:
			return core.NewError(core.ErrInvalidCredentials, "Invalid credentials.", err)
		case opPasswordReset:
			return core.NewError(core.ErrUnknownAccount, msg, err)
		case opConfirmReset:
			// Same answer as a wrong code so the account's existence is not revealed
			return core.NewError(core.ErrInvalidCode, "Invalid confirmation code.", err)
		case opRefresh:
			return core.NewError(core.ErrInvalidRefreshToken, msg, err)
		default:
			return core.NewError(core.ErrUserNotFound, msg, err)
		}
	case errors.As(err, &notConfirmed), errors.As(err, &resetRequired):
		return core.NewError(core.ErrInvalidCredentials, msg, err)
	case errors.As(err, &invalidParam):
		if op == opRefresh {
			return core.NewError(core.ErrInvalidRefreshToken, msg, err)
		}
		return core.NewError(core.ErrInvalidInput, msg, err)
	}

	return core.NewError(core.ErrProvider, msg, err)
}

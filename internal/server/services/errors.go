package services

import (
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/samber/oops"
)

// Public messages surfaced to callers. The client matches on
// MsgAccessTokenExpired to decide when to refresh.
const (
	MsgInvalidCredentials  = "invalid credentials"
	MsgAccountBlocked      = "account is blocked"
	MsgInvalidRefreshToken = "invalid refresh token"
	MsgInvalidAccessToken  = "invalid access token"
	MsgAccessTokenExpired  = common.AccessTokenExpiredMessage
	MsgWeakPassword        = "password does not meet complexity requirements"
	MsgPasswordTooLong     = "password is too long"
	MsgAlreadyTaken        = "email or name already taken"
	MsgUserLimitReached    = "user limit reached"
	MsgUserNotFound        = "user not found"
	MsgWrongPassword       = "old password is incorrect"
	MsgResetCodeExpired    = "code has expired"
	MsgInvalidResetCode    = "invalid code"
)

func errInvalidCredentials() error {
	return common.Fail(common.ErrorUnauthorized, "AUTH_INVALID_CREDENTIALS", MsgInvalidCredentials)
}

func errLoginBlocked() error {
	return common.Fail(common.ErrorUnauthorized, "AUTH_ACCOUNT_BLOCKED", MsgAccountBlocked)
}

func errChangeBlocked() error {
	return common.Fail(common.ErrorForbidden, "AUTH_ACCOUNT_BLOCKED", MsgAccountBlocked)
}

func errInvalidRefreshToken() error {
	return common.Fail(common.ErrorUnauthorized, "AUTH_INVALID_REFRESH_TOKEN", MsgInvalidRefreshToken)
}

func errInvalidAccessToken() error {
	return common.Fail(common.ErrorUnauthorized, "AUTH_INVALID_ACCESS_TOKEN", MsgInvalidAccessToken)
}

func errAccessTokenExpired() error {
	return common.Fail(common.ErrorUnauthorized, "AUTH_ACCESS_TOKEN_EXPIRED", MsgAccessTokenExpired)
}

func errWeakPassword() error {
	return common.Fail(common.ErrorForbidden, "AUTH_WEAK_PASSWORD", MsgWeakPassword)
}

func errPasswordTooLong() error {
	return common.Fail(common.ErrorForbidden, "AUTH_PASSWORD_TOO_LONG", MsgPasswordTooLong)
}

func errAlreadyTaken() error {
	return common.Fail(common.ErrorConflict, "AUTH_ALREADY_TAKEN", MsgAlreadyTaken)
}

func errUserLimitReached() error {
	return common.Fail(common.ErrorForbidden, "AUTH_USER_LIMIT", MsgUserLimitReached)
}

func errUserNotFound() error {
	return common.Fail(common.ErrorNotFound, "AUTH_USER_NOT_FOUND", MsgUserNotFound)
}

func errWrongPassword() error {
	return common.Fail(common.ErrorUnauthorized, "AUTH_WRONG_PASSWORD", MsgWrongPassword)
}

func errResetCodeExpired() error {
	return common.Fail(common.ErrorForbidden, "AUTH_RESET_CODE_EXPIRED", MsgResetCodeExpired)
}

func errInvalidResetCode() error {
	return common.Fail(common.ErrorUnauthorized, "AUTH_INVALID_RESET_CODE", MsgInvalidResetCode)
}

// internal wraps an unexpected failure of op. The caller only ever sees the
// transport's fixed message.
func internal(op string, err error) error {
	return oops.Code("SESSION_INTERNAL").With("operation", op).Wrap(common.Internal(err))
}

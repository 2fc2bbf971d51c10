package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Stable text codes surfaced to API clients alongside the HTTP status.
const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeAccountDisabled    = "ACCOUNT_DISABLED"
	TextCodeAccountLocked      = "ACCOUNT_LOCKED"
	TextCodeCredentialsExpired = "CREDENTIALS_EXPIRED"
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeStateUnchanged     = "ACCOUNT_STATE_UNCHANGED"
	TextCodeEmailTaken         = "EMAIL_ALREADY_EXISTS"
	TextCodePhoneTaken         = "PHONE_ALREADY_EXISTS"
	TextCodePasswordMismatch   = "PASSWORD_MISMATCH"
	TextCodeInvalidCurrentPwd  = "INVALID_CURRENT_PASSWORD"
	TextCodeRoleNotConfigured  = "ROLE_NOT_CONFIGURED"
	TextCodeTokenInvalid       = "TOKEN_INVALID"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTooManyAttempts    = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeInternal           = "INTERNAL_ERROR"
)

// ErrInvalidCredentials is returned when a login password does not match.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrAccountDisabled blocks authentication for accounts with enabled=false.
var ErrAccountDisabled = errors.New("account is disabled", errors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeUnauthorized)

// ErrAccountLocked blocks authentication for locked accounts.
var ErrAccountLocked = errors.New("account is locked", errors.CategoryAuth).
	WithTextCode(TextCodeAccountLocked).
	WithCode(errors.CodeUnauthorized)

// ErrCredentialsExpired blocks authentication when the stored credential has
// been flagged as expired and must be rotated out of band.
var ErrCredentialsExpired = errors.New("account credentials are expired", errors.CategoryAuth).
	WithTextCode(TextCodeCredentialsExpired).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotFound is returned for unresolvable account ids or emails.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrAccountStateUnchanged guards deactivate/reactivate idempotency: the
// account is already in the requested enabled state.
var ErrAccountStateUnchanged = errors.New("account already in the requested state", errors.CategoryConflict).
	WithTextCode(TextCodeStateUnchanged).
	WithCode(errors.CodeConflict)

// ErrEmailTaken is returned when registration collides on email.
var ErrEmailTaken = errors.New("email is already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrPhoneTaken is returned when registration collides on phone number.
var ErrPhoneTaken = errors.New("phone number is already registered", errors.CategoryConflict).
	WithTextCode(TextCodePhoneTaken).
	WithCode(errors.CodeConflict)

// ErrPasswordMismatch is returned when password and confirmation differ.
var ErrPasswordMismatch = errors.New("passwords do not match", errors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCurrentPassword is returned by password change when the presented
// current password does not match the stored hash.
var ErrInvalidCurrentPassword = errors.New("current password is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCurrentPwd).
	WithCode(errors.CodeUnauthorized)

// ErrRoleNotConfigured means the default role row is missing. This is an
// operations fault, not a user error: log it loud, do not blame the caller.
var ErrRoleNotConfigured = errors.New("default role is not configured", errors.CategoryInternal).
	WithTextCode(TextCodeRoleNotConfigured).
	WithCode(errors.CodeInternal)

// ErrTokenInvalid covers malformed tokens, bad signatures, and use mismatches.
var ErrTokenInvalid = errors.New("invalid authentication token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when an otherwise valid token has aged out.
var ErrTokenExpired = errors.New("authentication token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when the login attempt counter exceeds
// MaxLoginAttempts inside the cooldown window.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrUnableToFindIdentity is returned when a request carries no resolved
// identity under the configured context key.
var ErrUnableToFindIdentity = errors.New("unable to find identity in request", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeIdentity is returned when the value stored under the
// context key is not an Identity.
var ErrUnableToDecodeIdentity = errors.New("unable to decode identity in request", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

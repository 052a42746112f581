package authgate

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called before
	// the engine was constructed through [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrInvalidCredentials covers wrong password, unknown email and
	// not-yet-activated accounts. The three are deliberately
	// indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLockedOut is returned once the failed-login counter reaches the
	// configured threshold. A password reset is required to clear it; a
	// correct password no longer authenticates.
	ErrLockedOut = errors.New("too many failed attempts, password reset required")
	// ErrAccountDisabledByAdmin is returned after a correct password when
	// the account was disabled by an administrator.
	ErrAccountDisabledByAdmin = errors.New("account disabled by administrator")
	// ErrLoginRateLimited is returned when the optional Redis throttle
	// rejects a login attempt before any store work is done.
	ErrLoginRateLimited = errors.New("login rate limited")

	// ErrEmailTaken is returned on registration or email update when the
	// normalized address already belongs to an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned by store lookups and identity-scoped
	// operations when no account matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenNotFound is an exported token-consumption failure. The four
	// token errors are distinguishable internally; boundaries are expected
	// to collapse them into one generic message.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenTypeMismatch is returned when a token exists but was issued
	// for a different operation.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenUsed is returned when a token was already consumed, including
	// by a concurrent request that won the race.
	ErrTokenUsed = errors.New("token already used")

	// ErrMFANotEnabled is returned when an MFA verification is attempted
	// against an account with no enrolled secret.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrCodeInvalid is returned when neither the TOTP code nor a backup
	// code matches.
	ErrCodeInvalid = errors.New("invalid verification code")
	// ErrChallengeNotFound is returned when the pre-auth challenge id is
	// unknown, already consumed, or expired out of Redis.
	ErrChallengeNotFound = errors.New("mfa challenge not found")
	// ErrChallengeExpired is returned when the challenge outlived its TTL.
	ErrChallengeExpired = errors.New("mfa challenge expired")
	// ErrChallengeAttemptsExceeded is returned when the per-challenge
	// attempt cap is reached; the challenge is deleted.
	ErrChallengeAttemptsExceeded = errors.New("mfa challenge attempts exceeded")
	// ErrChallengeReplay is returned when a concurrent verification already
	// consumed the challenge.
	ErrChallengeReplay = errors.New("mfa challenge replay detected")
	// ErrChallengeBackend wraps Redis failures in the challenge store.
	ErrChallengeBackend = errors.New("mfa challenge backend unavailable")

	// ErrPermissionDenied is returned for admin-only operations invoked by
	// a non-admin actor.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrSelfTarget is returned when an admin tries to disable their own
	// account.
	ErrSelfTarget = errors.New("administrators cannot disable their own account")
	// ErrConfirmationMismatch is returned when the typed confirmation
	// phrase does not match exactly.
	ErrConfirmationMismatch = errors.New("confirmation phrase mismatch")
	// ErrAccountNotDisabled is returned by self-reactivation when the
	// account is already active.
	ErrAccountNotDisabled = errors.New("account is not disabled")
	// ErrSameEmail is returned when an email update is a no-op.
	ErrSameEmail = errors.New("new email is the same as the current email")

	// ErrStoreUnavailable wraps credential-store failures that are not one
	// of the typed outcomes above.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/authgate/authgate/internal"
	"github.com/authgate/authgate/internal/rate"
	"github.com/authgate/authgate/validate"
)

// Login runs the password stage of authentication.
//
// The outcome for an unknown email, a wrong password, and a
// not-yet-activated account is the same ErrInvalidCredentials, so a
// caller cannot probe which addresses hold accounts. A locked account
// stays locked regardless of password correctness; only a completed
// password reset clears the lock. An account disabled by an admin is
// reported distinctly because the password was correct.
//
// When the account has MFA enabled the result carries MFARequired and an
// opaque ChallengeID instead of an Identity; the caller completes the
// login through VerifyMFA.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return e.LoginFromIP(ctx, email, password, "")
}

// LoginFromIP is Login with a caller-supplied remote address for the
// optional IP throttle.
func (e *Engine) LoginFromIP(ctx context.Context, email, password, remoteIP string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = validate.NormalizeEmail(email)

	if err := e.limiter.CheckLogin(ctx, email, remoteIP); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			e.metricInc(MetricLoginRateLimited)
			return nil, ErrLoginRateLimited
		}
		// Throttle backend trouble must not take logins down with it.
		e.logger.Warn("login throttle unavailable", "error", err)
	}

	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, AuditLoginFailure, "", "", false, ErrInvalidCredentials, map[string]string{"email": email})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	// Lockout is checked before the password so a locked account leaks
	// nothing about guess correctness.
	if user.FailedLogins >= e.config.Security.MaxFailedLogins {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, AuditLoginLocked, user.UserID, "", false, ErrLockedOut, nil)
		return nil, ErrLockedOut
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok || !user.Activated {
		if _, incErr := e.store.IncrementFailedLogins(ctx, user.UserID); incErr != nil {
			e.logger.Warn("failed-login increment failed", "user_id", user.UserID, "error", incErr)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailure, user.UserID, "", false, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if user.State.DisabledByAdmin() {
		e.emitAudit(ctx, AuditLoginFailure, user.UserID, "", false, ErrAccountDisabledByAdmin, nil)
		return nil, ErrAccountDisabledByAdmin
	}

	now := e.now()
	if err := e.store.ResetFailedLogins(ctx, user.UserID); err != nil {
		return nil, fmt.Errorf("reset failed logins: %w", err)
	}
	if err := e.store.UpdateLastLogin(ctx, user.UserID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}

	e.maybeUpgradeHash(ctx, user, password)

	if err := e.limiter.Reset(ctx, email); err != nil {
		e.logger.Warn("login throttle reset failed", "error", err)
	}

	if user.MFAEnabled {
		challengeID, err := internal.NewChallengeID()
		if err != nil {
			return nil, fmt.Errorf("mint challenge id: %w", err)
		}
		rec := &challengeRecord{
			UserID:    user.UserID,
			ExpiresAt: now.Add(e.config.TOTP.ChallengeTTL).Unix(),
		}
		if err := e.challenges.Save(ctx, challengeID, rec, e.config.TOTP.ChallengeTTL); err != nil {
			return nil, err
		}
		e.metricInc(MetricMFARequired)
		e.emitAudit(ctx, AuditMFARequired, user.UserID, "", true, nil, nil)
		return &LoginResult{MFARequired: true, ChallengeID: challengeID}, nil
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLoginSuccess, user.UserID, "", true, nil, nil)

	return &LoginResult{Identity: identityFor(user)}, nil
}

// VerifyMFA completes a login that Login returned MFARequired for. The
// submitted code is checked as a time-based code first and on mismatch as
// a backup code, which is removed atomically so it can never authenticate
// twice. The challenge itself is single use: of two racing verifiers with
// a valid code, exactly one wins and the other observes a replay.
func (e *Engine) VerifyMFA(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	rec, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	user, err := e.store.GetUserByID(ctx, rec.UserID)
	if err != nil {
		_, _ = e.challenges.Delete(ctx, challengeID)
		return nil, err
	}
	if !user.MFAEnabled || user.MFASecret == "" {
		_, _ = e.challenges.Delete(ctx, challengeID)
		return nil, ErrMFANotEnabled
	}

	usedBackup := false
	valid := e.totp.validate(code, user.MFASecret, e.now())
	if !valid {
		consumed, err := e.store.ConsumeBackupCode(ctx, user.UserID, backupCodeHash(code))
		if err != nil {
			return nil, fmt.Errorf("consume backup code: %w", err)
		}
		valid = consumed
		usedBackup = consumed
	}

	if !valid {
		exceeded, err := e.challenges.RecordFailure(ctx, challengeID, e.config.TOTP.ChallengeMaxAttempts)
		if err != nil {
			return nil, err
		}
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, AuditMFAFailure, user.UserID, "", false, ErrCodeInvalid, nil)
		if exceeded {
			return nil, ErrChallengeAttemptsExceeded
		}
		return nil, ErrCodeInvalid
	}

	deleted, err := e.challenges.Delete(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		e.metricInc(MetricMFAReplay)
		return nil, ErrChallengeReplay
	}

	if user.State.DisabledByAdmin() {
		return nil, ErrAccountDisabledByAdmin
	}

	if usedBackup {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, AuditBackupCodeUsed, user.UserID, "", true, nil, nil)
	}
	e.metricInc(MetricMFASuccess)
	e.emitAudit(ctx, AuditMFASuccess, user.UserID, "", true, nil, nil)

	return &LoginResult{Identity: identityFor(user)}, nil
}

// Logout records the end of a session. The boundary layer owns the
// session itself; the engine only audits the event.
func (e *Engine) Logout(ctx context.Context, identity *Identity) {
	if e == nil || identity == nil {
		return
	}
	e.emitAudit(ctx, AuditLogout, identity.UserID, "", true, nil, nil)
}

// maybeUpgradeHash rehashes the credential under current parameters when
// the stored hash was produced with weaker ones. Best effort; login has
// already succeeded.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *UserRecord, password string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	stale, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !stale {
		return
	}
	fresh, err := e.hasher.Hash(password)
	if err != nil {
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, user.UserID, fresh); err != nil {
		e.logger.Warn("password hash upgrade failed", "user_id", user.UserID, "error", err)
		return
	}
	e.metricInc(MetricHashUpgraded)
}

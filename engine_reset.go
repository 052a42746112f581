package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/authgate/authgate/internal/rate"
	"github.com/authgate/authgate/validate"
)

// RequestPasswordReset issues a 1h reset token and mails it. The outcome
// for an unknown email is indistinguishable from a delivered mail, so the
// endpoint cannot be used to probe which addresses hold accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*ResetRequestResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = validate.NormalizeEmail(email)

	if err := e.limiter.CheckReset(ctx, email); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			return nil, ErrLoginRateLimited
		}
		e.logger.Warn("reset throttle unavailable", "error", err)
	}

	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &ResetRequestResult{MailSent: true}, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	token, err := e.issueToken(ctx, user.UserID, TokenPasswordReset)
	if err != nil {
		return nil, err
	}

	sent := e.mailer.SendPasswordResetMessage(ctx, email, token)
	if !sent {
		e.logger.Warn("reset mail not delivered", "user_id", user.UserID)
	}

	result := &ResetRequestResult{MailSent: sent}
	if !sent && e.config.Security.ExposeTokenOnMailFailure && !e.config.Security.ProductionMode {
		result.DebugResetToken = token
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, AuditResetRequested, user.UserID, "", true, nil, nil)

	return result, nil
}

// ResetPassword consumes a reset token and installs a new credential.
// The failed-login counter is cleared, which is the only path out of a
// lockout.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword, confirm string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if fieldErrs := validate.PasswordReset(newPassword, confirm); len(fieldErrs) > 0 {
		return ValidationErrors(fieldErrs)
	}

	userID, err := e.store.ConsumeToken(ctx, token, TokenPasswordReset, e.now())
	if err != nil {
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, AuditResetCompleted, "", "", false, err, nil)
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := e.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if err := e.store.ResetFailedLogins(ctx, userID); err != nil {
		return fmt.Errorf("reset failed logins: %w", err)
	}

	e.metricInc(MetricResetSuccess)
	e.emitAudit(ctx, AuditResetCompleted, userID, "", true, nil, nil)

	return nil
}

package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/authgate/authgate/validate"
)

// Register creates an inactive account and issues a 24h activation token.
// The token travels to the user by mail; delivery is best effort and a
// failed send never fails the registration. Outside production mode, and
// only when Security.ExposeTokenOnMailFailure is set, a failed send
// surfaces the raw token in the result for manual delivery.
func (e *Engine) Register(ctx context.Context, email, password, confirmPassword string) (*RegisterResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = validate.NormalizeEmail(email)
	if fieldErrs := validate.Registration(email, password, confirmPassword, e.config.Security.MaxFieldLength); len(fieldErrs) > 0 {
		return nil, ValidationErrors(fieldErrs)
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := e.store.CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, AuditRegister, "", "", false, err, map[string]string{"email": email})
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := e.issueToken(ctx, userID, TokenActivation)
	if err != nil {
		return nil, err
	}

	sent := e.mailer.SendActivationMessage(ctx, email, token)
	if !sent {
		e.logger.Warn("activation mail not delivered", "user_id", userID)
	}

	result := &RegisterResult{UserID: userID, MailSent: sent}
	if !sent && e.config.Security.ExposeTokenOnMailFailure && !e.config.Security.ProductionMode {
		result.DebugActivationToken = token
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, AuditRegister, userID, "", true, nil, map[string]string{"mail_sent": fmt.Sprintf("%t", sent)})

	return result, nil
}

// Activate consumes an activation token and marks the owning account
// activated. Expiry is checked lazily at consumption; a consumed token
// fails on every later attempt including concurrent ones.
func (e *Engine) Activate(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if fieldErrs := validate.Token(token, e.config.Security.MaxFieldLength); len(fieldErrs) > 0 {
		return ValidationErrors(fieldErrs)
	}

	userID, err := e.store.ConsumeToken(ctx, token, TokenActivation, e.now())
	if err != nil {
		e.metricInc(MetricActivateFailure)
		e.emitAudit(ctx, AuditActivate, "", "", false, err, nil)
		return err
	}

	if err := e.store.ActivateUser(ctx, userID); err != nil {
		return fmt.Errorf("activate user: %w", err)
	}

	e.metricInc(MetricActivateSuccess)
	e.emitAudit(ctx, AuditActivate, userID, "", true, nil, nil)

	return nil
}

package authgate

import (
	"context"
	"fmt"

	"github.com/authgate/authgate/validate"
)

// verifyPassword rechecks a credential for self-service operations. A
// mismatch maps to the same error as a login failure.
func (e *Engine) verifyPassword(user *UserRecord, password string) error {
	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

// DisableSelf turns the account off at the owner's request. Requires the
// exact confirmation phrase and a password recheck. An account an admin
// has disabled cannot be touched through the self-service path.
func (e *Engine) DisableSelf(ctx context.Context, userID, password, confirmPhrase string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if confirmPhrase != e.config.Security.DisablePhrase {
		return ErrConfirmationMismatch
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.State.DisabledByAdmin() {
		return ErrAccountDisabledByAdmin
	}
	if err := e.verifyPassword(user, password); err != nil {
		return err
	}

	if err := e.store.SetAccountState(ctx, userID, StateSelfDisabled); err != nil {
		return fmt.Errorf("set account state: %w", err)
	}

	e.metricInc(MetricAccountDisabled)
	e.emitAudit(ctx, AuditAccountDisabled, userID, userID, true, nil, nil)

	return nil
}

// ReactivateSelf clears a self-disable. It refuses when the disable was
// administrative; only an admin can clear that.
func (e *Engine) ReactivateSelf(ctx context.Context, userID, password string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.State.DisabledByAdmin() {
		return ErrAccountDisabledByAdmin
	}
	if user.State == StateActive {
		return ErrAccountNotDisabled
	}
	if err := e.verifyPassword(user, password); err != nil {
		return err
	}

	if err := e.store.SetAccountState(ctx, userID, StateActive); err != nil {
		return fmt.Errorf("set account state: %w", err)
	}

	e.metricInc(MetricAccountReactivated)
	e.emitAudit(ctx, AuditAccountReactivate, userID, userID, true, nil, nil)

	return nil
}

// AdminSetDisabled is the administrative override. The actor must hold
// the admin role and may not target their own account, so the last
// working admin cannot lock themselves out.
func (e *Engine) AdminSetDisabled(ctx context.Context, actorID, targetID string, disabled bool) error {
	if e == nil {
		return ErrEngineNotReady
	}

	actor, err := e.store.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role != RoleAdmin {
		return ErrPermissionDenied
	}
	if actorID == targetID {
		return ErrSelfTarget
	}
	if _, err := e.store.GetUserByID(ctx, targetID); err != nil {
		return err
	}

	state := StateActive
	event := AuditAccountReactivate
	if disabled {
		state = StateAdminDisabled
		event = AuditAccountDisabled
	}
	if err := e.store.SetAccountState(ctx, targetID, state); err != nil {
		return fmt.Errorf("set account state: %w", err)
	}

	if disabled {
		e.metricInc(MetricAccountDisabled)
	} else {
		e.metricInc(MetricAccountReactivated)
	}
	e.emitAudit(ctx, event, targetID, actorID, true, nil, map[string]string{"admin": "true"})

	return nil
}

// UpdateEmail changes the login address after a password recheck. A
// no-op change and a collision with another account are both rejected.
func (e *Engine) UpdateEmail(ctx context.Context, userID, newEmail, password string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	newEmail = validate.NormalizeEmail(newEmail)
	if fieldErrs := validate.Email("email", newEmail); len(fieldErrs) > 0 {
		return ValidationErrors(fieldErrs)
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if newEmail == user.Email {
		return ErrSameEmail
	}
	if err := e.verifyPassword(user, password); err != nil {
		return err
	}

	if err := e.store.UpdateEmail(ctx, userID, newEmail); err != nil {
		return err
	}

	e.metricInc(MetricEmailChanged)
	e.emitAudit(ctx, AuditEmailChanged, userID, userID, true, nil, nil)

	return nil
}

// DeleteAccount removes the account and everything it owns as one unit
// of work: tokens, backup codes, authored content, then the user row.
func (e *Engine) DeleteAccount(ctx context.Context, userID, password, confirmPhrase string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if confirmPhrase != e.config.Security.DeletePhrase {
		return ErrConfirmationMismatch
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.verifyPassword(user, password); err != nil {
		return err
	}

	if err := e.store.DeleteUserCascade(ctx, userID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, AuditAccountDeleted, userID, userID, true, nil, nil)

	return nil
}

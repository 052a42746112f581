package authgate

import (
	"context"
	"fmt"
)

// BeginMFAEnrollment mints a fresh shared secret and its provisioning
// URI. Nothing is persisted; the caller must carry the secret across the
// enrollment round-trip in its own authenticated session and pass it back
// to ConfirmMFAEnrollment. Trusting a secret echoed from client form data
// would let an attacker substitute one they control.
func (e *Engine) BeginMFAEnrollment(ctx context.Context, userID string) (*MFAEnrollment, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, uri, err := e.totp.generate(user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	return &MFAEnrollment{Secret: secret, ProvisioningURI: uri}, nil
}

// ConfirmMFAEnrollment verifies a first code against the carried secret
// and, on success, enables MFA and returns the single-use backup codes.
// The plaintext codes exist only in this result; afterwards the store
// holds digests only and they cannot be shown again.
func (e *Engine) ConfirmMFAEnrollment(ctx context.Context, userID, secret, code string) (*MFAConfirmation, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if secret == "" {
		return nil, ErrCodeInvalid
	}

	if _, err := e.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	if !e.totp.validate(code, secret, e.now()) {
		e.emitAudit(ctx, AuditMFAFailure, userID, "", false, ErrCodeInvalid, map[string]string{"phase": "enrollment"})
		return nil, ErrCodeInvalid
	}

	codes, hashes, err := generateBackupCodes(e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}

	if err := e.store.SetMFA(ctx, userID, true, secret, hashes); err != nil {
		return nil, fmt.Errorf("persist mfa enrollment: %w", err)
	}

	e.metricInc(MetricMFAEnrolled)
	e.emitAudit(ctx, AuditMFAEnrolled, userID, "", true, nil, nil)

	return &MFAConfirmation{BackupCodes: codes}, nil
}

// DisableMFA turns MFA off after a password recheck, clearing the secret
// and any remaining backup codes.
func (e *Engine) DisableMFA(ctx context.Context, userID, password string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return ErrMFANotEnabled
	}
	if err := e.verifyPassword(user, password); err != nil {
		return err
	}

	if err := e.store.SetMFA(ctx, userID, false, "", nil); err != nil {
		return fmt.Errorf("clear mfa enrollment: %w", err)
	}

	e.emitAudit(ctx, AuditMFAEnrolled, userID, "", true, nil, map[string]string{"enabled": "false"})
	return nil
}

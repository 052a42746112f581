package authgate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/authgate/authgate"
)

const freshPassword = "An0ther-secret!"

func TestResetTokenValidJustBeforeExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	registerActivated(t, env, testEmail)

	if _, err := env.engine.RequestPasswordReset(context.Background(), testEmail); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := env.mailer.lastResetToken(t)

	env.clock.Advance(59 * time.Minute)
	if err := env.engine.ResetPassword(context.Background(), token, freshPassword, freshPassword); err != nil {
		t.Fatalf("ResetPassword at 59m failed: %v", err)
	}
}

func TestResetTokenExpiredJustAfterExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	registerActivated(t, env, testEmail)

	if _, err := env.engine.RequestPasswordReset(context.Background(), testEmail); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := env.mailer.lastResetToken(t)

	env.clock.Advance(61 * time.Minute)
	err := env.engine.ResetPassword(context.Background(), token, freshPassword, freshPassword)
	if !errors.Is(err, authgate.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at 61m, got %v", err)
	}
}

func TestResetRejectsTokenOfWrongType(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.engine.Register(context.Background(), testEmail, testPassword, testPassword); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	activation := env.mailer.lastActivationToken(t)

	err := env.engine.ResetPassword(context.Background(), activation, freshPassword, freshPassword)
	if !errors.Is(err, authgate.ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}
	// The activation token survives the mismatched attempt.
	if err := env.engine.Activate(context.Background(), activation); err != nil {
		t.Fatalf("Activate after mismatched consume failed: %v", err)
	}
}

func TestResetTokenReplayFails(t *testing.T) {
	env := newTestEnv(t, nil)
	registerActivated(t, env, testEmail)

	if _, err := env.engine.RequestPasswordReset(context.Background(), testEmail); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := env.mailer.lastResetToken(t)

	if err := env.engine.ResetPassword(context.Background(), token, freshPassword, freshPassword); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	err := env.engine.ResetPassword(context.Background(), token, "Y3t-another-1!", "Y3t-another-1!")
	if !errors.Is(err, authgate.ErrTokenUsed) {
		t.Fatalf("expected ErrTokenUsed on replay, got %v", err)
	}
}

func TestResetPasswordPolicyEnforced(t *testing.T) {
	env := newTestEnv(t, nil)
	registerActivated(t, env, testEmail)

	if _, err := env.engine.RequestPasswordReset(context.Background(), testEmail); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := env.mailer.lastResetToken(t)

	var verrs authgate.ValidationErrors
	if err := env.engine.ResetPassword(context.Background(), token, "weak", "weak"); !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	// Mismatched confirmation is a field error too, not a consume.
	if err := env.engine.ResetPassword(context.Background(), token, freshPassword, "different"); !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	// The token was not burned by rejected submissions.
	if err := env.engine.ResetPassword(context.Background(), token, freshPassword, freshPassword); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
}

func TestIssuingNewResetTokenKeepsOlderOneValid(t *testing.T) {
	env := newTestEnv(t, nil)
	registerActivated(t, env, testEmail)

	if _, err := env.engine.RequestPasswordReset(context.Background(), testEmail); err != nil {
		t.Fatalf("first RequestPasswordReset failed: %v", err)
	}
	first := env.mailer.lastResetToken(t)
	if _, err := env.engine.RequestPasswordReset(context.Background(), testEmail); err != nil {
		t.Fatalf("second RequestPasswordReset failed: %v", err)
	}

	if err := env.engine.ResetPassword(context.Background(), first, freshPassword, freshPassword); err != nil {
		t.Fatalf("ResetPassword with older token failed: %v", err)
	}
}

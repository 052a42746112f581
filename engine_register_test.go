package authgate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/authgate/authgate"
)

func TestRegisterAndActivate(t *testing.T) {
	env := newTestEnv(t, nil)

	result, err := env.engine.Register(context.Background(), testEmail, testPassword, testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.UserID == "" {
		t.Fatal("expected a user id")
	}
	if !result.MailSent {
		t.Fatal("expected mail to be reported sent")
	}
	if result.DebugActivationToken != "" {
		t.Fatal("debug token must not surface when mail was delivered")
	}

	// Login before activation must look like a bad password.
	if _, err := env.engine.Login(context.Background(), testEmail, testPassword); !errors.Is(err, authgate.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials before activation, got %v", err)
	}

	token := env.mailer.lastActivationToken(t)
	if err := env.engine.Activate(context.Background(), token); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	// Counter was bumped by the pre-activation attempt; reset it through
	// the sanctioned path before logging in.
	if err := env.store.ResetFailedLogins(context.Background(), result.UserID); err != nil {
		t.Fatalf("reset failed logins: %v", err)
	}

	login, err := env.engine.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login after activation failed: %v", err)
	}
	if login.Identity == nil || login.Identity.UserID != result.UserID {
		t.Fatalf("expected identity for %s, got %+v", result.UserID, login)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.engine.Register(context.Background(), testEmail, testPassword, testPassword); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	// Same address with different case folds to the same account.
	_, err := env.engine.Register(context.Background(), "Alice@Example.COM", testPassword, testPassword)
	if !errors.Is(err, authgate.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterValidationAccumulates(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.engine.Register(context.Background(), "not-an-email", "weak", "weak")
	var verrs authgate.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs) < 2 {
		t.Fatalf("expected accumulated field errors, got %v", verrs)
	}
}

func TestActivationTokenReplayFails(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.engine.Register(context.Background(), testEmail, testPassword, testPassword); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token := env.mailer.lastActivationToken(t)

	if err := env.engine.Activate(context.Background(), token); err != nil {
		t.Fatalf("first Activate failed: %v", err)
	}
	if err := env.engine.Activate(context.Background(), token); !errors.Is(err, authgate.ErrTokenUsed) {
		t.Fatalf("expected ErrTokenUsed on replay, got %v", err)
	}
}

func TestActivationTokenExpires(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.engine.Register(context.Background(), testEmail, testPassword, testPassword); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token := env.mailer.lastActivationToken(t)

	env.clock.Advance(24*time.Hour + time.Minute)
	if err := env.engine.Activate(context.Background(), token); !errors.Is(err, authgate.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestDebugTokenExposureRequiresFlagAndDevMode(t *testing.T) {
	env := newTestEnv(t, func(cfg *authgate.Config) {
		cfg.Security.ExposeTokenOnMailFailure = true
	})
	env.mailer.deliver = false

	result, err := env.engine.Register(context.Background(), testEmail, testPassword, testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.MailSent {
		t.Fatal("expected mail failure to be reported")
	}
	if result.DebugActivationToken == "" {
		t.Fatal("expected debug token when exposure is enabled outside production")
	}

	// Without the flag the token stays inside the engine.
	plain := newTestEnv(t, nil)
	plain.mailer.deliver = false
	result, err = plain.engine.Register(context.Background(), testEmail, testPassword, testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.DebugActivationToken != "" {
		t.Fatal("debug token must not surface without the exposure flag")
	}
}

func TestProductionModeRejectsTokenExposure(t *testing.T) {
	cfg := testConfig()
	cfg.Security.ProductionMode = true
	cfg.Security.ExposeTokenOnMailFailure = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject token exposure in production mode")
	}
}

func TestConcurrentActivationExactlyOneWins(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.engine.Register(context.Background(), testEmail, testPassword, testPassword); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token := env.mailer.lastActivationToken(t)

	const attempts = 8
	results := make(chan error, attempts)
	for range attempts {
		go func() {
			results <- env.engine.Activate(context.Background(), token)
		}()
	}

	wins := 0
	for range attempts {
		if err := <-results; err == nil {
			wins++
		} else if !errors.Is(err, authgate.ErrTokenUsed) {
			t.Fatalf("unexpected error from racing Activate: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

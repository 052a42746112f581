package authgate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/authgate/authgate"
)

func TestDisableReactivateRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := registerActivated(t, env, testEmail)

	if err := env.engine.DisableSelf(context.Background(), userID, testPassword, "disable"); !errors.Is(err, authgate.ErrConfirmationMismatch) {
		t.Fatalf("expected ErrConfirmationMismatch for wrong phrase, got %v", err)
	}
	if err := env.engine.DisableSelf(context.Background(), userID, "Wr0ng-guess!", "DISABLE"); !errors.Is(err, authgate.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.DisableSelf(context.Background(), userID, testPassword, "DISABLE"); err != nil {
		t.Fatalf("DisableSelf failed: %v", err)
	}

	user, err := env.store.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.State != authgate.StateSelfDisabled {
		t.Fatalf("expected StateSelfDisabled, got %v", user.State)
	}

	if err := env.engine.ReactivateSelf(context.Background(), userID, testPassword); err != nil {
		t.Fatalf("ReactivateSelf failed: %v", err)
	}
	result, err := env.engine.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login after reactivation failed: %v", err)
	}
	if result.Identity.Disabled {
		t.Fatal("expected an active identity after reactivation")
	}
}

func TestReactivateRequiresDisabledState(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := registerActivated(t, env, testEmail)

	if err := env.engine.ReactivateSelf(context.Background(), userID, testPassword); !errors.Is(err, authgate.ErrAccountNotDisabled) {
		t.Fatalf("expected ErrAccountNotDisabled, got %v", err)
	}
}

func TestAdminDisableBeatsSelfService(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := registerActivated(t, env, testEmail)
	adminID := registerActivated(t, env, "admin@example.com")
	if err := env.store.SetRole(context.Background(), adminID, authgate.RoleAdmin); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}

	if err := env.engine.AdminSetDisabled(context.Background(), adminID, userID, true); err != nil {
		t.Fatalf("AdminSetDisabled failed: %v", err)
	}

	// Self-service cannot touch an admin-disabled account, with or
	// without the right password.
	if err := env.engine.ReactivateSelf(context.Background(), userID, testPassword); !errors.Is(err, authgate.ErrAccountDisabledByAdmin) {
		t.Fatalf("expected ErrAccountDisabledByAdmin, got %v", err)
	}
	if err := env.engine.DisableSelf(context.Background(), userID, testPassword, "DISABLE"); !errors.Is(err, authgate.ErrAccountDisabledByAdmin) {
		t.Fatalf("expected ErrAccountDisabledByAdmin, got %v", err)
	}

	// Only the admin path clears it.
	if err := env.engine.AdminSetDisabled(context.Background(), adminID, userID, false); err != nil {
		t.Fatalf("AdminSetDisabled(false) failed: %v", err)
	}
	if _, err := env.engine.Login(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("Login after admin reactivation failed: %v", err)
	}
}

func TestAdminSetDisabledGuards(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := registerActivated(t, env, testEmail)
	otherID := registerActivated(t, env, "bob@example.com")
	adminID := registerActivated(t, env, "admin@example.com")
	if err := env.store.SetRole(context.Background(), adminID, authgate.RoleAdmin); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}

	// Non-admin actors are refused.
	if err := env.engine.AdminSetDisabled(context.Background(), userID, otherID, true); !errors.Is(err, authgate.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	// An admin cannot disable themselves.
	if err := env.engine.AdminSetDisabled(context.Background(), adminID, adminID, true); !errors.Is(err, authgate.ErrSelfTarget) {
		t.Fatalf("expected ErrSelfTarget, got %v", err)
	}
	if err := env.engine.AdminSetDisabled(context.Background(), adminID, "missing-id", true); !errors.Is(err, authgate.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := registerActivated(t, env, testEmail)
	registerActivated(t, env, "bob@example.com")

	if err := env.engine.UpdateEmail(context.Background(), userID, testEmail, testPassword); !errors.Is(err, authgate.ErrSameEmail) {
		t.Fatalf("expected ErrSameEmail, got %v", err)
	}
	if err := env.engine.UpdateEmail(context.Background(), userID, "bob@example.com", testPassword); !errors.Is(err, authgate.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if err := env.engine.UpdateEmail(context.Background(), userID, "carol@example.com", "Wr0ng-guess!"); !errors.Is(err, authgate.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.UpdateEmail(context.Background(), userID, "Carol@Example.com", testPassword); err != nil {
		t.Fatalf("UpdateEmail failed: %v", err)
	}

	// The new address logs in, case-folded; the old one is gone.
	if _, err := env.engine.Login(context.Background(), "carol@example.com", testPassword); err != nil {
		t.Fatalf("Login with new email failed: %v", err)
	}
	if _, err := env.engine.Login(context.Background(), testEmail, testPassword); !errors.Is(err, authgate.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for old email, got %v", err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := registerActivated(t, env, testEmail)
	otherID := registerActivated(t, env, "bob@example.com")

	ctx := context.Background()
	postID, err := env.store.CreatePost(ctx, userID, "hello", "body", true)
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if _, err := env.store.CreateComment(ctx, postID, userID, "own comment"); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	if _, err := env.store.CreateComment(ctx, postID, otherID, "reply"); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	if _, err := env.engine.RequestPasswordReset(ctx, testEmail); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}

	if err := env.engine.DeleteAccount(ctx, userID, testPassword, "delete"); !errors.Is(err, authgate.ErrConfirmationMismatch) {
		t.Fatalf("expected ErrConfirmationMismatch, got %v", err)
	}
	if err := env.engine.DeleteAccount(ctx, userID, testPassword, "DELETE"); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if _, err := env.store.GetUserByID(ctx, userID); !errors.Is(err, authgate.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound after delete, got %v", err)
	}
	for name, count := range map[string]func(context.Context, string) (int, error){
		"posts":    env.store.PostCount,
		"comments": env.store.CommentCount,
		"tokens":   env.store.TokenCount,
	} {
		n, err := count(ctx, userID)
		if err != nil {
			t.Fatalf("%s count failed: %v", name, err)
		}
		if n != 0 {
			t.Fatalf("expected 0 %s after delete, got %d", name, n)
		}
	}
	// The other user's comment went with the post.
	if n, _ := env.store.CommentCount(ctx, otherID); n != 0 {
		t.Fatalf("expected reply to be cascaded with the post, got %d", n)
	}
}

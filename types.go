package authgate

import (
	"context"
	"strings"
	"time"

	"github.com/authgate/authgate/validate"
)

// Role is the coarse account role used for administrative gating.
type Role string

const (
	// RoleUser is the default role assigned at registration.
	RoleUser Role = "user"
	// RoleAdmin marks an administrator account.
	RoleAdmin Role = "admin"
)

// AccountState is the tagged disabled-state of an account. Modeling the two
// legacy booleans as one enum makes "admin override beats self-service" a
// type-level rule rather than a convention.
type AccountState uint8

const (
	// StateActive is a fully usable account.
	StateActive AccountState = iota
	// StateSelfDisabled was disabled by the account owner and can be
	// reactivated by the owner.
	StateSelfDisabled
	// StateAdminDisabled was disabled by an administrator; only an
	// administrator can clear it.
	StateAdminDisabled
)

// Disabled reports whether the account is disabled for any reason.
func (s AccountState) Disabled() bool { return s != StateActive }

// DisabledByAdmin reports whether only an administrator may re-enable the
// account.
func (s AccountState) DisabledByAdmin() bool { return s == StateAdminDisabled }

// TokenType distinguishes the single-use token families. A token is only
// consumable by the operation matching its type.
type TokenType string

const (
	// TokenActivation proves control of a registered email address.
	TokenActivation TokenType = "activation"
	// TokenPasswordReset authorizes one password reset.
	TokenPasswordReset TokenType = "password_reset"
)

// UserRecord is the full account record exchanged with the [Store].
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
	Activated    bool
	FailedLogins int
	MFAEnabled   bool
	MFASecret    string
	Role         Role
	State        AccountState
	LastLogin    *time.Time
	CreatedAt    time.Time
}

// Identity is the resolved session identity handed back to the boundary
// layer after a successful login or MFA verification. The boundary owns its
// storage; the engine never touches framework session state.
type Identity struct {
	UserID   string
	Email    string
	Role     Role
	Disabled bool
}

// Store is the credential-store contract consumed by the engine. All
// mutations that must be exactly-once (token consumption, backup-code
// removal, failed-login counting) are single atomic operations on the
// implementation.
//
// Implementations return the package sentinel errors ([ErrUserNotFound],
// [ErrEmailTaken], the four token errors) for typed outcomes and wrap
// everything else.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	GetUserByID(ctx context.Context, id string) (*UserRecord, error)

	// IncrementFailedLogins atomically bumps the counter and returns the
	// new value.
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	ResetFailedLogins(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateEmail(ctx context.Context, id, email string) error
	ActivateUser(ctx context.Context, id string) error

	SetMFA(ctx context.Context, id string, enabled bool, secret string, backupCodeHashes [][32]byte) error
	// ConsumeBackupCode removes the matching code in one atomic operation
	// and reports whether a code was removed.
	ConsumeBackupCode(ctx context.Context, id string, codeHash [32]byte) (bool, error)

	SetAccountState(ctx context.Context, id string, state AccountState) error
	// DeleteUserCascade removes the user, their tokens, backup codes and
	// owned content as one logical unit of work.
	DeleteUserCascade(ctx context.Context, id string) error

	CreateToken(ctx context.Context, token, userID string, typ TokenType, expiresAt, createdAt time.Time) error
	// ConsumeToken atomically checks and sets the used flag; expiry is
	// evaluated lazily against now. Exactly one of two racing consumers
	// succeeds.
	ConsumeToken(ctx context.Context, token string, typ TokenType, now time.Time) (string, error)
}

// Mailer is the outbound mail contract. Both sends are best-effort: they
// report success or failure and never propagate an error into the caller's
// control flow.
type Mailer interface {
	SendActivationMessage(ctx context.Context, email, token string) bool
	SendPasswordResetMessage(ctx context.Context, email, token string) bool
}

// NoOpMailer discards all messages and reports them unsent.
type NoOpMailer struct{}

// SendActivationMessage always reports failure.
func (NoOpMailer) SendActivationMessage(context.Context, string, string) bool { return false }

// SendPasswordResetMessage always reports failure.
func (NoOpMailer) SendPasswordResetMessage(context.Context, string, string) bool { return false }

// ValidationErrors aggregates the accumulated field-level failures of one
// submission. It is returned as a value, never panicked.
type ValidationErrors []validate.FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	UserID   string
	MailSent bool

	// DebugActivationToken is populated only when mail delivery failed,
	// Security.ExposeTokenOnMailFailure is set, and production mode is
	// off. It must never reach a user-facing response in production.
	DebugActivationToken string
}

// LoginResult is returned by [Engine.Login] and [Engine.VerifyMFA]. Either
// Identity is set, or MFARequired is true and ChallengeID carries the
// opaque pre-auth marker for the follow-up [Engine.VerifyMFA] call.
type LoginResult struct {
	Identity *Identity

	MFARequired bool
	ChallengeID string
}

// MFAEnrollment is returned by [Engine.BeginMFAEnrollment]. Nothing is
// persisted yet: the caller carries Secret across the enrollment
// round-trip (in its own authenticated session, never from client form
// data) and hands it back to [Engine.ConfirmMFAEnrollment].
type MFAEnrollment struct {
	Secret          string
	ProvisioningURI string
}

// MFAConfirmation is returned by [Engine.ConfirmMFAEnrollment]. The backup
// codes appear here exactly once; only their hashes are stored.
type MFAConfirmation struct {
	BackupCodes []string
}

// ResetRequestResult is returned by [Engine.RequestPasswordReset]. The
// result is identical whether or not the email is registered.
type ResetRequestResult struct {
	MailSent bool

	// DebugResetToken follows the same gating as
	// [RegisterResult.DebugActivationToken].
	DebugResetToken string
}

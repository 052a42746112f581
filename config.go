package authgate

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Obtain a baseline with
// [DefaultConfig], adjust, and pass to [Builder.WithConfig]; the engine
// clones it at build time and treats it as immutable afterwards.
type Config struct {
	Password  PasswordConfig
	Tokens    TokenConfig
	TOTP      TOTPConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// PasswordConfig holds the argon2id parameters.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// TokenConfig holds the lifetimes of the single-use token families.
type TokenConfig struct {
	ActivationTTL    time.Duration
	PasswordResetTTL time.Duration
}

// TOTPConfig holds the time-based code parameters and the pre-auth
// challenge policy.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period int
	// Skew is the tolerance in steps on either side of the current step.
	Skew int

	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int

	BackupCodeCount  int
	BackupCodeLength int // random bytes per code before hex encoding
}

// SecurityConfig holds the lockout threshold, the confirmation phrases for
// destructive self-service operations, and the production gating of the
// debug token path.
type SecurityConfig struct {
	ProductionMode bool

	MaxFailedLogins int

	DisablePhrase string
	DeletePhrase  string

	// ExposeTokenOnMailFailure surfaces the raw activation/reset token in
	// the result when mail delivery fails. Development convenience only;
	// Validate rejects it in combination with ProductionMode.
	ExposeTokenOnMailFailure bool

	// MaxFieldLength caps simple text fields during validation.
	MaxFieldLength int
}

// RateLimitConfig controls the optional Redis throttle in front of login
// and password-reset requests. Independent of the durable failed-login
// lockout, which always applies.
type RateLimitConfig struct {
	EnableLoginThrottle bool
	EnableResetThrottle bool
	EnableIPThrottle    bool
	MaxAttempts         int
	Cooldown            time.Duration
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: argon2id at
// interactive-server cost, 24h activation / 1h reset tokens, 6-digit 30s
// TOTP with one step of skew, lockout after 3 failures, 8 backup codes.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Tokens: TokenConfig{
			ActivationTTL:    24 * time.Hour,
			PasswordResetTTL: 1 * time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer:               "authgate",
			Digits:               6,
			Period:               30,
			Skew:                 1,
			ChallengeTTL:         3 * time.Minute,
			ChallengeMaxAttempts: 5,
			BackupCodeCount:      8,
			BackupCodeLength:     6,
		},
		Security: SecurityConfig{
			ProductionMode:           false,
			MaxFailedLogins:          3,
			DisablePhrase:            "DISABLE",
			DeletePhrase:             "DELETE",
			ExposeTokenOnMailFailure: false,
			MaxFieldLength:           255,
		},
		RateLimit: RateLimitConfig{
			EnableLoginThrottle: false,
			EnableResetThrottle: false,
			EnableIPThrottle:    false,
			MaxAttempts:         10,
			Cooldown:            15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate rejects configurations that would weaken an invariant.
func (c Config) Validate() error {
	if c.Tokens.ActivationTTL <= 0 || c.Tokens.PasswordResetTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("totp digits must be between 6 and 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("totp skew must be between 0 and 2")
	}
	if c.TOTP.ChallengeTTL <= 0 {
		return errors.New("mfa challenge TTL must be positive")
	}
	if c.TOTP.ChallengeMaxAttempts <= 0 {
		return errors.New("mfa challenge attempt cap must be positive")
	}
	if c.TOTP.BackupCodeCount <= 0 || c.TOTP.BackupCodeLength <= 0 {
		return errors.New("backup code count and length must be positive")
	}
	if c.Security.MaxFailedLogins <= 0 {
		return errors.New("failed-login threshold must be positive")
	}
	if c.Security.DisablePhrase == "" || c.Security.DeletePhrase == "" {
		return errors.New("confirmation phrases must not be empty")
	}
	if c.Security.ProductionMode && c.Security.ExposeTokenOnMailFailure {
		return errors.New("token exposure on mail failure is forbidden in production mode")
	}
	if c.RateLimit.EnableLoginThrottle || c.RateLimit.EnableResetThrottle {
		if c.RateLimit.MaxAttempts <= 0 || c.RateLimit.Cooldown <= 0 {
			return errors.New("rate limiting requires positive attempt budget and cooldown")
		}
	}
	return nil
}

func cloneConfig(c Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return c
}

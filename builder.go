package authgate

import (
	"errors"
	"log/slog"
	"time"

	"github.com/authgate/authgate/internal/rate"
	"github.com/authgate/authgate/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Chain With* calls and finish with Build;
// a builder is single use.
type Builder struct {
	config    Config
	store     Store
	mailer    Mailer
	redis     redis.UniversalClient
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the durable account store. Required.
func (b *Builder) WithStore(s Store) *Builder {
	b.store = s
	return b
}

// WithMailer sets the outbound mail transport. Optional; without one the
// engine behaves as if every delivery failed.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithRedis sets the Redis client backing MFA challenges and the
// optional rate limiter. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the engine's time source. Tests use this to walk
// tokens and challenges across their expiries.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration, wires the internals, and returns a
// ready Engine. The caller owns Close.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("store required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	mailer := b.mailer
	if mailer == nil {
		mailer = NoOpMailer{}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.EnableLoginThrottle || cfg.RateLimit.EnableResetThrottle {
		limiter = rate.NewLimiter(b.redis, rate.Config{
			EnableLoginThrottle: cfg.RateLimit.EnableLoginThrottle,
			EnableResetThrottle: cfg.RateLimit.EnableResetThrottle,
			EnableIPThrottle:    cfg.RateLimit.EnableIPThrottle,
			MaxAttempts:         cfg.RateLimit.MaxAttempts,
			Cooldown:            cfg.RateLimit.Cooldown,
		})
	}

	b.built = true

	return &Engine{
		config:     cfg,
		store:      b.store,
		mailer:     mailer,
		challenges: newChallengeStore(b.redis, now),
		limiter:    limiter,
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:    NewMetrics(cfg.Metrics),
		hasher:     hasher,
		totp:       newTOTPManager(cfg.TOTP),
		logger:     logger,
		now:        now,
	}, nil
}

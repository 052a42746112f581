// Package rate provides Redis-backed throttles for the login and
// password-reset entry points. The throttles are advisory volume caps;
// the durable failed-login lockout lives in the primary store and
// applies regardless.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLimited     = errors.New("rate limited")
	ErrUnavailable = errors.New("rate limiter backend unavailable")
)

// Config mirrors the engine's rate-limit section.
type Config struct {
	EnableLoginThrottle bool
	EnableResetThrottle bool
	EnableIPThrottle    bool
	MaxAttempts         int
	Cooldown            time.Duration
}

// Limiter counts attempts per key in fixed windows using INCR with an
// expiry set on the window's first hit.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func NewLimiter(client redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: client, config: cfg}
}

// CheckLogin enforces the login throttle for an email and, when
// configured, the caller's IP. A nil limiter allows everything.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l == nil || !l.config.EnableLoginThrottle {
		return nil
	}
	if err := l.enforce(ctx, "agl:"+email); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.enforce(ctx, "aglip:"+ip)
	}
	return nil
}

// CheckReset enforces the password-reset request throttle for an email.
func (l *Limiter) CheckReset(ctx context.Context, email string) error {
	if l == nil || !l.config.EnableResetThrottle {
		return nil
	}
	return l.enforce(ctx, "agr:"+email)
}

func (l *Limiter) enforce(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrLimited
	}
	return nil
}

// Reset clears the login window for an email, used after a successful
// authentication so a legitimate user is not held to stale failures.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	if l == nil || !l.config.EnableLoginThrottle {
		return nil
	}
	if err := l.redis.Del(ctx, "agl:"+email).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

package authgate

import (
	"context"
	"log/slog"
	"time"

	"github.com/authgate/authgate/internal/rate"
	"github.com/authgate/authgate/password"
)

// Engine is the account-lifecycle core. Construct one through [Builder];
// a built Engine is immutable and safe for concurrent use.
type Engine struct {
	config     Config
	store      Store
	mailer     Mailer
	challenges *challengeStore
	limiter    *rate.Limiter
	audit      *auditDispatcher
	metrics    *Metrics
	hasher     *password.Hasher
	totp       *totpManager
	logger     *slog.Logger
	now        func() time.Time
}

// Close flushes and stops the audit dispatcher. Idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil || e.metrics == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, actorID string, success bool, opErr error, meta map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		ActorID:   actorID,
		Success:   success,
		Metadata:  meta,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.audit.Emit(ctx, event)
}

// identityFor projects a user record into the caller-facing identity.
func identityFor(u *UserRecord) *Identity {
	return &Identity{
		UserID:   u.UserID,
		Email:    u.Email,
		Role:     u.Role,
		Disabled: u.State.Disabled(),
	}
}

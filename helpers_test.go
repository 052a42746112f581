package authgate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/authgate/authgate"
	"github.com/authgate/authgate/store/sqlite"
)

// testClock is a manually advanced time source shared by the engine and
// the assertions.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureMailer records outbound tokens instead of delivering anything.
type captureMailer struct {
	mu               sync.Mutex
	deliver          bool
	activationTokens []string
	resetTokens      []string
}

func (m *captureMailer) SendActivationMessage(_ context.Context, _ string, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activationTokens = append(m.activationTokens, token)
	return m.deliver
}

func (m *captureMailer) SendPasswordResetMessage(_ context.Context, _ string, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens = append(m.resetTokens, token)
	return m.deliver
}

func (m *captureMailer) lastActivationToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.activationTokens) == 0 {
		t.Fatal("no activation token captured")
	}
	return m.activationTokens[len(m.activationTokens)-1]
}

func (m *captureMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetTokens) == 0 {
		t.Fatal("no reset token captured")
	}
	return m.resetTokens[len(m.resetTokens)-1]
}

func testConfig() authgate.Config {
	cfg := authgate.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEnv struct {
	engine *authgate.Engine
	store  *sqlite.Store
	redis  *miniredis.Miniredis
	rdb    *redis.Client
	clock  *testClock
	mailer *captureMailer
}

func newTestEnv(t *testing.T, mutate func(*authgate.Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	mailer := &captureMailer{deliver: true}

	engine, err := authgate.New().
		WithConfig(cfg).
		WithStore(db).
		WithRedis(rdb).
		WithMailer(mailer).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: db, redis: mr, rdb: rdb, clock: clock, mailer: mailer}
}

const (
	testEmail    = "alice@example.com"
	testPassword = "Sup3r-secret!"
)

// registerActivated registers and activates an account, returning the
// user id.
func registerActivated(t *testing.T, env *testEnv, email string) string {
	t.Helper()

	result, err := env.engine.Register(context.Background(), email, testPassword, testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := env.engine.Activate(context.Background(), env.mailer.lastActivationToken(t)); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	return result.UserID
}

// enrollMFA completes TOTP enrollment and returns the secret plus the
// plaintext backup codes.
func enrollMFA(t *testing.T, env *testEnv, userID string) (string, []string) {
	t.Helper()

	enrollment, err := env.engine.BeginMFAEnrollment(context.Background(), userID)
	if err != nil {
		t.Fatalf("BeginMFAEnrollment failed: %v", err)
	}
	code := codeAt(t, enrollment.Secret, env.clock.Now())
	confirmation, err := env.engine.ConfirmMFAEnrollment(context.Background(), userID, enrollment.Secret, code)
	if err != nil {
		t.Fatalf("ConfirmMFAEnrollment failed: %v", err)
	}
	return enrollment.Secret, confirmation.BackupCodes
}

// codeAt computes the TOTP code valid for the given instant.
func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()

	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate totp code: %v", err)
	}
	return code
}

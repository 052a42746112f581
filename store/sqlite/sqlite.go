// Package sqlite implements the engine's durable store on SQLite. All
// exactly-once mutations (token consumption, backup-code removal, the
// failed-login counter) are single guarded statements, so two racing
// requests can never both observe the pre-mutation row.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/authgate/authgate"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL UNIQUE,
	password_hash     TEXT NOT NULL,
	activated         INTEGER NOT NULL DEFAULT 0,
	failed_logins     INTEGER NOT NULL DEFAULT 0,
	mfa_enabled       INTEGER NOT NULL DEFAULT 0,
	mfa_secret        TEXT NOT NULL DEFAULT '',
	role              TEXT NOT NULL DEFAULT 'user',
	disabled          INTEGER NOT NULL DEFAULT 0,
	disabled_by_admin INTEGER NOT NULL DEFAULT 0,
	last_login        INTEGER,
	created_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	used       INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS backup_codes (
	user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	code_hash BLOB NOT NULL,
	PRIMARY KEY (user_id, code_hash)
);

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	author_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	public     INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	author_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	body       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tokens_user ON tokens(user_id);
CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);
CREATE INDEX IF NOT EXISTS idx_comments_author ON comments(author_id);
`

// Store is a SQLite-backed [authgate.Store]. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dsn and applies the schema.
// Pass ":memory:" for an ephemeral database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// The modernc driver serializes writes per connection; one connection
	// also keeps an in-memory database from vanishing between calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, email, passwordHash, time.Now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return "", authgate.ErrEmailTaken
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

const userColumns = `id, email, password_hash, activated, failed_logins,
	mfa_enabled, mfa_secret, role, disabled, disabled_by_admin, last_login, created_at`

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*authgate.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*authgate.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*authgate.UserRecord, error) {
	var (
		u                          authgate.UserRecord
		activated, mfaEnabled      int
		disabled, disabledByAdmin  int
		role                       string
		lastLogin                  sql.NullInt64
		createdAt                  int64
	)
	err := row.Scan(&u.UserID, &u.Email, &u.PasswordHash, &activated, &u.FailedLogins,
		&mfaEnabled, &u.MFASecret, &role, &disabled, &disabledByAdmin, &lastLogin, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authgate.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Activated = activated != 0
	u.MFAEnabled = mfaEnabled != 0
	u.Role = authgate.Role(role)
	u.State = stateFromColumns(disabled != 0, disabledByAdmin != 0)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	if lastLogin.Valid {
		t := time.Unix(lastLogin.Int64, 0).UTC()
		u.LastLogin = &t
	}
	return &u, nil
}

func stateFromColumns(disabled, byAdmin bool) authgate.AccountState {
	switch {
	case byAdmin:
		return authgate.StateAdminDisabled
	case disabled:
		return authgate.StateSelfDisabled
	default:
		return authgate.StateActive
	}
}

// IncrementFailedLogins bumps the counter in one statement and returns
// the new value, so concurrent failures each observe a distinct count.
func (s *Store) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`UPDATE users SET failed_logins = failed_logins + 1 WHERE id = ? RETURNING failed_logins`,
		id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, authgate.ErrUserNotFound
		}
		return 0, fmt.Errorf("increment failed logins: %w", err)
	}
	return count, nil
}

func (s *Store) ResetFailedLogins(ctx context.Context, id string) error {
	return s.updateUser(ctx, id, `UPDATE users SET failed_logins = 0 WHERE id = ?`)
}

func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.Unix(), id)
	return checkUpdated(res, err)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	return checkUpdated(res, err)
}

func (s *Store) UpdateEmail(ctx context.Context, id, email string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET email = ? WHERE id = ?`, email, id)
	if isUniqueViolation(err) {
		return authgate.ErrEmailTaken
	}
	return checkUpdated(res, err)
}

func (s *Store) ActivateUser(ctx context.Context, id string) error {
	return s.updateUser(ctx, id, `UPDATE users SET activated = 1 WHERE id = ?`)
}

// SetRole changes a user's role. Not part of the engine contract; used
// by provisioning to promote the first admin.
func (s *Store) SetRole(ctx context.Context, id string, role authgate.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
	return checkUpdated(res, err)
}

func (s *Store) updateUser(ctx context.Context, id, query string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	return checkUpdated(res, err)
}

func checkUpdated(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return authgate.ErrUserNotFound
	}
	return nil
}

// SetMFA writes the enrollment state and replaces the backup-code set in
// one transaction.
func (s *Store) SetMFA(ctx context.Context, id string, enabled bool, secret string, backupCodeHashes [][32]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET mfa_enabled = ?, mfa_secret = ? WHERE id = ?`,
		boolToInt(enabled), secret, id)
	if err := checkUpdated(res, err); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("clear backup codes: %w", err)
	}
	for _, h := range backupCodeHashes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO backup_codes (user_id, code_hash) VALUES (?, ?)`, id, h[:]); err != nil {
			return fmt.Errorf("insert backup code: %w", err)
		}
	}

	return tx.Commit()
}

// ConsumeBackupCode removes the matching code and reports whether this
// call removed it. The single DELETE guarantees at most one of two
// racing logins succeeds with the same code.
func (s *Store) ConsumeBackupCode(ctx context.Context, id string, codeHash [32]byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE user_id = ? AND code_hash = ?`, id, codeHash[:])
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) BackupCodeCount(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE user_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count backup codes: %w", err)
	}
	return n, nil
}

func (s *Store) SetAccountState(ctx context.Context, id string, state authgate.AccountState) error {
	disabled := boolToInt(state.Disabled())
	byAdmin := boolToInt(state.DisabledByAdmin())
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET disabled = ?, disabled_by_admin = ? WHERE id = ?`, disabled, byAdmin, id)
	return checkUpdated(res, err)
}

// DeleteUserCascade removes the user row; foreign keys cascade to
// tokens, backup codes, posts and comments inside the same statement's
// implicit transaction.
func (s *Store) DeleteUserCascade(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return authgate.ErrUserNotFound
	}
	return nil
}

func (s *Store) CreateToken(ctx context.Context, token, userID string, typ authgate.TokenType, expiresAt, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (token, user_id, type, expires_at, used, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		token, userID, string(typ), expiresAt.Unix(), createdAt.Unix())
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// ConsumeToken marks the token used and returns its owner. The guarded
// UPDATE is the atomicity point: of two racing consumers exactly one
// flips the used flag. Consumed and expired tokens are retained for
// audit. Valid through expires_at inclusive; expiry is evaluated lazily
// here, never swept in the background.
func (s *Store) ConsumeToken(ctx context.Context, token string, typ authgate.TokenType, now time.Time) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`UPDATE tokens SET used = 1
		 WHERE token = ? AND type = ? AND used = 0 AND expires_at >= ?
		 RETURNING user_id`,
		token, string(typ), now.Unix()).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("consume token: %w", err)
	}

	// The guarded update missed; classify why for the caller.
	var (
		storedType string
		expiresAt  int64
		used       int
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT type, expires_at, used FROM tokens WHERE token = ?`, token).
		Scan(&storedType, &expiresAt, &used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", authgate.ErrTokenNotFound
		}
		return "", fmt.Errorf("inspect token: %w", err)
	}

	switch {
	case storedType != string(typ):
		return "", authgate.ErrTokenTypeMismatch
	case used != 0:
		return "", authgate.ErrTokenUsed
	case expiresAt < now.Unix():
		return "", authgate.ErrTokenExpired
	default:
		// The token became consumable between the two statements.
		return "", authgate.ErrTokenNotFound
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

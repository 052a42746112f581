package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/authgate/authgate"
	"github.com/authgate/authgate/authz"
)

// Content rows exist so account deletion has something real to cascade
// over and so listings can be filtered through the authorization gate.
// The business logic around them lives outside this module.

// Post is an authored content row.
type Post struct {
	ID        string
	AuthorID  string
	Title     string
	Body      string
	Public    bool
	CreatedAt time.Time
}

func (s *Store) CreatePost(ctx context.Context, authorID, title, body string, public bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, title, body, public, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, authorID, title, body, boolToInt(public), time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("insert post: %w", err)
	}
	return id, nil
}

func (s *Store) CreateComment(ctx context.Context, postID, authorID, body string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, author_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, postID, authorID, body, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("insert comment: %w", err)
	}
	return id, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	var (
		p         Post
		public    int
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, author_id, title, body, public, created_at FROM posts WHERE id = ?`, id).
		Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &public, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	p.Public = public != 0
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

// ListPostsFor returns the posts visible to the viewer, applying the
// gate's listing rule over each author's account state.
func (s *Store) ListPostsFor(ctx context.Context, gate *authz.Gate, viewer authz.Viewer) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.author_id, p.title, p.body, p.public, p.created_at,
		        u.disabled, u.disabled_by_admin
		 FROM posts p JOIN users u ON u.id = p.author_id
		 ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		var (
			p                         Post
			public, createdAt         int64
			disabled, disabledByAdmin int
		)
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &public, &createdAt,
			&disabled, &disabledByAdmin); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Public = public != 0
		p.CreatedAt = time.Unix(createdAt, 0).UTC()

		res := authz.Resource{
			OwnerID:    p.AuthorID,
			Public:     p.Public,
			OwnerState: ownerState(stateFromColumns(disabled != 0, disabledByAdmin != 0)),
		}
		if gate.VisibleInListing(viewer, res) {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

func ownerState(s authgate.AccountState) authz.OwnerState {
	switch s {
	case authgate.StateAdminDisabled:
		return authz.OwnerAdminDisabled
	case authgate.StateSelfDisabled:
		return authz.OwnerSelfDisabled
	default:
		return authz.OwnerActive
	}
}

func (s *Store) PostCount(ctx context.Context, authorID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM posts WHERE author_id = ?`, authorID)
}

func (s *Store) CommentCount(ctx context.Context, authorID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM comments WHERE author_id = ?`, authorID)
}

func (s *Store) TokenCount(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM tokens WHERE user_id = ?`, userID)
}

func (s *Store) count(ctx context.Context, query, arg string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

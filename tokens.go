package authgate

import (
	"context"
	"fmt"

	"github.com/authgate/authgate/internal"
)

// issueToken mints a fresh single-use token of the given type for a user
// and persists it with the configured lifetime. Issuing a new token does
// not invalidate earlier ones of the same type; each lives out its own
// TTL and the first consume wins.
func (e *Engine) issueToken(ctx context.Context, userID string, typ TokenType) (string, error) {
	token, err := internal.NewToken()
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}

	ttl := e.config.Tokens.ActivationTTL
	if typ == TokenPasswordReset {
		ttl = e.config.Tokens.PasswordResetTTL
	}

	now := e.now()
	if err := e.store.CreateToken(ctx, token, userID, typ, now.Add(ttl), now); err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}
	return token, nil
}

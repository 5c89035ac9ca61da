package store

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/pulse/pkg/dispatch"
)

// Tokens is the registry of device push tokens.
type Tokens struct {
	db DBTX
}

var _ dispatch.TokenRegistry = (*Tokens)(nil)

func NewTokens(db DBTX) *Tokens {
	return &Tokens{db: db}
}

func (t *Tokens) ActiveTokens(ctx context.Context, userID string) ([]string, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := t.db.Query(ctx, `
		SELECT fcm_token FROM user_tokens
		WHERE user_id = $1 AND token_type = 'fcm' AND is_active
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("active tokens: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("active tokens: %w", err)
		}
		out = append(out, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active tokens: %w", err)
	}
	return out, nil
}

// Deactivate marks a token rejected by the push gateway.
func (t *Tokens) Deactivate(ctx context.Context, token string) error {
	if _, err := t.db.Exec(ctx, `
		UPDATE user_tokens SET is_active = FALSE, updated_at = now()
		WHERE fcm_token = $1 AND is_active`, token); err != nil {
		return fmt.Errorf("deactivate token: %w", err)
	}
	return nil
}

package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SQLStore keeps tokens in public.session_tokens, keyed by Key. The serve
// shell uses it so a restarted server keeps its operator signed in.
type SQLStore struct {
	DB  *sql.DB
	Key string
}

func (s *SQLStore) key() string {
	if strings.TrimSpace(s.Key) == "" {
		return DefaultKey
	}
	return s.Key
}

func (s *SQLStore) Load(ctx context.Context) (string, error) {
	if s.DB == nil {
		return "", fmt.Errorf("tokenstore: nil db")
	}
	var token string
	err := s.DB.QueryRowContext(ctx, `SELECT token FROM public.session_tokens WHERE key = $1`, s.key()).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return strings.TrimSpace(token), nil
}

func (s *SQLStore) Save(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return s.Clear(ctx)
	}
	if s.DB == nil {
		return fmt.Errorf("tokenstore: nil db")
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO public.session_tokens (key, token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()
	`, s.key(), token)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("tokenstore: nil db")
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM public.session_tokens WHERE key = $1`, s.key()); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

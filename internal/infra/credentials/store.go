package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"server/internal/infra"
)

// Provider key names as stored in integration_tokens.
const (
	ProviderPiAPI     = "piapi"
	ProviderReplicate = "replicate"
	ProviderMinimax   = "minimax"
)

// SQLExecutor is the narrow database surface the store needs. pgxpool.Pool
// satisfies it.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// Store reads and writes provider API credentials kept in the database.
// Environment variables win when present; the store is the fallback so keys
// can be rotated from the admin screens without a redeploy.
type Store struct {
	sql SQLExecutor
}

func NewStore(sql SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored credential for a provider, or empty when none is
// configured.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	query := `SELECT token FROM integration_tokens WHERE provider = $1;`
	row := s.sql.QueryRow(ctx, query, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken upserts the credential for a provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("credentials: token is required")
	}
	return s.upsert(ctx, provider, token, nil)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	query := `
INSERT INTO integration_tokens (provider, token, properties, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (provider) DO UPDATE
SET token = EXCLUDED.token, properties = EXCLUDED.properties, updated_at = NOW();
`
	_, err = s.sql.Exec(ctx, query, provider, token, raw)
	return err
}

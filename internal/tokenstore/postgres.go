package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/teemow/mailcal/internal/token"
)

const tokenSchema = `
CREATE TABLE IF NOT EXISTS session_tokens (
	session_id TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps token records in the session_tokens table.
type PostgresStore struct {
	db     *sql.DB
	sealer *Sealer
}

// NewPostgresStore returns a store on db. sealer may be nil.
func NewPostgresStore(db *sql.DB, sealer *Sealer) *PostgresStore {
	return &PostgresStore{db: db, sealer: sealer}
}

// Migrate creates the session_tokens table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, tokenSchema); err != nil {
		return fmt.Errorf("failed to create session_tokens: %w", err)
	}
	return nil
}

// Load returns the bundle of sessionID.
func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*token.Bundle, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM session_tokens WHERE session_id = $1`, sessionID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return decode(s.sealer, []byte(record))
}

// Replace upserts bundle for sessionID.
func (s *PostgresStore) Replace(ctx context.Context, sessionID string, bundle *token.Bundle) error {
	if err := validSessionID(sessionID); err != nil {
		return err
	}
	data, err := encode(s.sealer, bundle)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO session_tokens (session_id, record, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (session_id) DO UPDATE SET record = EXCLUDED.record, updated_at = now()`,
		sessionID, string(data))
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Delete removes the bundle of sessionID.
func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const serverSchema = `
CREATE TABLE IF NOT EXISTS mcp_servers (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	transport  TEXT NOT NULL,
	command    TEXT,
	args       TEXT,
	url        TEXT,
	session_id TEXT NOT NULL,
	last_used  TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps servers in the mcp_servers table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a store on db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the mcp_servers table if needed.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, serverSchema); err != nil {
		return fmt.Errorf("failed to create mcp_servers: %w", err)
	}
	return nil
}

// List returns all servers ordered by creation time.
func (p *PostgresStore) List(ctx context.Context) ([]Server, error) {
	rows, err := p.db.QueryContext(ctx, `
SELECT id, name, transport, command, args, url, session_id, last_used, created_at
FROM mcp_servers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	var out []Server
	for rows.Next() {
		var (
			s                   Server
			command, args, addr sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Transport, &command, &args, &addr, &s.SessionID, &s.LastUsed, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		s.Command = command.String
		s.URL = addr.String
		if args.Valid && args.String != "" {
			if err := json.Unmarshal([]byte(args.String), &s.Args); err != nil {
				return nil, fmt.Errorf("failed to decode args of server %s: %w", s.ID, err)
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return out, nil
}

// Create inserts s.
func (p *PostgresStore) Create(ctx context.Context, s Server) error {
	var args sql.NullString
	if len(s.Args) > 0 {
		data, err := json.Marshal(s.Args)
		if err != nil {
			return fmt.Errorf("failed to encode args: %w", err)
		}
		args = sql.NullString{String: string(data), Valid: true}
	}

	_, err := p.db.ExecContext(ctx, `
INSERT INTO mcp_servers (id, name, transport, command, args, url, session_id, last_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.Name, string(s.Transport), nullString(s.Command), args, nullString(s.URL), s.SessionID, s.LastUsed, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return nil
}

// Delete removes the server with id.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM mcp_servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the database connection.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

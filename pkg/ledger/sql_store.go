package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hushh-labs/consent-core/internal/circuit"

	_ "github.com/lib/pq"
)

// SQLStore implements Store using PostgreSQL, adapted from
// pkg/audit/sql_storage.go: same CREATE TABLE IF NOT EXISTS bootstrap,
// parameterized queries, JSON column for metadata. The schema matches
// spec §6's logical ledger schema.
type SQLStore struct {
	db      *sql.DB
	breaker *circuit.Breaker
}

// SQLConfig holds configuration for SQL storage.
type SQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const createLedgerTableSQL = `
CREATE TABLE IF NOT EXISTS consent_events (
    id BIGSERIAL PRIMARY KEY,
    event_key TEXT NOT NULL,
    user_id TEXT NOT NULL,
    agent_id TEXT NOT NULL,
    scope TEXT NOT NULL,
    action TEXT NOT NULL,
    request_id TEXT,
    scope_description TEXT,
    issued_at BIGINT NOT NULL,
    expires_at BIGINT,
    poll_timeout_at BIGINT,
    token_raw TEXT,
    metadata JSONB,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_consent_events_user_issued ON consent_events(user_id, issued_at DESC);
CREATE INDEX IF NOT EXISTS idx_consent_events_user_scope_issued ON consent_events(user_id, scope, issued_at DESC);
CREATE INDEX IF NOT EXISTS idx_consent_events_user_request ON consent_events(user_id, request_id);
`

// NewSQLStore opens (or reuses) a Postgres connection, creates the ledger
// table if absent, and wraps operations in a circuit breaker so a flaky
// database returns 5xx quickly rather than hanging handlers — per spec §7,
// "Ledger unavailable ⇒ 5xx, never fabricate a grant".
func NewSQLStore(cfg SQLConfig) (*SQLStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: ping database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if _, err := db.Exec(createLedgerTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create table: %w", err)
	}

	return &SQLStore{
		db: db,
		breaker: circuit.NewBreaker(circuit.Options{
			Name:             "ledger-postgres",
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
		}),
	}, nil
}

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, e Event) (int64, error) {
	var id int64
	err := s.breaker.Execute(func() error {
		metadata, merr := json.Marshal(e.Metadata)
		if merr != nil {
			return fmt.Errorf("ledger: marshal metadata: %w", merr)
		}

		row := s.db.QueryRowContext(ctx, `
			INSERT INTO consent_events (
				event_key, user_id, agent_id, scope, action, request_id,
				scope_description, issued_at, expires_at, poll_timeout_at, token_raw, metadata
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`,
			e.EventKey, e.UserID, e.AgentID, e.Scope, e.Action, nullableString(e.RequestID),
			e.ScopeDescription, e.IssuedAt, nullableInt64(e.ExpiresAt), nullableInt64(e.PollTimeoutAt),
			nullableString(e.TokenRaw), metadata,
		)
		return row.Scan(&id)
	})
	return id, err
}

// AllForUser implements Store.
func (s *SQLStore) AllForUser(ctx context.Context, userID string) ([]Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, event_key, user_id, agent_id, scope, action, COALESCE(request_id,''),
		       COALESCE(scope_description,''), issued_at, COALESCE(expires_at,0),
		       COALESCE(poll_timeout_at,0), COALESCE(token_raw,''), metadata
		FROM consent_events WHERE user_id = $1 ORDER BY issued_at ASC, id ASC`, userID)
}

// AllForUserAfter implements Store.
func (s *SQLStore) AllForUserAfter(ctx context.Context, userID string, afterMS int64) ([]Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, event_key, user_id, agent_id, scope, action, COALESCE(request_id,''),
		       COALESCE(scope_description,''), issued_at, COALESCE(expires_at,0),
		       COALESCE(poll_timeout_at,0), COALESCE(token_raw,''), metadata
		FROM consent_events WHERE user_id = $1 AND issued_at > $2 ORDER BY issued_at ASC, id ASC`, userID, afterMS)
}

func (s *SQLStore) queryEvents(ctx context.Context, query string, args ...interface{}) ([]Event, error) {
	var events []Event
	err := s.breaker.Execute(func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("ledger: query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var e Event
			var metadata []byte
			if err := rows.Scan(&e.ID, &e.EventKey, &e.UserID, &e.AgentID, &e.Scope, &e.Action,
				&e.RequestID, &e.ScopeDescription, &e.IssuedAt, &e.ExpiresAt, &e.PollTimeoutAt,
				&e.TokenRaw, &metadata); err != nil {
				return fmt.Errorf("ledger: scan: %w", err)
			}
			if len(metadata) > 0 {
				if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
					return fmt.Errorf("ledger: unmarshal metadata: %w", err)
				}
			}
			events = append(events, e)
		}
		return rows.Err()
	})
	return events, err
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

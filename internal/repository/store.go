package repository

import (
	"context"
	"fmt"

	"github.com/battlearena/arena-server-go/internal/battle"
	"github.com/battlearena/arena-server-go/internal/events"
)

// Store persists committed events and battle aggregates. It implements the
// arena's Persister.
type Store struct {
	db *DB
}

// NewStore creates a store over the database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS arena_events (
	id          UUID PRIMARY KEY,
	seq         BIGINT NOT NULL,
	event_type  TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	identity    TEXT NOT NULL,
	counterpart TEXT NOT NULL DEFAULT '',
	token_id    BIGINT NOT NULL DEFAULT 0,
	amount      BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS arena_events_identity_idx ON arena_events (identity, seq);

CREATE TABLE IF NOT EXISTS battle_stats (
	identity      TEXT PRIMARY KEY,
	total_battles INT NOT NULL,
	wins          INT NOT NULL,
	losses        INT NOT NULL,
	last_win_seq  BIGINT NOT NULL
);`
	if _, err := s.db.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// AppendEvent writes one committed event.
func (s *Store) AppendEvent(ctx context.Context, ev events.Event) error {
	const q = `
INSERT INTO arena_events (id, seq, event_type, occurred_at, identity, counterpart, token_id, amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`
	_, err := s.db.pool.Exec(ctx, q,
		ev.ID, int64(ev.Seq), string(ev.Type), ev.At,
		ev.Identity, ev.Counter, int64(ev.TokenID), int64(ev.Amount),
	)
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", ev.ID, err)
	}
	return nil
}

// UpsertStats writes an identity's battle aggregate.
func (s *Store) UpsertStats(ctx context.Context, st battle.Stats) error {
	const q = `
INSERT INTO battle_stats (identity, total_battles, wins, losses, last_win_seq)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (identity) DO UPDATE SET
	total_battles = EXCLUDED.total_battles,
	wins          = EXCLUDED.wins,
	losses        = EXCLUDED.losses,
	last_win_seq  = EXCLUDED.last_win_seq`
	_, err := s.db.pool.Exec(ctx, q,
		st.Identity, st.TotalBattles, st.Wins, st.Losses, int64(st.LastWinSeq),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stats for %s: %w", st.Identity, err)
	}
	return nil
}

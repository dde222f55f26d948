package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EpisodeRecord is one closed prey-detection episode, kept for nightly
// review. This is a supplemented feature: the upstream reference program
// has no durable history of past episodes, only best-effort notifications.
type EpisodeRecord struct {
	ID        uuid.UUID
	OpenedAt  time.Time
	ClosedAt  time.Time
	Positions string
	Outcome   string // "unlocked" | "prey_detected"
	Notified  bool
}

// EpisodeStore persists EpisodeRecords to Postgres.
type EpisodeStore struct {
	pool *pgxpool.Pool
}

func NewEpisodeStore(ctx context.Context, dsn string) (*EpisodeStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &EpisodeStore{pool: pool}, nil
}

// EnsureSchema creates the episodes table if it doesn't exist.
func (s *EpisodeStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS episodes (
			id uuid PRIMARY KEY,
			opened_at timestamptz NOT NULL,
			closed_at timestamptz NOT NULL,
			positions text NOT NULL,
			outcome text NOT NULL,
			notified boolean NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure episodes schema: %w", err)
	}
	return nil
}

func (s *EpisodeStore) RecordEpisode(ctx context.Context, rec EpisodeRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO episodes (id, opened_at, closed_at, positions, outcome, notified)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.OpenedAt, rec.ClosedAt, rec.Positions, rec.Outcome, rec.Notified)
	if err != nil {
		return fmt.Errorf("record episode: %w", err)
	}
	return nil
}

// RecentEpisodes returns the most recent episodes, newest first.
func (s *EpisodeStore) RecentEpisodes(ctx context.Context, limit int) ([]EpisodeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, opened_at, closed_at, positions, outcome, notified
		 FROM episodes ORDER BY closed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeRecord
	for rows.Next() {
		var rec EpisodeRecord
		if err := rows.Scan(&rec.ID, &rec.OpenedAt, &rec.ClosedAt, &rec.Positions, &rec.Outcome, &rec.Notified); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *EpisodeStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *EpisodeStore) Close() {
	s.pool.Close()
}

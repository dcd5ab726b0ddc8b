package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS pulse_sector_weights (
		kind       TEXT NOT NULL,
		sector     TEXT NOT NULL,
		weight     DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (kind, sector)
	)`,
	`CREATE TABLE IF NOT EXISTS pulse_sector_scores (
		sector     TEXT PRIMARY KEY,
		score      DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS pulse_weight_changes (
		id              UUID PRIMARY KEY,
		sector          TEXT NOT NULL,
		previous_value  DOUBLE PRECISION NOT NULL,
		requested_value DOUBLE PRECISION,
		new_value       DOUBLE PRECISION NOT NULL,
		changed_by      TEXT NOT NULL DEFAULT '',
		weights         JSONB NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pulse_weight_changes_created ON pulse_weight_changes(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS pulse_snapshots (
		id         UUID PRIMARY KEY,
		score      DOUBLE PRECISION NOT NULL,
		stance     TEXT NOT NULL,
		weights    JSONB,
		scores     JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pulse_snapshots_created ON pulse_snapshots(created_at)`,
}

// EnsureSchema creates the pulse tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) LoadWeights(ctx context.Context, kind WeightKind) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sector, weight FROM pulse_sector_weights
		WHERE kind = $1 ORDER BY sector`, string(kind))
	if err != nil {
		return nil, err
	}
	return scanSectorValues(rows)
}

// SaveWeights replaces the whole set for kind in one transaction.
func (s *PostgresStore) SaveWeights(ctx context.Context, kind WeightKind, weights map[string]float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM pulse_sector_weights WHERE kind = $1`, string(kind)); err != nil {
		return fmt.Errorf("clear %s weights: %w", kind, err)
	}
	for sector, w := range weights {
		if _, err := tx.Exec(ctx, `
			INSERT INTO pulse_sector_weights (kind, sector, weight, updated_at)
			VALUES ($1, $2, $3, NOW())`, string(kind), sector, w); err != nil {
			return fmt.Errorf("insert weight %s: %w", sector, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) LoadScores(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT sector, score FROM pulse_sector_scores ORDER BY sector`)
	if err != nil {
		return nil, err
	}
	return scanSectorValues(rows)
}

func (s *PostgresStore) SaveScores(ctx context.Context, scores map[string]float64) error {
	batch := &pgx.Batch{}
	for sector, score := range scores {
		batch.Queue(`
			INSERT INTO pulse_sector_scores (sector, score, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (sector) DO UPDATE SET score = EXCLUDED.score, updated_at = NOW()`,
			sector, score)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) RecordWeightChange(ctx context.Context, c *WeightChange) error {
	weightsJSON, err := json.Marshal(c.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pulse_weight_changes (id, sector, previous_value, requested_value,
			new_value, changed_by, weights, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Sector, c.PreviousValue, c.RequestedValue,
		c.NewValue, c.ChangedBy, weightsJSON, c.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListWeightChanges(ctx context.Context, limit int) ([]*WeightChange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sector, previous_value, requested_value, new_value,
			changed_by, weights, created_at
		FROM pulse_weight_changes
		ORDER BY created_at DESC LIMIT $1`, changeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*WeightChange
	for rows.Next() {
		c := &WeightChange{}
		var weightsJSON []byte
		if err := rows.Scan(&c.ID, &c.Sector, &c.PreviousValue, &c.RequestedValue,
			&c.NewValue, &c.ChangedBy, &weightsJSON, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(weightsJSON, &c.Weights); err != nil {
			return nil, fmt.Errorf("decode weights for change %s: %w", c.ID, err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (s *PostgresStore) RecordSnapshot(ctx context.Context, snap *PulseSnapshot) error {
	weightsJSON, err := json.Marshal(snap.Weights)
	if err != nil {
		return fmt.Errorf("marshal snapshot weights: %w", err)
	}
	scoresJSON, err := json.Marshal(snap.Scores)
	if err != nil {
		return fmt.Errorf("marshal snapshot scores: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pulse_snapshots (id, score, stance, weights, scores, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.ID, snap.Score, snap.Stance, weightsJSON, scoresJSON, snap.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, since time.Time) ([]*PulseSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, score, stance, weights, scores, created_at
		FROM pulse_snapshots
		WHERE created_at >= $1
		ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*PulseSnapshot
	for rows.Next() {
		p := &PulseSnapshot{}
		var weightsJSON, scoresJSON []byte
		if err := rows.Scan(&p.ID, &p.Score, &p.Stance, &weightsJSON, &scoresJSON, &p.CreatedAt); err != nil {
			return nil, err
		}
		if len(weightsJSON) > 0 {
			if err := json.Unmarshal(weightsJSON, &p.Weights); err != nil {
				return nil, fmt.Errorf("decode weights for snapshot %s: %w", p.ID, err)
			}
		}
		if len(scoresJSON) > 0 {
			if err := json.Unmarshal(scoresJSON, &p.Scores); err != nil {
				return nil, fmt.Errorf("decode scores for snapshot %s: %w", p.ID, err)
			}
		}
		snaps = append(snaps, p)
	}
	return snaps, rows.Err()
}

func scanSectorValues(rows pgx.Rows) (map[string]float64, error) {
	defer rows.Close()
	var out map[string]float64
	for rows.Next() {
		var sector string
		var v float64
		if err := rows.Scan(&sector, &v); err != nil {
			return nil, err
		}
		if out == nil {
			out = make(map[string]float64)
		}
		out[sector] = v
	}
	return out, rows.Err()
}

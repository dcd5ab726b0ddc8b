package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists pulse state to a single SQLite file. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database file and runs migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pulse_sector_weights (
			kind       TEXT NOT NULL,
			sector     TEXT NOT NULL,
			weight     REAL NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (kind, sector)
		)`,
		`CREATE TABLE IF NOT EXISTS pulse_sector_scores (
			sector     TEXT PRIMARY KEY,
			score      REAL NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pulse_weight_changes (
			id              TEXT PRIMARY KEY,
			sector          TEXT NOT NULL,
			previous_value  REAL NOT NULL,
			requested_value REAL,
			new_value       REAL NOT NULL,
			changed_by      TEXT NOT NULL DEFAULT '',
			weights         TEXT NOT NULL,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pulse_weight_changes_created ON pulse_weight_changes(created_at)`,
		`CREATE TABLE IF NOT EXISTS pulse_snapshots (
			id         TEXT PRIMARY KEY,
			score      REAL NOT NULL,
			stance     TEXT NOT NULL,
			weights    TEXT,
			scores     TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pulse_snapshots_created ON pulse_snapshots(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) querySectorValues(ctx context.Context, b sq.SelectBuilder) (map[string]float64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
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

func (s *SQLiteStore) LoadWeights(ctx context.Context, kind WeightKind) (map[string]float64, error) {
	return s.querySectorValues(ctx, sq.Select("sector", "weight").
		From("pulse_sector_weights").
		Where(sq.Eq{"kind": string(kind)}).
		OrderBy("sector"))
}

func (s *SQLiteStore) SaveWeights(ctx context.Context, kind WeightKind, weights map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	del, args, err := sq.Delete("pulse_sector_weights").Where(sq.Eq{"kind": string(kind)}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("clear %s weights: %w", kind, err)
	}

	if len(weights) > 0 {
		now := time.Now().UnixMilli()
		ins := sq.Insert("pulse_sector_weights").Columns("kind", "sector", "weight", "updated_at")
		for sector, w := range weights {
			ins = ins.Values(string(kind), sector, w, now)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s weights: %w", kind, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadScores(ctx context.Context) (map[string]float64, error) {
	return s.querySectorValues(ctx, sq.Select("sector", "score").
		From("pulse_sector_scores").
		OrderBy("sector"))
}

func (s *SQLiteStore) SaveScores(ctx context.Context, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	ins := sq.Insert("pulse_sector_scores").Columns("sector", "score", "updated_at")
	for sector, score := range scores {
		ins = ins.Values(sector, score, now)
	}
	query, args, err := ins.
		Suffix("ON CONFLICT(sector) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteStore) RecordWeightChange(ctx context.Context, c *WeightChange) error {
	weightsJSON, err := json.Marshal(c.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	var requested sql.NullFloat64
	if c.RequestedValue != nil {
		requested = sql.NullFloat64{Float64: *c.RequestedValue, Valid: true}
	}

	query, args, err := sq.Insert("pulse_weight_changes").
		Columns("id", "sector", "previous_value", "requested_value", "new_value",
			"changed_by", "weights", "created_at").
		Values(c.ID.String(), c.Sector, c.PreviousValue, requested, c.NewValue,
			c.ChangedBy, string(weightsJSON), c.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteStore) ListWeightChanges(ctx context.Context, limit int) ([]*WeightChange, error) {
	query, args, err := sq.Select("id", "sector", "previous_value", "requested_value",
		"new_value", "changed_by", "weights", "created_at").
		From("pulse_weight_changes").
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(changeLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*WeightChange
	for rows.Next() {
		c := &WeightChange{}
		var id, weightsJSON string
		var requested sql.NullFloat64
		var createdAt int64
		if err := rows.Scan(&id, &c.Sector, &c.PreviousValue, &requested,
			&c.NewValue, &c.ChangedBy, &weightsJSON, &createdAt); err != nil {
			return nil, err
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse change id %q: %w", id, err)
		}
		if requested.Valid {
			v := requested.Float64
			c.RequestedValue = &v
		}
		if err := json.Unmarshal([]byte(weightsJSON), &c.Weights); err != nil {
			return nil, fmt.Errorf("decode weights for change %s: %w", id, err)
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (s *SQLiteStore) RecordSnapshot(ctx context.Context, snap *PulseSnapshot) error {
	weightsJSON, err := json.Marshal(snap.Weights)
	if err != nil {
		return fmt.Errorf("marshal snapshot weights: %w", err)
	}
	scoresJSON, err := json.Marshal(snap.Scores)
	if err != nil {
		return fmt.Errorf("marshal snapshot scores: %w", err)
	}

	query, args, err := sq.Insert("pulse_snapshots").
		Columns("id", "score", "stance", "weights", "scores", "created_at").
		Values(snap.ID.String(), snap.Score, snap.Stance,
			string(weightsJSON), string(scoresJSON), snap.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, since time.Time) ([]*PulseSnapshot, error) {
	query, args, err := sq.Select("id", "score", "stance", "weights", "scores", "created_at").
		From("pulse_snapshots").
		Where(sq.GtOrEq{"created_at": since.UnixMilli()}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*PulseSnapshot
	for rows.Next() {
		p := &PulseSnapshot{}
		var id string
		var weightsJSON, scoresJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(&id, &p.Score, &p.Stance, &weightsJSON, &scoresJSON, &createdAt); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse snapshot id %q: %w", id, err)
		}
		if weightsJSON.Valid {
			if err := json.Unmarshal([]byte(weightsJSON.String), &p.Weights); err != nil {
				return nil, fmt.Errorf("decode weights for snapshot %s: %w", id, err)
			}
		}
		if scoresJSON.Valid {
			if err := json.Unmarshal([]byte(scoresJSON.String), &p.Scores); err != nil {
				return nil, fmt.Errorf("decode scores for snapshot %s: %w", id, err)
			}
		}
		p.CreatedAt = time.UnixMilli(createdAt).UTC()
		snaps = append(snaps, p)
	}
	return snaps, rows.Err()
}

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WeightKind distinguishes the live weight set from the reset defaults.
type WeightKind string

const (
	KindCurrent WeightKind = "current"
	KindDefault WeightKind = "default"
)

// WeightChange is the audit record of one redistribution.
type WeightChange struct {
	ID             uuid.UUID          `json:"id"`
	Sector         string             `json:"sector"`
	PreviousValue  float64            `json:"previous_value"`
	RequestedValue *float64           `json:"requested_value,omitempty"`
	NewValue       float64            `json:"new_value"`
	ChangedBy      string             `json:"changed_by,omitempty"`
	Weights        map[string]float64 `json:"weights"`
	CreatedAt      time.Time          `json:"created_at"`
}

// PulseSnapshot is a point-in-time reading of the pulse score.
type PulseSnapshot struct {
	ID        uuid.UUID          `json:"id"`
	Score     float64            `json:"score"`
	Stance    string             `json:"stance"`
	Weights   map[string]float64 `json:"weights,omitempty"`
	Scores    map[string]float64 `json:"scores,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Store persists weight sets, scores and history. Load methods return a nil
// map and no error when nothing has been saved yet.
type Store interface {
	LoadWeights(ctx context.Context, kind WeightKind) (map[string]float64, error)
	SaveWeights(ctx context.Context, kind WeightKind, weights map[string]float64) error

	LoadScores(ctx context.Context) (map[string]float64, error)
	SaveScores(ctx context.Context, scores map[string]float64) error

	RecordWeightChange(ctx context.Context, c *WeightChange) error
	ListWeightChanges(ctx context.Context, limit int) ([]*WeightChange, error)

	RecordSnapshot(ctx context.Context, s *PulseSnapshot) error
	ListSnapshots(ctx context.Context, since time.Time) ([]*PulseSnapshot, error)

	Close() error
}

const (
	defaultChangeLimit = 100
	maxChangeLimit     = 1000
)

func changeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultChangeLimit
	case limit > maxChangeLimit:
		return maxChangeLimit
	}
	return limit
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "pulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// backends runs fn against every store that needs no external service.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t)) })
}

func TestWeightsRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		got, err := s.LoadWeights(ctx, KindCurrent)
		require.NoError(t, err)
		assert.Nil(t, got, "nothing saved yet")

		current := map[string]float64{"A": 60, "B": 26.67, "C": 13.33}
		defaults := map[string]float64{"A": 50, "B": 50}
		require.NoError(t, s.SaveWeights(ctx, KindCurrent, current))
		require.NoError(t, s.SaveWeights(ctx, KindDefault, defaults))

		got, err = s.LoadWeights(ctx, KindCurrent)
		require.NoError(t, err)
		assert.Equal(t, current, got)

		got, err = s.LoadWeights(ctx, KindDefault)
		require.NoError(t, err)
		assert.Equal(t, defaults, got)

		// a save replaces the previous set, it does not merge
		require.NoError(t, s.SaveWeights(ctx, KindCurrent, map[string]float64{"A": 100}))
		got, err = s.LoadWeights(ctx, KindCurrent)
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"A": 100}, got)
	})
}

func TestScoresUpsert(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveScores(ctx, map[string]float64{"A": 70, "B": 50}))
		require.NoError(t, s.SaveScores(ctx, map[string]float64{"B": 55}))

		got, err := s.LoadScores(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"A": 70, "B": 55}, got)
	})
}

func TestWeightChangesNewestFirst(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 5, 2, 16, 0, 0, 0, time.UTC)
		requested := 75.0

		for i := 0; i < 3; i++ {
			c := &WeightChange{
				ID:            uuid.New(),
				Sector:        "AdTech",
				PreviousValue: float64(10 + i),
				NewValue:      float64(20 + i),
				ChangedBy:     "analyst",
				Weights:       map[string]float64{"AdTech": float64(20 + i), "Fintech": float64(80 - i)},
				CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			}
			if i == 2 {
				c.RequestedValue = &requested
			}
			require.NoError(t, s.RecordWeightChange(ctx, c))
		}

		changes, err := s.ListWeightChanges(ctx, 2)
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, 22.0, changes[0].NewValue)
		assert.Equal(t, 21.0, changes[1].NewValue)
		require.NotNil(t, changes[0].RequestedValue)
		assert.Equal(t, 75.0, *changes[0].RequestedValue)
		assert.Nil(t, changes[1].RequestedValue)
		assert.Equal(t, 78.0, changes[0].Weights["Fintech"])
		assert.True(t, changes[0].CreatedAt.Equal(base.Add(2*time.Minute)))

		all, err := s.ListWeightChanges(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestSnapshotsSince(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		for _, age := range []time.Duration{72 * time.Hour, 36 * time.Hour, time.Hour} {
			require.NoError(t, s.RecordSnapshot(ctx, &PulseSnapshot{
				ID:        uuid.New(),
				Score:     55.5,
				Stance:    "Neutral",
				Weights:   map[string]float64{"A": 100},
				Scores:    map[string]float64{"A": 55.5},
				CreatedAt: now.Add(-age),
			}))
		}

		snaps, err := s.ListSnapshots(ctx, now.Add(-48*time.Hour))
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.True(t, snaps[0].CreatedAt.Before(snaps[1].CreatedAt), "oldest first")
		assert.Equal(t, "Neutral", snaps[1].Stance)
		assert.Equal(t, 55.5, snaps[1].Scores["A"])
	})
}

func TestChangeLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, defaultChangeLimit},
		{-5, defaultChangeLimit},
		{25, 25},
		{maxChangeLimit, maxChangeLimit},
		{maxChangeLimit + 1, maxChangeLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, changeLimit(tt.in), "limit %d", tt.in)
	}
}

func TestSQLiteCorruptSnapshotIsAnError(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pulse_snapshots (id, score, stance, weights, scores, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), 50.0, "Neutral", `{"A":`, `{}`, time.Now().UnixMilli())
	require.NoError(t, err)

	_, err = s.ListSnapshots(ctx, time.Now().Add(-time.Hour))
	assert.ErrorContains(t, err, "decode weights for snapshot")
}

func TestMemoryListsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, s.RecordWeightChange(ctx, &WeightChange{
		ID: uuid.New(), Sector: "A", NewValue: 60,
		Weights: map[string]float64{"A": 60, "B": 40}, CreatedAt: now,
	}))
	require.NoError(t, s.RecordSnapshot(ctx, &PulseSnapshot{
		ID: uuid.New(), Score: 40, Stance: "Neutral",
		Weights:   map[string]float64{"A": 60, "B": 40},
		Scores:    map[string]float64{"A": 40},
		CreatedAt: now,
	}))

	changes, err := s.ListWeightChanges(ctx, 0)
	require.NoError(t, err)
	changes[0].Weights["A"] = 0

	snaps, err := s.ListSnapshots(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	snaps[0].Weights["A"] = 0
	snaps[0].Scores["A"] = 0

	changes, err = s.ListWeightChanges(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 60.0, changes[0].Weights["A"])

	snaps, err = s.ListSnapshots(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 60.0, snaps[0].Weights["A"])
	assert.Equal(t, 40.0, snaps[0].Scores["A"])
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "memory", Backend(s))

	path := filepath.Join(t.TempDir(), "pulse.db")
	s, err = Open(ctx, "sqlite://"+path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", Backend(s))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", Backend(s))
	require.NoError(t, s.Close())

	_, err = Open(ctx, "mysql://localhost/pulse")
	assert.Error(t, err)
}

func TestSQLiteReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pulse.db")

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveWeights(ctx, KindCurrent, map[string]float64{"A": 40, "B": 60}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.LoadWeights(ctx, KindCurrent)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 40, "B": 60}, got)
}

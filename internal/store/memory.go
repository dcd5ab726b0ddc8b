package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps everything in process. Used when no database is
// configured and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	weights   map[WeightKind]map[string]float64
	scores    map[string]float64
	changes   []*WeightChange
	snapshots []*PulseSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{weights: make(map[WeightKind]map[string]float64)}
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m *MemoryStore) LoadWeights(_ context.Context, kind WeightKind) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyMap(m.weights[kind]), nil
}

func (m *MemoryStore) SaveWeights(_ context.Context, kind WeightKind, weights map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weights[kind] = copyMap(weights)
	return nil
}

func (m *MemoryStore) LoadScores(_ context.Context) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyMap(m.scores), nil
}

func (m *MemoryStore) SaveScores(_ context.Context, scores map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scores == nil {
		m.scores = make(map[string]float64, len(scores))
	}
	for k, v := range scores {
		m.scores[k] = v
	}
	return nil
}

func (m *MemoryStore) RecordWeightChange(_ context.Context, c *WeightChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Weights = copyMap(c.Weights)
	m.changes = append(m.changes, &cp)
	return nil
}

func (m *MemoryStore) ListWeightChanges(_ context.Context, limit int) ([]*WeightChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = changeLimit(limit)
	var out []*WeightChange
	for i := len(m.changes) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.changes[i]
		cp.Weights = copyMap(cp.Weights)
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) RecordSnapshot(_ context.Context, s *PulseSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Weights = copyMap(s.Weights)
	cp.Scores = copyMap(s.Scores)
	m.snapshots = append(m.snapshots, &cp)
	return nil
}

func (m *MemoryStore) ListSnapshots(_ context.Context, since time.Time) ([]*PulseSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PulseSnapshot
	for _, s := range m.snapshots {
		if !s.CreatedAt.Before(since) {
			cp := *s
			cp.Weights = copyMap(s.Weights)
			cp.Scores = copyMap(s.Scores)
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

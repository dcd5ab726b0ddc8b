package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/MikeSquared-Agency/Pulse/internal/config"
	"github.com/MikeSquared-Agency/Pulse/internal/hermes"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
	"github.com/MikeSquared-Agency/Pulse/internal/weights"
)

var (
	ErrInvalidScore     = errors.New("invalid sector score")
	ErrInvalidMarketCap = errors.New("invalid market caps")
)

// scoreSourceAPI tags score updates made over HTTP so the service can skip
// its own events when they come back on the bus.
const scoreSourceAPI = "pulse-api"

// DefaultHistoryDays backs the 30-day pulse chart.
const DefaultHistoryDays = 30

// Update describes the outcome of one redistribution request.
type Update struct {
	ChangeID  string      `json:"change_id,omitempty"`
	Category  string      `json:"category"`
	Previous  float64     `json:"previous"`
	Requested *float64    `json:"requested"`
	Value     float64     `json:"value"`
	Changed   bool        `json:"changed"`
	Weights   weights.Set `json:"weights"`
}

// Reading is the aggregate pulse at a point in time.
type Reading struct {
	Score       float64            `json:"score"`
	Stance      string             `json:"stance"`
	Weights     weights.Set        `json:"weights"`
	Scores      map[string]float64 `json:"scores"`
	TotalWeight float64            `json:"total_weight"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Service owns the canonical weight set. Every mutation reads the current
// set, computes the next one, persists it and only then commits it, all
// under one lock.
type Service struct {
	store   store.Store
	hermes  hermes.Client
	cfg     *config.Config
	policy  weights.Policy
	sectors map[string]bool
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	current  weights.Set
	defaults weights.Set
	scores   map[string]float64

	cron     *cron.Cron
	stopOnce sync.Once
}

// New builds a Service. h may be nil when no message bus is configured.
func New(s store.Store, h hermes.Client, cfg *config.Config, m *Metrics, logger *slog.Logger) *Service {
	if m == nil {
		m = NewMetrics(nil)
	}
	sectors := make(map[string]bool, len(cfg.Weights.Sectors))
	for _, name := range cfg.Weights.Sectors {
		sectors[name] = true
	}
	return &Service{
		store:   s,
		hermes:  h,
		cfg:     cfg,
		policy:  weights.Policy{MinWeight: cfg.Weights.MinWeight, MaxWeight: cfg.Weights.MaxWeight},
		sectors: sectors,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		scores:  make(map[string]float64),
	}
}

// Init loads persisted state. Stored sets that no longer match the
// configured sectors or bounds are discarded in favour of the defaults.
func (s *Service) Init(ctx context.Context) error {
	sectors := s.cfg.Weights.Sectors
	if err := s.policy.Check(len(sectors)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	defaults, err := s.loadSet(ctx, store.KindDefault, sectors)
	if err != nil {
		return err
	}
	if defaults == nil {
		defaults = weights.Equal(sectors)
		if err := defaults.Validate(s.policy); err != nil {
			return fmt.Errorf("equal split outside weight bounds: %w", err)
		}
		if err := s.store.SaveWeights(ctx, store.KindDefault, defaults); err != nil {
			return fmt.Errorf("save default weights: %w", err)
		}
	}

	current, err := s.loadSet(ctx, store.KindCurrent, sectors)
	if err != nil {
		return err
	}
	if current == nil {
		current = defaults.Clone()
		if err := s.store.SaveWeights(ctx, store.KindCurrent, current); err != nil {
			return fmt.Errorf("save current weights: %w", err)
		}
	}

	scores, err := s.store.LoadScores(ctx)
	if err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	if scores == nil {
		scores = make(map[string]float64)
	}

	s.defaults, s.current, s.scores = defaults, current, scores
	s.metrics.observe(current, s.scoreLocked())
	s.logger.Info("pulse state loaded",
		"sectors", len(sectors),
		"scores", len(scores),
		"backend", store.Backend(s.store),
	)
	return nil
}

func (s *Service) loadSet(ctx context.Context, kind store.WeightKind, sectors []string) (weights.Set, error) {
	stored, err := s.store.LoadWeights(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s weights: %w", kind, err)
	}
	if stored == nil {
		return nil, nil
	}
	set := weights.Set(stored)
	if !set.SameCategories(sectors) {
		s.logger.Warn("stored weights do not match configured sectors, discarding",
			"kind", kind, "stored", len(set), "configured", len(sectors))
		return nil, nil
	}
	if err := set.Validate(s.policy); err != nil {
		s.logger.Warn("stored weights invalid, discarding", "kind", kind, "error", err)
		return nil, nil
	}
	return set, nil
}

func (s *Service) Weights() weights.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

func (s *Service) Defaults() weights.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults.Clone()
}

func (s *Service) Scores() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyScores(s.scores)
}

// Redistribute pins category to requested and rescales the others. A nil or
// non-finite request leaves the set untouched and reports Changed=false.
func (s *Service) Redistribute(ctx context.Context, category string, requested *float64, changedBy string) (*Update, error) {
	if requested != nil && (math.IsNaN(*requested) || math.IsInf(*requested, 0)) {
		requested = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.current[category]
	next, err := weights.Redistribute(s.current, category, requested, s.policy)
	if err != nil {
		if errors.Is(err, weights.ErrUnknownCategory) {
			s.metrics.Redistributions.WithLabelValues(resultUnknownCategory).Inc()
		} else {
			s.metrics.Redistributions.WithLabelValues(resultError).Inc()
		}
		return nil, err
	}

	update := &Update{
		Category:  category,
		Previous:  previous,
		Requested: requested,
		Value:     next[category],
	}
	if next[category] == previous {
		s.metrics.Redistributions.WithLabelValues(resultNoop).Inc()
		update.Weights = next
		return update, nil
	}

	if err := s.store.SaveWeights(ctx, store.KindCurrent, next); err != nil {
		s.metrics.Redistributions.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("save weights: %w", err)
	}

	now := s.now()
	change := &store.WeightChange{
		ID:             uuid.New(),
		Sector:         category,
		PreviousValue:  previous,
		RequestedValue: requested,
		NewValue:       next[category],
		ChangedBy:      changedBy,
		Weights:        next.Clone(),
		CreatedAt:      now,
	}
	if err := s.store.RecordWeightChange(ctx, change); err != nil {
		s.logger.Warn("failed to record weight change", "sector", category, "error", err)
	}

	s.current = next
	score := s.scoreLocked()
	s.metrics.observe(next, score)
	s.metrics.Redistributions.WithLabelValues(resultChanged).Inc()

	s.logger.Info("weights redistributed",
		"sector", category,
		"previous", previous,
		"value", next[category],
		"changed_by", changedBy,
	)

	s.publish(hermes.SubjectWeightsChanged, hermes.WeightsChangedEvent{
		ChangeID:      change.ID.String(),
		Sector:        category,
		PreviousValue: previous,
		NewValue:      next[category],
		ChangedBy:     changedBy,
		Weights:       next.Clone(),
		PulseScore:    score,
		Timestamp:     now,
	})

	update.ChangeID = change.ID.String()
	update.Changed = true
	update.Weights = next.Clone()
	return update, nil
}

// Reset restores the default distribution.
func (s *Service) Reset(ctx context.Context, by string) (weights.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.defaults.Clone()
	if err := s.store.SaveWeights(ctx, store.KindCurrent, next); err != nil {
		return nil, fmt.Errorf("save weights: %w", err)
	}
	s.current = next
	s.metrics.observe(next, s.scoreLocked())
	s.logger.Info("weights reset to defaults", "by", by)

	s.publish(hermes.SubjectWeightsReset, hermes.WeightsResetEvent{
		ResetBy:   by,
		Weights:   next.Clone(),
		Timestamp: s.now(),
	})
	return next.Clone(), nil
}

// SetDefaultsFromMarketCaps recomputes the reset target from market
// capitalisations. The current weights are left alone.
func (s *Service) SetDefaultsFromMarketCaps(ctx context.Context, caps map[string]float64, by string) (weights.Set, error) {
	if len(caps) == 0 {
		return nil, fmt.Errorf("%w: no market caps given", ErrInvalidMarketCap)
	}
	for name, v := range caps {
		if !s.sectors[name] {
			return nil, fmt.Errorf("%w: %w %q", ErrInvalidMarketCap, weights.ErrUnknownCategory, name)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidMarketCap, name, v)
		}
	}

	defaults := weights.FromMarketCaps(caps, s.cfg.Weights.Sectors)
	if err := defaults.Validate(s.policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMarketCap, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SaveWeights(ctx, store.KindDefault, defaults); err != nil {
		return nil, fmt.Errorf("save default weights: %w", err)
	}
	s.defaults = defaults
	s.logger.Info("default weights updated from market caps", "by", by, "sectors", len(caps))

	s.publish(hermes.SubjectDefaultsUpdated, hermes.DefaultsUpdatedEvent{
		UpdatedBy: by,
		Source:    "market_caps",
		Defaults:  defaults.Clone(),
		Timestamp: s.now(),
	})
	return defaults.Clone(), nil
}

// UpdateScores merges new 0-100 sentiment scores for known sectors.
func (s *Service) UpdateScores(ctx context.Context, scores map[string]float64) error {
	return s.applyScores(ctx, scores, scoreSourceAPI, true)
}

func (s *Service) applyScores(ctx context.Context, scores map[string]float64, source string, announce bool) error {
	if len(scores) == 0 {
		return fmt.Errorf("%w: no scores given", ErrInvalidScore)
	}
	for name, v := range scores {
		if !s.sectors[name] {
			return fmt.Errorf("%w: unknown sector %q", ErrInvalidScore, name)
		}
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("%w: %s=%v outside [0, 100]", ErrInvalidScore, name, v)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SaveScores(ctx, scores); err != nil {
		return fmt.Errorf("save scores: %w", err)
	}
	for name, v := range scores {
		s.scores[name] = v
	}
	s.metrics.observe(s.current, s.scoreLocked())
	s.logger.Info("sector scores updated", "source", source, "count", len(scores))

	if announce {
		s.publish(hermes.SubjectScoresUpdated, hermes.ScoresUpdatedEvent{
			Scores:    copyScores(scores),
			Source:    source,
			Timestamp: s.now(),
		})
	}
	return nil
}

// Pulse returns the current weighted score.
func (s *Service) Pulse() Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readingLocked()
}

func (s *Service) readingLocked() Reading {
	score := s.scoreLocked()
	return Reading{
		Score:       score,
		Stance:      weights.Stance(score),
		Weights:     s.current.Clone(),
		Scores:      copyScores(s.scores),
		TotalWeight: math.Round(s.current.Sum()*100) / 100,
		Timestamp:   s.now(),
	}
}

// scoreLocked is the aggregate rounded to one decimal. Callers hold mu.
func (s *Service) scoreLocked() float64 {
	return math.Round(weights.Aggregate(s.scores, s.current)*10) / 10
}

// Snapshot records the current reading in pulse history.
func (s *Service) Snapshot(ctx context.Context) (*store.PulseSnapshot, error) {
	s.mu.RLock()
	r := s.readingLocked()
	s.mu.RUnlock()

	snap := &store.PulseSnapshot{
		ID:        uuid.New(),
		Score:     r.Score,
		Stance:    r.Stance,
		Weights:   r.Weights,
		Scores:    r.Scores,
		CreatedAt: r.Timestamp,
	}
	if err := s.store.RecordSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("record snapshot: %w", err)
	}
	s.metrics.Snapshots.Inc()
	s.logger.Debug("pulse snapshot recorded", "score", snap.Score, "stance", snap.Stance)

	s.publish(hermes.SubjectPulseSnapshot, hermes.PulseSnapshotEvent{
		SnapshotID: snap.ID.String(),
		Score:      snap.Score,
		Stance:     snap.Stance,
		Timestamp:  snap.CreatedAt,
	})
	return snap, nil
}

// Changes lists the most recent redistributions, newest first.
func (s *Service) Changes(ctx context.Context, limit int) ([]*store.WeightChange, error) {
	changes, err := s.store.ListWeightChanges(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list weight changes: %w", err)
	}
	return changes, nil
}

// History lists snapshots from the last days, oldest first.
func (s *Service) History(ctx context.Context, days int) ([]*store.PulseSnapshot, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	snaps, err := s.store.ListSnapshots(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// Start subscribes to score updates and schedules snapshots.
func (s *Service) Start(ctx context.Context) error {
	if s.hermes != nil {
		if err := s.hermes.Subscribe(hermes.SubjectScoresUpdated, s.handleScoresUpdated); err != nil {
			return fmt.Errorf("subscribe %s: %w", hermes.SubjectScoresUpdated, err)
		}
	}

	if !s.cfg.Snapshot.Enabled {
		return nil
	}
	s.cron = cron.New(cron.WithSeconds())
	if _, err := s.cron.AddFunc(s.cfg.Snapshot.Cron, func() {
		if _, err := s.Snapshot(ctx); err != nil {
			s.logger.Error("scheduled snapshot failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule snapshots %q: %w", s.cfg.Snapshot.Cron, err)
	}
	s.cron.Start()
	s.logger.Info("snapshot schedule registered", "cron", s.cfg.Snapshot.Cron)
	return nil
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
	})
}

func (s *Service) handleScoresUpdated(subject string, data []byte) {
	var evt hermes.ScoresUpdatedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.logger.Warn("invalid scores event", "subject", subject, "error", err)
		return
	}
	if evt.Source == scoreSourceAPI {
		return
	}

	known := make(map[string]float64, len(evt.Scores))
	for name, v := range evt.Scores {
		if s.sectors[name] {
			known[name] = v
		} else {
			s.logger.Debug("ignoring score for unknown sector", "sector", name, "source", evt.Source)
		}
	}
	if len(known) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.applyScores(ctx, known, evt.Source, false); err != nil {
		s.logger.Warn("failed to apply scores event", "source", evt.Source, "error", err)
	}
}

func (s *Service) publish(subject string, evt interface{}) {
	if s.hermes == nil {
		return
	}
	if err := s.hermes.Publish(subject, evt); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func copyScores(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

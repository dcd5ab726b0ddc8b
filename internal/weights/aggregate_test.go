package weights

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
)

func TestAggregateWeightedAverage(t *testing.T) {
	scores := map[string]float64{"A": 80, "B": 50, "C": 20}
	w := Set{"A": 60, "B": 20, "C": 20}

	got := Aggregate(scores, w)
	if math.Abs(got-62.0) > 1e-9 {
		t.Errorf("expected 62.0, got %f", got)
	}
}

func TestAggregateEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		w      Set
		want   float64
	}{
		{"extra scores ignored", map[string]float64{"A": 80, "B": 40, "X": 100}, Set{"A": 50, "B": 50}, 60},
		{"missing score counts as zero", map[string]float64{"A": 80}, Set{"A": 50, "B": 50}, 40},
		{"zero weights", map[string]float64{"A": 80, "B": 40}, Set{"A": 0, "B": 0}, 0},
		{"empty set", map[string]float64{"A": 80}, Set{}, 0},
		{"nil scores", nil, Set{"A": 100}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.scores, tt.w)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestAggregateStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		raw := make(map[string]float64, len(techSectors))
		scores := make(map[string]float64, len(techSectors))
		for _, s := range techSectors {
			raw[s] = rng.Float64()
			scores[s] = rng.Float64() * 100
		}
		w, err := Normalize(raw)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		got := Aggregate(scores, w)
		if got < 0 || got > 100 {
			t.Fatalf("aggregate %f outside [0, 100]", got)
		}
	}
}

func TestStance(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, StanceBearish},
		{29.9, StanceBearish},
		{30, StanceNeutral},
		{30.1, StanceNeutral},
		{59.9, StanceNeutral},
		{60, StanceBullish},
		{100, StanceBullish},
	}
	for _, tt := range tests {
		if got := Stance(tt.score); got != tt.want {
			t.Errorf("Stance(%v): expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestScaleScore(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{-1, 0},
		{0, 50},
		{1, 100},
		{0.3, 65},
		{-0.15, 42.5},
		{2, 100},
	}
	for _, tt := range tests {
		got, err := ScaleScore(tt.raw, -1, 1)
		if err != nil {
			t.Fatalf("ScaleScore(%v): %v", tt.raw, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ScaleScore(%v): expected %v, got %v", tt.raw, tt.want, got)
		}
	}

	if _, err := ScaleScore(0, 1, 1); err == nil {
		t.Error("expected error for empty range")
	}
}

func TestParseRequested(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{"number", `42.5`, float64Ptr(42.5)},
		{"numeric string", `"17"`, float64Ptr(17)},
		{"percent string", `" 12.5% "`, float64Ptr(12.5)},
		{"null", `null`, nil},
		{"missing", ``, nil},
		{"empty string", `""`, nil},
		{"garbage", `"abc"`, nil},
		{"nan string", `"NaN"`, nil},
		{"bool", `true`, nil},
		{"object", `{"v":1}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRequested(json.RawMessage(tt.raw))
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expected nil, got %v", *got)
			case tt.want != nil && got == nil:
				t.Errorf("expected %v, got nil", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("expected %v, got %v", *tt.want, *got)
			}
		})
	}
}

package weights

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Total is the value every weight set sums to.
const Total = 100.0

// Tolerance is the allowed absolute drift of a set's sum from Total.
const Tolerance = 0.01

var (
	ErrUnknownCategory  = errors.New("unknown category")
	ErrEmptySet         = errors.New("empty weight set")
	ErrZeroTotal        = errors.New("weights total zero")
	ErrInfeasiblePolicy = errors.New("weight bounds cannot sum to 100")
)

// Set maps a category (sector) name to its percentage weight.
// Functions in this package never mutate a Set they are given.
type Set map[string]float64

// Policy bounds every individual weight.
type Policy struct {
	MinWeight float64 `yaml:"min_weight" json:"min_weight"`
	MaxWeight float64 `yaml:"max_weight" json:"max_weight"`
}

// DefaultPolicy allows a sector to be switched off entirely.
func DefaultPolicy() Policy {
	return Policy{MinWeight: 0, MaxWeight: Total}
}

// Check reports whether n categories can satisfy the bounds and still sum to 100.
func (p Policy) Check(n int) error {
	if p.MinWeight < 0 || p.MaxWeight > Total || p.MinWeight > p.MaxWeight {
		return fmt.Errorf("%w: min %.2f max %.2f", ErrInfeasiblePolicy, p.MinWeight, p.MaxWeight)
	}
	lo, hi := p.feasible(n)
	if n == 0 || lo > hi {
		return fmt.Errorf("%w: %d categories within [%.2f, %.2f]", ErrInfeasiblePolicy, n, p.MinWeight, p.MaxWeight)
	}
	return nil
}

// feasible returns the range a single weight can take when the other n-1
// weights must stay inside the bounds.
func (p Policy) feasible(n int) (float64, float64) {
	others := float64(n - 1)
	lo := math.Max(p.MinWeight, Total-others*p.MaxWeight)
	hi := math.Min(p.MaxWeight, Total-others*p.MinWeight)
	return lo, hi
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for name, w := range s {
		out[name] = w
	}
	return out
}

// Names returns the category names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sum returns the total of all weights.
func (s Set) Sum() float64 {
	names := s.Names()
	values := make([]float64, len(names))
	for i, name := range names {
		values[i] = s[name]
	}
	return floats.Sum(values)
}

// SameCategories reports whether both sets hold exactly the given names.
func (s Set) SameCategories(names []string) bool {
	if len(s) != len(names) {
		return false
	}
	for _, name := range names {
		if _, ok := s[name]; !ok {
			return false
		}
	}
	return true
}

// Validate checks the sum-to-100 and bounds invariants.
func (s Set) Validate(p Policy) error {
	if len(s) == 0 {
		return ErrEmptySet
	}
	if sum := s.Sum(); math.Abs(sum-Total) > Tolerance {
		return fmt.Errorf("weights sum to %.4f, must sum to %.0f", sum, Total)
	}
	for _, name := range s.Names() {
		w := s[name]
		if math.IsNaN(w) || w < p.MinWeight || w > p.MaxWeight {
			return fmt.Errorf("weight %s=%.2f outside [%.2f, %.2f]", name, w, p.MinWeight, p.MaxWeight)
		}
	}
	return nil
}

// Equal splits 100 evenly across the given sectors.
func Equal(sectors []string) Set {
	raw := make(map[string]float64, len(sectors))
	for _, name := range sectors {
		raw[name] = 1
	}
	s, err := Normalize(raw)
	if err != nil {
		return Set{}
	}
	return s
}

// Normalize scales non-negative values into percentages that sum to 100,
// rounded to two decimals.
func Normalize(raw map[string]float64) (Set, error) {
	if len(raw) == 0 {
		return nil, ErrEmptySet
	}
	var total float64
	for name, v := range raw {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid value for %s: %v", name, v)
		}
		total += v
	}
	if total == 0 {
		return nil, ErrZeroTotal
	}

	out := make(Set, len(raw))
	for name, v := range raw {
		out[name] = v * Total / total
	}
	settle(out, byWeightDesc(out, out.Names()), DefaultPolicy())
	return out, nil
}

// FromMarketCaps weights sectors by market capitalisation. Sectors missing
// from caps get zero weight; with no usable caps the split is equal.
func FromMarketCaps(caps map[string]float64, sectors []string) Set {
	raw := make(map[string]float64, len(sectors))
	for _, name := range sectors {
		v := caps[name]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		raw[name] = v
	}
	s, err := Normalize(raw)
	if err != nil {
		return Equal(sectors)
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// byWeightDesc orders names by weight, largest first, ties by name.
func byWeightDesc(s Set, names []string) []string {
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		if s[out[i]] != s[out[j]] {
			return s[out[i]] > s[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// settle rounds every weight to two decimals and hands the rounding residual
// to the categories in order, keeping each inside the policy bounds.
func settle(s Set, order []string, p Policy) {
	for name, w := range s {
		s[name] = round2(w)
	}
	residual := round2(Total - s.Sum())
	for _, name := range order {
		if residual == 0 {
			return
		}
		adjusted := round2(clamp(s[name]+residual, p.MinWeight, p.MaxWeight))
		residual = round2(residual - (adjusted - s[name]))
		s[name] = adjusted
	}
}

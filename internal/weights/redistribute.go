package weights

import (
	"fmt"
	"math"
)

// Redistribute pins category to the requested value and rescales every other
// category proportionally so the set sums to 100 again.
//
// A nil, NaN or infinite request is treated as "no change". The requested
// value is clamped into the range the policy allows for this set size.
// Others keep their relative share of the weight above MinWeight; when none
// of them holds anything above the floor the remainder is split equally.
// Rounding residue goes to the largest other category.
func Redistribute(current Set, category string, requested *float64, p Policy) (Set, error) {
	next := current.Clone()
	old, ok := current[category]
	if !ok {
		return next, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if requested == nil || math.IsNaN(*requested) || math.IsInf(*requested, 0) {
		return next, nil
	}
	if err := p.Check(len(current)); err != nil {
		return next, err
	}

	lo, hi := p.feasible(len(current))
	value := clamp(round2(*requested), lo, hi)
	if math.Abs(value-old) < 1e-9 {
		return next, nil
	}

	next[category] = value
	others := make([]string, 0, len(current)-1)
	for _, name := range current.Names() {
		if name != category {
			others = append(others, name)
		}
	}

	spread(next, current, others, Total-value, p)
	order := append(byWeightDesc(next, others), category)
	settle(next, order, p)
	return next, nil
}

// spread hands remaining out across others in proportion to their previous
// weight above the floor. Categories that would pass MaxWeight are capped and
// the rest is spread again over the ones still free.
func spread(next, previous Set, others []string, remaining float64, p Policy) {
	free := others
	for len(free) > 0 {
		pool := remaining - p.MinWeight*float64(len(free))

		var excess float64
		for _, name := range free {
			excess += math.Max(0, previous[name]-p.MinWeight)
		}

		kept := free[:0:0]
		for _, name := range free {
			share := 1 / float64(len(free))
			if excess > 0 {
				share = math.Max(0, previous[name]-p.MinWeight) / excess
			}
			w := p.MinWeight + pool*share
			if w > p.MaxWeight {
				next[name] = p.MaxWeight
				remaining -= p.MaxWeight
				continue
			}
			next[name] = w
			kept = append(kept, name)
		}
		if len(kept) == len(free) {
			return
		}
		free = kept
	}
}

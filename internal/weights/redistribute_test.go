package weights

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }

var techSectors = []string{
	"AdTech", "Cloud Infrastructure", "Fintech", "eCommerce",
	"Consumer Internet", "IT Services / Legacy Tech", "Hardware / Devices",
	"Cybersecurity", "Dev Tools / Analytics", "AI Infrastructure",
	"Semiconductors", "Vertical SaaS", "Enterprise SaaS", "SMB SaaS",
}

func assertTwoDecimals(t *testing.T, s Set) {
	t.Helper()
	for name, w := range s {
		assert.InDelta(t, math.Round(w*100), w*100, 1e-6, "%s=%v is not rounded to 2 decimals", name, w)
	}
}

func TestRedistributeScaleOthers(t *testing.T) {
	current := Set{"A": 40, "B": 30, "C": 30}

	got, err := Redistribute(current, "A", float64Ptr(60), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 60.0, got["A"])
	assert.InDelta(t, 20.0, got["B"], 1e-9)
	assert.InDelta(t, 20.0, got["C"], 1e-9)
	assert.InDelta(t, 100.0, got.Sum(), 1e-9)
	assert.Equal(t, 40.0, current["A"], "input must not be mutated")
}

func TestRedistributePinToHundred(t *testing.T) {
	current := Set{"A": 40, "B": 30, "C": 30}

	got, err := Redistribute(current, "A", float64Ptr(100), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, Set{"A": 100, "B": 0, "C": 0}, got)
}

func TestRedistributeNoOps(t *testing.T) {
	current := Set{"A": 40, "B": 30, "C": 30}

	tests := []struct {
		name      string
		requested *float64
	}{
		{"nil", nil},
		{"nan", float64Ptr(math.NaN())},
		{"inf", float64Ptr(math.Inf(1))},
		{"current value", float64Ptr(40)},
		{"current value after rounding", float64Ptr(40.001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Redistribute(current, "A", tt.requested, DefaultPolicy())
			require.NoError(t, err)
			assert.Equal(t, current, got)
		})
	}
}

func TestRedistributeUnknownCategory(t *testing.T) {
	current := Set{"A": 40, "B": 30, "C": 30}

	got, err := Redistribute(current, "NotARealCategory", float64Ptr(50), DefaultPolicy())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCategory))
	assert.Equal(t, current, got)
}

func TestRedistributeClampsRequest(t *testing.T) {
	current := Set{"A": 40, "B": 30, "C": 30}

	high, err := Redistribute(current, "B", float64Ptr(250), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 100.0, high["B"])

	low, err := Redistribute(current, "B", float64Ptr(-5), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 0.0, low["B"])
	assert.InDelta(t, 57.14, low["A"], 0.011)
	assert.InDelta(t, 42.86, low["C"], 0.011)
	assert.InDelta(t, 100.0, low.Sum(), 1e-9)
}

func TestRedistributeAllOthersZero(t *testing.T) {
	current := Set{"A": 100, "B": 0, "C": 0}

	got, err := Redistribute(current, "A", float64Ptr(40), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 40.0, got["A"])
	assert.InDelta(t, 30.0, got["B"], 1e-9)
	assert.InDelta(t, 30.0, got["C"], 1e-9)
}

func TestRedistributeMinWeightPolicy(t *testing.T) {
	p := Policy{MinWeight: 1, MaxWeight: 100}
	current := Set{"A": 40, "B": 30, "C": 30}

	got, err := Redistribute(current, "A", float64Ptr(100), p)
	require.NoError(t, err)

	assert.Equal(t, 98.0, got["A"])
	assert.Equal(t, 1.0, got["B"])
	assert.Equal(t, 1.0, got["C"])
	require.NoError(t, got.Validate(p))
}

func TestRedistributeCapsAtMaxWeight(t *testing.T) {
	p := Policy{MinWeight: 0, MaxWeight: 50}
	current := Set{"A": 50, "B": 40, "C": 10}

	got, err := Redistribute(current, "A", float64Ptr(10), p)
	require.NoError(t, err)

	assert.Equal(t, 10.0, got["A"])
	assert.Equal(t, 50.0, got["B"])
	assert.InDelta(t, 40.0, got["C"], 1e-9)
	require.NoError(t, got.Validate(p))
}

func TestRedistributeRoundingResidual(t *testing.T) {
	current := Equal([]string{"A", "B", "C"})

	got, err := Redistribute(current, "A", float64Ptr(33.3), DefaultPolicy())
	require.NoError(t, err)

	assertTwoDecimals(t, got)
	assert.InDelta(t, 100.0, got.Sum(), 1e-9)
	assert.Equal(t, 33.3, got["A"])
}

func TestRedistributeInfeasiblePolicy(t *testing.T) {
	current := Set{"A": 40, "B": 30, "C": 30}

	_, err := Redistribute(current, "A", float64Ptr(50), Policy{MinWeight: 40, MaxWeight: 100})
	assert.True(t, errors.Is(err, ErrInfeasiblePolicy))
}

func TestRedistributeInvariantsHoldOverRandomSequences(t *testing.T) {
	policies := map[string]Policy{
		"zero floor": DefaultPolicy(),
		"one floor":  {MinWeight: 1, MaxWeight: 100},
		"capped":     {MinWeight: 0, MaxWeight: 30},
	}

	for name, p := range policies {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			current := Equal(techSectors)
			require.NoError(t, current.Validate(p))

			for i := 0; i < 500; i++ {
				sector := techSectors[rng.Intn(len(techSectors))]
				requested := rng.Float64()*140 - 20

				next, err := Redistribute(current, sector, &requested, p)
				require.NoError(t, err)
				require.NoError(t, next.Validate(p), "step %d: %s -> %.2f", i, sector, requested)
				require.Len(t, next, len(techSectors))
				assertTwoDecimals(t, next)
				current = next
			}
		})
	}
}

func TestEqual(t *testing.T) {
	s := Equal(techSectors)

	require.Len(t, s, len(techSectors))
	assert.InDelta(t, 100.0, s.Sum(), 1e-9)
	assertTwoDecimals(t, s)
	for _, w := range s {
		assert.InDelta(t, 100.0/float64(len(techSectors)), w, 0.05)
	}
}

func TestNormalize(t *testing.T) {
	s, err := Normalize(map[string]float64{"A": 1, "B": 1, "C": 2})
	require.NoError(t, err)
	assert.Equal(t, Set{"A": 25, "B": 25, "C": 50}, s)

	_, err = Normalize(map[string]float64{"A": 0, "B": 0})
	assert.True(t, errors.Is(err, ErrZeroTotal))

	_, err = Normalize(map[string]float64{"A": -1, "B": 2})
	assert.Error(t, err)

	_, err = Normalize(nil)
	assert.True(t, errors.Is(err, ErrEmptySet))
}

func TestFromMarketCaps(t *testing.T) {
	caps := map[string]float64{
		"AdTech":  2.5e12,
		"Fintech": 1.5e12,
		"Unknown": 9e12,
	}

	s := FromMarketCaps(caps, []string{"AdTech", "Fintech", "Gaming"})
	assert.Equal(t, Set{"AdTech": 62.5, "Fintech": 37.5, "Gaming": 0}, s)

	fallback := FromMarketCaps(nil, []string{"A", "B", "C", "D"})
	assert.Equal(t, Set{"A": 25, "B": 25, "C": 25, "D": 25}, fallback)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Set{"A": 60, "B": 40}.Validate(DefaultPolicy()))
	assert.Error(t, Set{"A": 60, "B": 30}.Validate(DefaultPolicy()))
	assert.Error(t, Set{"A": 101, "B": -1}.Validate(DefaultPolicy()))
	assert.Error(t, Set{"A": 99.5, "B": 0.5}.Validate(Policy{MinWeight: 1, MaxWeight: 100}))
	assert.True(t, errors.Is(Set{}.Validate(DefaultPolicy()), ErrEmptySet))
}

func TestPolicyCheck(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Check(14))
	assert.NoError(t, Policy{MinWeight: 1, MaxWeight: 100}.Check(14))
	assert.Error(t, Policy{MinWeight: 10, MaxWeight: 100}.Check(14))
	assert.Error(t, Policy{MinWeight: 0, MaxWeight: 5}.Check(14))
	assert.Error(t, Policy{MinWeight: 5, MaxWeight: 1}.Check(3))
	assert.Error(t, DefaultPolicy().Check(0))
}

package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateConstantSeries(t *testing.T) {
	s, err := Calculate([]uint64{100, 100, 100, 100})
	require.NoError(t, err)
	require.Equal(t, 100.0, s.Avg)
	require.Equal(t, 0.0, s.Stdev)
	require.Equal(t, uint64(100), s.Min)
	require.Equal(t, uint64(100), s.Max)
	require.Equal(t, uint64(4), s.Count)
}

func TestCalculateKnownValues(t *testing.T) {
	s, err := Calculate([]uint64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)
	require.Equal(t, 5.0, s.Avg)
	// sum of squared deviations is 32, n-1 = 7
	require.InDelta(t, 2.138089935, s.Stdev, 1e-9)
	require.Equal(t, uint64(2), s.Min)
	require.Equal(t, uint64(9), s.Max)
}

func TestCalculateLargeValuesDoNotLeakIntoStdev(t *testing.T) {
	s, err := Calculate([]uint64{1_000_000, 1_000_000, 1_000_000})
	require.NoError(t, err)
	require.Equal(t, 0.0, s.Stdev)
}

func TestCalculateSingleValue(t *testing.T) {
	s, err := Calculate([]uint64{42})
	require.NoError(t, err)
	require.Equal(t, 42.0, s.Avg)
	require.Equal(t, 0.0, s.Stdev)
}

func TestCalculateEmpty(t *testing.T) {
	_, err := Calculate(nil)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestCalculateBounds(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := 1 + r.Intn(50)
		vals := make([]uint64, n)
		for j := range vals {
			vals[j] = uint64(r.Intn(5000))
		}
		s, err := Calculate(vals)
		require.NoError(t, err)
		require.LessOrEqual(t, float64(s.Min), s.Avg)
		require.LessOrEqual(t, s.Avg, float64(s.Max))
		require.GreaterOrEqual(t, s.Stdev, 0.0)
	}
}

func TestAchievedFrequency(t *testing.T) {
	require.InDelta(t, 1000.0, AchievedFrequency(10000, 10000, 1000), 1e-9)
	// 16 samples per 2 ms burst cycle
	require.InDelta(t, 8000.0, AchievedFrequency(16*625, 625, 2000), 1e-9)
	require.InDelta(t, 100.0, AchievedFrequency(1000, 10000, 1000), 1e-9)
	require.Equal(t, 0.0, AchievedFrequency(10, 0, 1000))
	require.Equal(t, 0.0, AchievedFrequency(10, 10, 0))
}

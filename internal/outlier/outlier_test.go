package outlier

import (
	"math/rand"
	"testing"

	"github.com/relabs-tech/imu_tester/internal/imu"
	"github.com/stretchr/testify/require"
)

func steady(n int) []imu.Sample {
	out := make([]imu.Sample, n)
	for i := range out {
		out[i] = imu.Sample{
			Timestamp:    uint64(i) * 1000,
			Temperature:  25,
			AccelRaw:     [3]int16{0, 0, 8192},
			AccelScaling: 1.0 / 8192,
			GyroRaw:      [3]int16{10, -10, 0},
			GyroScaling:  1.0 / 65.5,
		}
	}
	return out
}

func TestCountSteadySignal(t *testing.T) {
	require.Equal(t, 0, Count(steady(100), DefaultThreshold))
}

func TestCountSingleCorruptedSample(t *testing.T) {
	s := steady(10)
	// a corrupted gyro byte: ~500 dps jump, then back again
	s[5].GyroRaw[1] = 32000
	require.Equal(t, 2, Count(s, DefaultThreshold))
	require.Equal(t, []int{5, 6}, Indices(s, DefaultThreshold))
	require.Equal(t, int16(32000), s[5].GyroRaw[1])
}

func TestCountTemperatureJump(t *testing.T) {
	s := steady(3)
	s[2].Temperature = 31
	require.Equal(t, 1, Count(s, DefaultThreshold))
	s[2].Temperature = 30
	require.Equal(t, 0, Count(s, DefaultThreshold))
}

func TestCountEmptyAndSingle(t *testing.T) {
	require.Equal(t, 0, Count(nil, DefaultThreshold))
	require.Equal(t, 0, Count(steady(1), DefaultThreshold))
}

func TestCountNonIncreasingInThreshold(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	s := make([]imu.Sample, 500)
	for i := range s {
		s[i] = imu.Sample{
			Temperature:  float32(20 + r.Intn(15)),
			AccelRaw:     [3]int16{int16(r.Intn(65535) - 32768), 0, 0},
			AccelScaling: 1.0 / 2048,
			GyroRaw:      [3]int16{0, int16(r.Intn(2000) - 1000), 0},
			GyroScaling:  1.0 / 65.5,
		}
	}
	prev := Count(s, 0)
	for th := 0.5; th < 40; th += 0.5 {
		n := Count(s, th)
		require.LessOrEqual(t, n, prev, "threshold %v", th)
		prev = n
	}
}

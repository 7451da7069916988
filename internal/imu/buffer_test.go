package imu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fill(b *Buffer, n int) {
	for i := 0; i < n; i++ {
		b.Append(Sample{Timestamp: uint64(i)})
	}
}

func TestBufferStopsAtCapacity(t *testing.T) {
	b := NewBuffer(3)
	require.True(t, b.Append(Sample{Timestamp: 1}))
	require.True(t, b.Append(Sample{Timestamp: 2}))
	require.True(t, b.Append(Sample{Timestamp: 3}))
	require.True(t, b.Full())
	require.False(t, b.Append(Sample{Timestamp: 4}))
	require.Equal(t, 3, b.Len())
	require.Equal(t, uint64(3), b.Samples()[2].Timestamp)
}

func TestBatchTruncatesAtQuota(t *testing.T) {
	b := NewBuffer(MaxSamples)
	fill(b, 9990)

	burst := make([]Sample, 20)
	for i := range burst {
		burst[i].Timestamp = uint64(9990 + i)
	}
	require.Equal(t, 10, b.AppendBatch(burst))
	require.Equal(t, MaxSamples, b.Len())
	require.Zero(t, b.Remaining())
	require.Equal(t, uint64(9999), b.Samples()[MaxSamples-1].Timestamp)

	require.Zero(t, b.AppendBatch(burst))
	require.Equal(t, MaxSamples, b.Cap())
}

func TestSamplesViewCannotGrowBuffer(t *testing.T) {
	b := NewBuffer(4)
	fill(b, 2)
	view := b.Samples()
	view = append(view, Sample{Timestamp: 99})
	require.Len(t, view, 3)
	require.Equal(t, 2, b.Len())
	require.True(t, b.Append(Sample{Timestamp: 7}))
	require.Equal(t, uint64(7), b.Samples()[2].Timestamp)
}

func TestZeroCapacity(t *testing.T) {
	b := NewBuffer(-1)
	require.True(t, b.Full())
	require.False(t, b.Append(Sample{}))
	require.Zero(t, b.AppendBatch([]Sample{{}, {}}))
}

func TestTimingSeriesParallel(t *testing.T) {
	ts := NewTimingSeries(2)
	require.True(t, ts.Record(1, 2, 3))
	require.True(t, ts.Record(4, 5, 6))
	require.False(t, ts.Record(7, 8, 9))
	require.Equal(t, 2, ts.Len())
	require.Equal(t, []uint64{1, 4}, ts.WakeLatency)
	require.Equal(t, []uint64{2, 5}, ts.IOLatency)
	require.Equal(t, []uint64{3, 6}, ts.Interval)
}

func TestChannelsScaled(t *testing.T) {
	s := Sample{
		Temperature:  25,
		AccelRaw:     [3]int16{16384, 0, -16384},
		AccelScaling: AccelFSR2G.Scaling(),
		GyroRaw:      [3]int16{32767, 0, 0},
		GyroScaling:  GyroFSR250DPS.Scaling(),
	}
	c := s.Channels()
	require.InDelta(t, 25, c[ChanTemp], 1e-9)
	require.InDelta(t, 1, c[ChanAccelX], 1e-6)
	require.InDelta(t, -1, c[ChanAccelZ], 1e-6)
	require.InDelta(t, 250, c[ChanGyroX], 0.01)
}

func TestRateLookups(t *testing.T) {
	r, err := GyroRateFromHz(8000)
	require.NoError(t, err)
	require.Equal(t, GyroRate8000Hz, r)
	_, err = GyroRateFromHz(333)
	require.Error(t, err)

	c, err := CompassRateFromHz(100)
	require.NoError(t, err)
	require.Equal(t, 100, c.Hz())

	l, err := LPFFromHz(41)
	require.NoError(t, err)
	require.Equal(t, LPF41Hz, l)

	cfg := Config{FIFOMask: FIFOTemp | FIFOGyro | FIFOAccel}
	require.Equal(t, 14, cfg.FIFOSampleBytes())
}

// Package outlier flags physically implausible jumps between consecutive
// samples. High SPI clock rates occasionally corrupt bytes on the bus, which
// shows up as a single sample far away from its neighbours.
package outlier

import (
	"math"

	"github.com/relabs-tech/imu_tester/internal/imu"
)

// DefaultThreshold is the largest accepted change between two consecutive
// samples, in physical units (°C, g or °/s depending on the channel).
const DefaultThreshold = 5.0

// IsOutlier reports whether cur differs from prev by more than threshold on
// any channel.
func IsOutlier(prev, cur *imu.Sample, threshold float64) bool {
	p := prev.Channels()
	c := cur.Channels()
	for i := range c {
		if math.Abs(c[i]-p[i]) > threshold {
			return true
		}
	}
	return false
}

// Count returns how many samples differ from their predecessor by more than
// threshold. The first sample is never an outlier. Samples are not modified.
func Count(samples []imu.Sample, threshold float64) int {
	n := 0
	for i := 1; i < len(samples); i++ {
		if IsOutlier(&samples[i-1], &samples[i], threshold) {
			n++
		}
	}
	return n
}

// Indices returns the positions Count would count.
func Indices(samples []imu.Sample, threshold float64) []int {
	var idx []int
	for i := 1; i < len(samples); i++ {
		if IsOutlier(&samples[i-1], &samples[i], threshold) {
			idx = append(idx, i)
		}
	}
	return idx
}

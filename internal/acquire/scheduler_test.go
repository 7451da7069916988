package acquire_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_tester/internal/acquire"
	"github.com/relabs-tech/imu_tester/internal/imu"
	"github.com/relabs-tech/imu_tester/internal/rate"
	"github.com/relabs-tech/imu_tester/internal/sim"
)

func config1kHz() imu.Config {
	return imu.Config{
		GyroRate:       imu.GyroRate1000Hz,
		CompassRate:    imu.CompassRate100Hz,
		GyroLPF:        imu.LPF41Hz,
		AccelLPF:       imu.LPF41Hz,
		GyroFSR:        imu.GyroFSR250DPS,
		AccelFSR:       imu.AccelFSR2G,
		CompassEnabled: true,
	}
}

func config8kHzFIFO() imu.Config {
	return imu.Config{
		GyroRate:    imu.GyroRate8000Hz,
		GyroLPF:     imu.LPF250Hz,
		AccelLPF:    imu.LPF41Hz,
		GyroFSR:     imu.GyroFSR250DPS,
		AccelFSR:    imu.AccelFSR2G,
		FIFOEnabled: true,
		FIFOMask:    imu.FIFOTemp | imu.FIFOGyro | imu.FIFOAccel,
	}
}

func interruptScenario() acquire.Scenario {
	return acquire.Scenario{Name: "dri", Mode: acquire.ModeInterrupt, Config: config1kHz(), InterruptLine: 6}
}

func pollScenario() acquire.Scenario {
	return acquire.Scenario{Name: "poll", Mode: acquire.ModePoll, Config: config1kHz()}
}

func fifoScenario() acquire.Scenario {
	return acquire.Scenario{Name: "fifo", Mode: acquire.ModeFIFO, Config: config8kHzFIFO()}
}

func requireNonDecreasing(t *testing.T, samples []imu.Sample) {
	t.Helper()
	for i := 1; i < len(samples); i++ {
		require.GreaterOrEqual(t, samples[i].Timestamp, samples[i-1].Timestamp, "sample %d", i)
	}
}

func TestInterruptIdeal(t *testing.T) {
	w := sim.NewWorld(sim.Options{})
	res := w.Scheduler().Run(interruptScenario())

	require.Equal(t, rate.Pass, res.Verdict, res.Message)
	require.Equal(t, acquire.StatePassed, res.State)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, imu.MaxSamples, res.Samples)
	require.Len(t, res.Data, imu.MaxSamples)
	require.Equal(t, uint64(imu.MaxSamples), res.Interrupts)
	require.Equal(t, uint64(1000), res.MagSamples)
	require.Zero(t, res.Outliers)
	requireNonDecreasing(t, res.Data)

	gyro, ok := res.Channel("gyro")
	require.True(t, ok)
	require.InDelta(t, 1000, gyro.AchievedHz, 1e-6)
	mag, ok := res.Channel("mag")
	require.True(t, ok)
	require.InDelta(t, 100, mag.AchievedHz, 1e-6)

	require.NotNil(t, res.WakeLatency)
	require.Equal(t, float64(0), res.WakeLatency.Avg)
	require.Equal(t, 1, w.Device().Inits)
	require.Equal(t, 1, w.Device().Closes)
}

func TestPollRecordsLatencies(t *testing.T) {
	w := sim.NewWorld(sim.Options{IOCost: 100, WakeDelay: 20})
	res := w.Scheduler().Run(pollScenario())

	require.Equal(t, rate.Pass, res.Verdict, res.Message)
	require.Equal(t, imu.MaxSamples, res.Samples)
	require.Zero(t, res.Interrupts)
	require.Equal(t, res.Timing.Len(), res.Samples)

	require.Equal(t, float64(20), res.WakeLatency.Avg)
	require.Equal(t, uint64(20), res.WakeLatency.Max)
	require.Equal(t, float64(100), res.IOLatency.Avg)
	require.Zero(t, res.IOLatency.Stdev)
	require.InDelta(t, 1000, res.Interval.Avg, 0.1)
	requireNonDecreasing(t, res.Data)
}

func TestSlowReadsFailRate(t *testing.T) {
	w := sim.NewWorld(sim.Options{IOCost: 1200})
	sc := pollScenario()
	sc.Quota = 1000
	res := w.Scheduler().Run(sc)

	require.Equal(t, rate.Fail, res.Verdict)
	require.Equal(t, 1000, res.Samples)
	require.Contains(t, res.Message, acquire.ErrRateTolerance.Error())
	gyro, _ := res.Channel("gyro")
	require.False(t, gyro.Pass)
	require.InDelta(t, 1e6/1200.0, gyro.AchievedHz, 2)
}

func TestFIFOBatches(t *testing.T) {
	w := sim.NewWorld(sim.Options{FIFOSampleCost: 2})
	res := w.Scheduler().Run(fifoScenario())

	require.Equal(t, rate.Pass, res.Verdict, res.Message)
	require.Equal(t, imu.MaxSamples, res.Samples)
	require.Equal(t, uint64(imu.MaxSamples/acquire.DefaultFIFOBatch), res.Cycles)
	require.Equal(t, int(res.Cycles), res.Timing.Len())
	_, hasMag := res.Channel("mag")
	require.False(t, hasMag)

	gyro, _ := res.Channel("gyro")
	require.InDelta(t, 8000, gyro.AchievedHz, 1)
	require.Equal(t, float64(32), res.IOLatency.Avg)
	requireNonDecreasing(t, res.Data)
	require.Equal(t, 1, w.Device().FIFOStops)
	require.Equal(t, 1, w.Device().Closes)
}

func TestFIFOTruncatesAtQuota(t *testing.T) {
	w := sim.NewWorld(sim.Options{})
	sc := fifoScenario()
	sc.Quota = 100
	res := w.Scheduler().Run(sc)

	require.Equal(t, 100, res.Samples)
	require.Len(t, res.Data, 100)
	require.Equal(t, uint64(7), res.Cycles)
}

func TestFIFOBurstFailureKeepsSamples(t *testing.T) {
	w := sim.NewWorld(sim.Options{FIFOFailAtSample: 160})
	res := w.Scheduler().Run(fifoScenario())

	require.Equal(t, rate.Fail, res.Verdict)
	require.Equal(t, acquire.StateFailed, res.State)
	require.Equal(t, 160, res.Samples)
	require.Contains(t, res.Message, acquire.ErrFIFORead.Error())
	require.Empty(t, res.Channels)
	require.Equal(t, 1, w.Device().FIFOStops)
	require.Equal(t, 1, w.Device().Closes)
}

func TestFIFOLongBurstPeriod(t *testing.T) {
	// 150 samples at 100 Hz is a 1.5 s wake period
	w := sim.NewWorld(sim.Options{FIFOBytes: 4096})
	sc := fifoScenario()
	sc.Config.GyroRate = imu.GyroRate100Hz
	sc.Config.GyroLPF = imu.LPF41Hz
	sc.FIFOBatch = 150
	sc.Quota = 1500

	require.Equal(t, 3*time.Second, sc.WithDefaults().WaitTimeout)

	res := w.Scheduler().Run(sc)
	require.Equal(t, rate.Pass, res.Verdict, res.Message)
	require.Equal(t, 1500, res.Samples)
	require.Equal(t, uint64(10), res.Cycles)
}

func TestFIFOBatchLargerThanFIFO(t *testing.T) {
	// 512 bytes hold 36 records of 14 bytes
	w := sim.NewWorld(sim.Options{})
	sc := fifoScenario()
	sc.FIFOBatch = 64
	res := w.Scheduler().Run(sc)

	require.Equal(t, rate.Fail, res.Verdict)
	require.Contains(t, res.Message, acquire.ErrFIFOBatch.Error())
	require.Zero(t, res.Samples)
	require.Zero(t, w.Device().FIFOStops)
	require.Equal(t, 1, w.Device().Closes)
}

// sparseFIFO reports an empty FIFO on all but every 100th burst.
type sparseFIFO struct {
	*sim.Device
	bursts int
}

func (d *sparseFIFO) ReadFIFO(dst []imu.Sample) (int, error) {
	d.bursts++
	if d.bursts%100 != 0 {
		return 0, nil
	}
	return d.Device.ReadFIFO(dst)
}

func TestFIFOCyclesMatchTiming(t *testing.T) {
	w := sim.NewWorld(sim.Options{})
	dev := &sparseFIFO{Device: w.Device()}
	s := &acquire.Scheduler{Device: dev, Clock: w, NewSignals: w.NewSignals}
	sc := fifoScenario()
	sc.Quota = 50
	res := s.Run(sc)

	require.Equal(t, 50, res.Samples)
	require.Greater(t, dev.bursts, 50)
	require.Equal(t, uint64(50), res.Cycles)
	require.Equal(t, 50, res.Timing.Len())
}

func TestNoFIFOSkips(t *testing.T) {
	w := sim.NewWorld(sim.Options{NoFIFO: true})
	res := w.Scheduler().Run(fifoScenario())

	require.Equal(t, rate.Skip, res.Verdict)
	require.Equal(t, acquire.StateSkipped, res.State)
	require.Zero(t, res.Samples)
	require.Zero(t, w.Device().FIFOStops)
	require.Equal(t, 1, w.Device().Closes)
}

func TestFIFOStartFailure(t *testing.T) {
	w := sim.NewWorld(sim.Options{StartFIFOErr: errors.New("reset timeout")})
	res := w.Scheduler().Run(fifoScenario())

	require.Equal(t, rate.Fail, res.Verdict)
	require.Contains(t, res.Message, "reset timeout")
	require.Zero(t, res.Samples)
}

func TestSilentInterruptStalls(t *testing.T) {
	w := sim.NewWorld(sim.Options{NoInterrupts: true})
	res := w.Scheduler().Run(interruptScenario())

	require.Equal(t, rate.Fail, res.Verdict)
	require.Zero(t, res.Samples)
	require.Zero(t, res.Interrupts)
	require.Contains(t, res.Message, acquire.ErrStalled.Error())
	require.Equal(t, 1, w.Device().Closes)
}

func TestInitFailure(t *testing.T) {
	w := sim.NewWorld(sim.Options{InitErr: errors.New("spi open failed")})
	res := w.Scheduler().Run(interruptScenario())

	require.Equal(t, rate.Fail, res.Verdict)
	require.Contains(t, res.Message, acquire.ErrInit.Error())
	require.Contains(t, res.Message, "spi open failed")
	require.Equal(t, 1, w.Device().Closes)
}

func TestRegistrationFailure(t *testing.T) {
	w := sim.NewWorld(sim.Options{RegisterErr: errors.New("line busy")})
	res := w.Scheduler().Run(interruptScenario())

	require.Equal(t, rate.Fail, res.Verdict)
	require.Contains(t, res.Message, acquire.ErrRegistration.Error())
	require.Zero(t, res.Samples)
}

func TestReadErrorsAreCounted(t *testing.T) {
	w := sim.NewWorld(sim.Options{ReadFailEvery: 100})
	res := w.Scheduler().Run(interruptScenario())

	require.Equal(t, imu.MaxSamples, res.Samples)
	require.Equal(t, uint64(101), res.ReadErrors)
	require.Equal(t, rate.Pass, res.Verdict, res.Message)
	require.Greater(t, res.Interval.Avg, 1000.0)
}

func TestSpuriousWakesIgnored(t *testing.T) {
	w := sim.NewWorld(sim.Options{SpuriousEvery: 10})
	res := w.Scheduler().Run(interruptScenario())

	require.Equal(t, rate.Pass, res.Verdict, res.Message)
	require.Equal(t, imu.MaxSamples, res.Samples)
	require.Equal(t, uint64(1111), res.SpuriousWakes)
}

func TestOutliersReported(t *testing.T) {
	w := sim.NewWorld(sim.Options{CorruptEvery: 1000})
	res := w.Scheduler().Run(interruptScenario())

	// each corrupted sample differs from both neighbours; the last has none after it
	require.Equal(t, 19, res.Outliers)
	require.Equal(t, rate.Pass, res.Verdict)
}

func TestRunsAreIndependent(t *testing.T) {
	w := sim.NewWorld(sim.Options{})
	s := w.Scheduler()

	first := s.Run(pollScenario())
	second := s.Run(interruptScenario())

	require.Equal(t, rate.Pass, first.Verdict, first.Message)
	require.Equal(t, rate.Pass, second.Verdict, second.Message)
	require.NotEqual(t, first.RunID, second.RunID)
	require.Zero(t, second.SpuriousWakes)
	require.Equal(t, 2, w.Device().Closes)
}

func TestInitScenarios(t *testing.T) {
	w := sim.NewWorld(sim.Options{})
	res := w.Scheduler().Run(acquire.Scenario{Name: "init", Mode: acquire.ModeInit, Config: config1kHz()})
	require.Equal(t, rate.Pass, res.Verdict)
	require.Equal(t, 1, res.InitRuns)

	w = sim.NewWorld(sim.Options{InitFailEvery: 10})
	res = w.Scheduler().Run(acquire.Scenario{Name: "init_multi", Mode: acquire.ModeInitMulti, Config: config1kHz(), InitRuns: 30})
	require.Equal(t, rate.Fail, res.Verdict)
	require.Equal(t, 30, res.InitRuns)
	require.Equal(t, 3, res.InitFailures)
	require.Equal(t, 30, w.Device().Closes)
}

type panickyDevice struct {
	*sim.Device
}

func (panickyDevice) GetData() (imu.Sample, error) {
	panic("bus exploded")
}

func TestWorkerPanicFails(t *testing.T) {
	w := sim.NewWorld(sim.Options{})
	s := &acquire.Scheduler{Device: panickyDevice{w.Device()}, Clock: w, NewSignals: w.NewSignals}
	res := s.Run(interruptScenario())

	require.Equal(t, rate.Fail, res.Verdict)
	require.Contains(t, res.Message, acquire.ErrWorkerExit.Error())
	require.Equal(t, 1, w.Device().Closes)
}

func TestModeText(t *testing.T) {
	for _, m := range []acquire.Mode{acquire.ModeInterrupt, acquire.ModePoll, acquire.ModeFIFO, acquire.ModeInit, acquire.ModeInitMulti} {
		got, err := acquire.ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
	_, err := acquire.ParseMode("burst")
	require.Error(t, err)
}

func TestWakePeriod(t *testing.T) {
	sc := fifoScenario().WithDefaults()
	require.Equal(t, int64(2000), sc.WakePeriod().Microseconds())
	sc = pollScenario().WithDefaults()
	require.Equal(t, int64(1000), sc.WakePeriod().Microseconds())
	require.Equal(t, acquire.DefaultWaitTimeout, sc.WaitTimeout)
}

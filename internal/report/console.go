// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/relabs-tech/imu_tester/internal/acquire"
	"github.com/relabs-tech/imu_tester/internal/rate"
	"github.com/relabs-tech/imu_tester/internal/stats"
)

// PrintResult writes a block describing one run.
func PrintResult(w io.Writer, res acquire.RunResult) {
	fmt.Fprintf(w, "[%s] %-12s %-10s samples=%d mag=%d outliers=%d read_errors=%d spurious=%d\n",
		res.Verdict, res.Scenario, res.Mode, res.Samples, res.MagSamples,
		res.Outliers, res.ReadErrors, res.SpuriousWakes)

	switch res.Mode {
	case acquire.ModeInterrupt:
		fmt.Fprintf(w, "    interrupts=%d\n", res.Interrupts)
	case acquire.ModeFIFO:
		fmt.Fprintf(w, "    cycles=%d\n", res.Cycles)
	case acquire.ModeInit, acquire.ModeInitMulti:
		fmt.Fprintf(w, "    init runs=%d failures=%d\n", res.InitRuns, res.InitFailures)
	}

	printSummary(w, "wake", res.WakeLatency)
	printSummary(w, "io", res.IOLatency)
	printSummary(w, "interval", res.Interval)

	for _, c := range res.Channels {
		mark := "ok"
		if !c.Pass {
			mark = "OUT"
		}
		fmt.Fprintf(w, "    %-8s target=%8.2f Hz achieved=%8.2f Hz ±%.2f %s\n",
			c.Name, c.TargetHz, c.AchievedHz, c.Error(), mark)
	}
	if res.Message != "" {
		fmt.Fprintf(w, "    %s\n", res.Message)
	}
}

func printSummary(w io.Writer, label string, s *stats.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintf(w, "    %-8s avg=%9.2f us stdev=%8.2f min=%6d max=%6d n=%d\n",
		label, s.Avg, s.Stdev, s.Min, s.Max, s.Count)
}

// PrintSuite writes one table row per run followed by the combined verdict,
// which it returns.
func PrintSuite(w io.Writer, results []acquire.RunResult) rate.Verdict {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tMODE\tVERDICT\tSAMPLES\tOUTLIERS\tMESSAGE")

	verdicts := make([]rate.Verdict, 0, len(results))
	for _, res := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			res.Scenario, res.Mode, res.Verdict, res.Samples, res.Outliers, res.Message)
		verdicts = append(verdicts, res.Verdict)
	}
	overall := rate.Combine(verdicts...)
	fmt.Fprintf(tw, "\t\t%s\t\t\t\n", overall)
	tw.Flush()
	return overall
}

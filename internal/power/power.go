// Package power implements the windowed power primitives shared by the metric
// modules: rolling averages, normalized power, best efforts and energy.
package power

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"ridemetrics/internal/samples"
)

// Sample is a power reading at T seconds. Sequences must be sorted by T and
// hold finite power values.
type Sample struct {
	T     float64
	Power float64
}

// FromMetricSamples extracts the samples that carry a power reading.
func FromMetricSamples(in []samples.MetricSample) []Sample {
	out := make([]Sample, 0, len(in))
	for _, s := range in {
		if samples.Valid(s.Power) {
			out = append(out, Sample{T: s.T, Power: *s.Power})
		}
	}
	return out
}

// WindowSamples converts a window length in seconds into a sample count for
// the given rate, never less than one.
func WindowSamples(seconds, rateHz float64) int {
	if rateHz <= 0 {
		rateHz = 1
	}
	n := int(math.Round(seconds * rateHz))
	if n < 1 {
		return 1
	}
	return n
}

// RollingAverages slides a fixed window of windowSize samples over in, one
// sample at a time, and emits the window mean stamped with the T of the
// sample that completed it. It yields len(in)-windowSize+1 values, or none
// when in is shorter than the window.
func RollingAverages(in []Sample, windowSize int) []Sample {
	if windowSize < 1 || len(in) < windowSize {
		return nil
	}

	out := make([]Sample, 0, len(in)-windowSize+1)
	var sum float64
	for i, s := range in {
		sum += s.Power
		if i >= windowSize {
			sum -= in[i-windowSize].Power
		}
		if i >= windowSize-1 {
			out = append(out, Sample{T: s.T, Power: sum / float64(windowSize)})
		}
	}
	return out
}

// NormalizedPower returns the fourth root of the mean fourth power of the
// rolling averages. It returns nil when the window never fills, and 0 when
// the fourth-power mean is not positive.
func NormalizedPower(in []Sample, windowSize int) *float64 {
	rolling := RollingAverages(in, windowSize)
	if len(rolling) == 0 {
		return nil
	}

	var total float64
	for _, r := range rolling {
		total += math.Pow(r.Power, 4)
	}
	mean := total / float64(len(rolling))
	if mean <= 0 {
		zero := 0.0
		return &zero
	}
	np := math.Pow(mean, 0.25)
	return &np
}

// BestRollingAverage returns the highest rolling average, or nil when in is
// shorter than the window.
func BestRollingAverage(in []Sample, windowSize int) *float64 {
	rolling := RollingAverages(in, windowSize)
	if len(rolling) == 0 {
		return nil
	}
	values := make([]float64, len(rolling))
	for i, r := range rolling {
		values[i] = r.Power
	}
	best := floats.Max(values)
	return &best
}

// Mean returns the arithmetic mean power, or nil for no samples.
func Mean(in []Sample) *float64 {
	if len(in) == 0 {
		return nil
	}
	var total float64
	for _, s := range in {
		total += s.Power
	}
	mean := total / float64(len(in))
	return &mean
}

// EnergyJoules integrates power over time, crediting each sample with the gap
// to the next one (see samples.Gaps).
func EnergyJoules(in []Sample, nominal float64) float64 {
	dts := durations(in, nominal)
	var joules float64
	for i, s := range in {
		joules += s.Power * dts[i]
	}
	return joules
}

func durations(in []Sample, nominal float64) []float64 {
	times := make([]float64, len(in))
	for i, s := range in {
		times[i] = s.T
	}
	return samples.Gaps(times, nominal)
}

// Package samples defines the canonical per-second sample shape consumed by
// the metric modules and the helpers that normalize raw streams into it.
package samples

import (
	"math"
	"sort"
	"time"

	"ridemetrics/internal/stats"
)

// MetricSample is one reading taken T seconds after the activity started.
// A nil field means the sensor reported nothing at that instant.
type MetricSample struct {
	T           float64  `json:"t"`
	HeartRate   *float64 `json:"heart_rate,omitempty"`  // bpm
	Cadence     *float64 `json:"cadence,omitempty"`     // rpm
	Power       *float64 `json:"power,omitempty"`       // watts
	Speed       *float64 `json:"speed,omitempty"`       // m/s
	Elevation   *float64 `json:"elevation,omitempty"`   // meters
	Temperature *float64 `json:"temperature,omitempty"` // °C
}

// Activity is the record that owns a sample sequence.
type Activity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Source       string    `json:"source,omitempty"`
	StartTime    time.Time `json:"start_time"`
	DurationSec  float64   `json:"duration_sec"`
	SampleRateHz float64   `json:"sample_rate_hz,omitempty"` // <= 0 means unknown
}

// Float returns a pointer to v, or nil when v is not finite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Valid reports whether p holds a finite reading.
func Valid(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}

// Sanitize returns a copy of in ordered by T, with samples whose timestamp is
// not finite dropped and non-finite readings cleared. Equal timestamps keep
// their input order.
func Sanitize(in []MetricSample) []MetricSample {
	out := make([]MetricSample, 0, len(in))
	for _, s := range in {
		if math.IsNaN(s.T) || math.IsInf(s.T, 0) {
			continue
		}
		s.HeartRate = clean(s.HeartRate)
		s.Cadence = clean(s.Cadence)
		s.Power = clean(s.Power)
		s.Speed = clean(s.Speed)
		s.Elevation = clean(s.Elevation)
		s.Temperature = clean(s.Temperature)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].T < out[j].T
	})
	return out
}

func clean(p *float64) *float64 {
	if !Valid(p) {
		return nil
	}
	v := *p
	return &v
}

// Span returns the time between the first and last sample.
func Span(in []MetricSample) float64 {
	if len(in) < 2 {
		return 0
	}
	return in[len(in)-1].T - in[0].T
}

// Duration returns the activity duration, falling back to the sample span
// when the activity does not declare one.
func Duration(in []MetricSample, activity Activity) float64 {
	if activity.DurationSec > 0 {
		return activity.DurationSec
	}
	return Span(in)
}

// EffectiveSampleRate returns the sampling rate in Hz. A declared positive
// rate wins; otherwise the median positive gap between consecutive samples is
// used, then sample count over duration, then 1 Hz.
func EffectiveSampleRate(in []MetricSample, activity Activity) float64 {
	if activity.SampleRateHz > 0 {
		return activity.SampleRateHz
	}

	gaps := make([]float64, 0, len(in))
	for i := 1; i < len(in); i++ {
		if dt := in[i].T - in[i-1].T; dt > 0 {
			gaps = append(gaps, dt)
		}
	}
	if gap, err := stats.Median(gaps); err == nil {
		return 1 / gap
	}

	if activity.DurationSec > 0 && len(in) > 0 {
		return float64(len(in)) / activity.DurationSec
	}
	return 1
}

// maxGapFactor bounds how long a single sample may be credited for before
// the gap is treated as a pause.
const maxGapFactor = 4

// Durations returns how many seconds each sample represents: the gap to the
// following sample, with the last sample reusing the gap before it. Gaps that
// are non-positive or longer than maxGapFactor nominal intervals are replaced
// by the nominal interval.
func Durations(in []MetricSample, nominal float64) []float64 {
	times := make([]float64, len(in))
	for i, s := range in {
		times[i] = s.T
	}
	return Gaps(times, nominal)
}

// Gaps is Durations over bare timestamps.
func Gaps(times []float64, nominal float64) []float64 {
	if nominal <= 0 {
		nominal = 1
	}
	out := make([]float64, len(times))
	if len(times) == 0 {
		return out
	}
	if len(times) == 1 {
		out[0] = nominal
		return out
	}

	limit := nominal * maxGapFactor
	fix := func(dt float64) float64 {
		if dt <= 0 || dt > limit {
			return nominal
		}
		return dt
	}
	for i := 0; i < len(times)-1; i++ {
		out[i] = fix(times[i+1] - times[i])
	}
	out[len(times)-1] = out[len(times)-2]
	return out
}

// Downsample thins items to at most max elements, spreading picks evenly and
// always keeping the final element.
func Downsample[T any](items []T, max int) []T {
	if max <= 0 || len(items) == 0 {
		return nil
	}
	if len(items) <= max {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	if max == 1 {
		return []T{items[len(items)-1]}
	}

	out := make([]T, max)
	last := len(items) - 1
	for i := 0; i < max; i++ {
		out[i] = items[i*last/(max-1)]
	}
	return out
}

package metrics

import "ridemetrics/internal/samples"

// The late window covers minutes [duration-35, duration-5).
const (
	lateWindowStartBeforeEnd = 35 * 60.0
	lateWindowEndBeforeEnd   = 5 * 60.0
)

var lateKeys = []string{
	"window_start_s", "window_end_s", "window_power_w", "window_hr_bpm",
	"watts_per_bpm", "valid_sample_count", "total_window_sample_count",
}

// ComputeLateAerobicEfficiency measures watts per beat late in the ride,
// leaving out the final cool-down minutes.
func ComputeLateAerobicEfficiency(in []samples.MetricSample, ctx Context) Result {
	in = samples.Sanitize(in)
	summary := nulls(lateKeys...)
	summary["valid_sample_count"] = count(0)
	summary["total_window_sample_count"] = count(0)

	duration := samples.Duration(in, ctx.Activity)
	start := clamp(duration-lateWindowStartBeforeEnd, 0, duration)
	end := clamp(duration-lateWindowEndBeforeEnd, 0, duration)
	if end <= start {
		return Result{Summary: summary}
	}

	// sample times are relative to the first sample when the ride has no
	// declared duration, so the window is too
	offset := 0.0
	if ctx.Activity.DurationSec <= 0 && len(in) > 0 {
		offset = in[0].T
	}

	total := 0
	var watts, hr mean
	for _, s := range in {
		t := s.T - offset
		if t < start || t >= end {
			continue
		}
		total++
		if !samples.Valid(s.Power) || !samples.Valid(s.HeartRate) || *s.HeartRate <= 0 {
			continue
		}
		watts.add(s.Power)
		hr.add(s.HeartRate)
	}

	summary["window_start_s"] = units(start)
	summary["window_end_s"] = units(end)
	summary["total_window_sample_count"] = count(total)
	summary["valid_sample_count"] = count(watts.n)

	p, h := watts.value(), hr.value()
	summary["window_power_w"] = roundPtr(p, precisionUnits)
	summary["window_hr_bpm"] = roundPtr(h, precisionUnits)
	if p != nil && h != nil {
		summary["watts_per_bpm"] = ratio(*p / *h)
	}

	return Result{Summary: summary}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

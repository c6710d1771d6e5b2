// Package aggregate turns per-activity results into a dense daily timeline
// and searches it for the best multi-day training blocks.
package aggregate

import (
	"ridemetrics/internal/metrics"
	"ridemetrics/internal/power"
	"ridemetrics/internal/samples"
)

// ActivityInput is one activity handed to an aggregate analysis. Samples are
// used when present; otherwise Power, a cached normalized_power summary,
// stands in for them. Err marks an activity whose data could not be loaded.
type ActivityInput struct {
	Activity samples.Activity
	Samples  []samples.MetricSample
	Power    metrics.Summary
	Err      error
}

// SkippedActivity records an activity left out of an analysis.
type SkippedActivity struct {
	ActivityID string `json:"activity_id"`
	Reason     string `json:"reason"`
}

const (
	reasonNoData  = "no samples or power summary"
	reasonNoPower = "no power data"
)

func skip(id, reason string) SkippedActivity {
	return SkippedActivity{ActivityID: id, Reason: reason}
}

// powerProfile is what the edges analysis needs from one activity.
type powerProfile struct {
	normalized  *float64
	average     *float64
	best20      *float64
	energyKJ    float64
	durationSec float64
}

// effective is normalized power, or average power when that is unknown.
func (p powerProfile) effective() *float64 {
	if p.normalized != nil && *p.normalized > 0 {
		return p.normalized
	}
	return p.average
}

const (
	npWindowSeconds     = 30.0
	best20WindowSeconds = 20 * 60.0
)

// profileFromSamples derives a power profile from raw samples.
func profileFromSamples(in ActivityInput) (powerProfile, bool) {
	clean := samples.Sanitize(in.Samples)
	ps := power.FromMetricSamples(clean)
	if len(ps) == 0 {
		return powerProfile{}, false
	}
	rate := samples.EffectiveSampleRate(clean, in.Activity)
	return powerProfile{
		normalized:  power.NormalizedPower(ps, power.WindowSamples(npWindowSeconds, rate)),
		average:     power.Mean(ps),
		best20:      power.BestRollingAverage(ps, power.WindowSamples(best20WindowSeconds, rate)),
		energyKJ:    power.EnergyJoules(ps, 1/rate) / 1000,
		durationSec: samples.Duration(clean, in.Activity),
	}, true
}

// profileFromSummary reads a cached normalized_power summary.
func profileFromSummary(in ActivityInput) (powerProfile, bool) {
	s := in.Power
	p := powerProfile{
		normalized:  s["normalized_power_w"],
		average:     s["average_power_w"],
		best20:      s["best_20min_power_w"],
		durationSec: in.Activity.DurationSec,
	}
	if p.effective() == nil {
		return powerProfile{}, false
	}
	if kj := s["energy_kj"]; kj != nil {
		p.energyKJ = *kj
	} else if p.average != nil {
		p.energyKJ = *p.average * p.durationSec / 1000
	}
	return p, true
}

func profile(in ActivityInput) (powerProfile, *SkippedActivity) {
	id := in.Activity.ID
	if in.Err != nil {
		s := skip(id, in.Err.Error())
		return powerProfile{}, &s
	}
	if len(in.Samples) > 0 {
		if p, ok := profileFromSamples(in); ok {
			return p, nil
		}
	}
	if in.Power != nil {
		if p, ok := profileFromSummary(in); ok {
			return p, nil
		}
	}
	reason := reasonNoPower
	if len(in.Samples) == 0 && in.Power == nil {
		reason = reasonNoData
	}
	s := skip(id, reason)
	return powerProfile{}, &s
}

func round1(v float64) float64 {
	if r := metrics.Round(v, 1); r != nil {
		return *r
	}
	return 0
}

package metrics

import (
	"gonum.org/v1/gonum/floats"

	"ridemetrics/internal/power"
	"ridemetrics/internal/samples"
)

const (
	npWindowSeconds     = 30.0
	best20WindowSeconds = 20 * 60.0
	coastingMaxWatts    = 5.0
)

var npKeys = []string{
	"normalized_power_w", "average_power_w", "max_power_w", "variability_index",
	"coasting_share", "energy_kj", "best_20min_power_w", "valid_power_samples",
}

// ComputeNormalizedPower reports normalized power and pacing diagnostics.
func ComputeNormalizedPower(in []samples.MetricSample, ctx Context) Result {
	in = samples.Sanitize(in)
	summary := nulls(npKeys...)

	ps := power.FromMetricSamples(in)
	summary["valid_power_samples"] = count(len(ps))
	if len(ps) == 0 {
		return Result{Summary: summary}
	}

	rate := samples.EffectiveSampleRate(in, ctx.Activity)
	np := power.NormalizedPower(ps, power.WindowSamples(npWindowSeconds, rate))
	avg := power.Mean(ps)

	watts := make([]float64, len(ps))
	coasting := 0
	for i, s := range ps {
		watts[i] = s.Power
		if s.Power <= coastingMaxWatts {
			coasting++
		}
	}

	summary["normalized_power_w"] = roundPtr(np, precisionUnits)
	summary["average_power_w"] = roundPtr(avg, precisionUnits)
	summary["max_power_w"] = units(floats.Max(watts))
	summary["coasting_share"] = ratio(float64(coasting) / float64(len(ps)))
	summary["energy_kj"] = units(power.EnergyJoules(ps, 1/rate) / 1000)
	summary["best_20min_power_w"] = roundPtr(
		power.BestRollingAverage(ps, power.WindowSamples(best20WindowSeconds, rate)), precisionUnits)

	if np != nil && avg != nil && *avg > 0 {
		summary["variability_index"] = ratio(*np / *avg)
	}

	return Result{Summary: summary}
}

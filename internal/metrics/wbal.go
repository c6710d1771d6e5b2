package metrics

import (
	"math"

	"ridemetrics/internal/power"
	"ridemetrics/internal/samples"
	"ridemetrics/internal/stats"
)

const (
	cpEstimateQuantile  = 0.9
	minWPrimeJoules     = 10000.0
	wPrimeSecondsAtCP   = 60.0
	wbalMaxSeriesPoints = 600
)

var wbalKeys = []string{
	"cp_w", "w_prime_capacity_j", "min_balance_j", "min_balance_pct", "end_balance_j",
	"max_depletion_j", "seconds_above_cp", "cp_estimated",
}

// wbalStep advances the balance over dt seconds at the given power. Work
// above cp drains the balance linearly; riding below cp recovers it
// exponentially toward capacity with time constant capacity/(cp-power).
func wbalStep(balance, watts, dt, cp, capacity float64) float64 {
	switch {
	case watts > cp:
		return max(0, balance-(watts-cp)*dt)
	case watts < cp:
		tau := capacity / (cp - watts)
		return capacity - (capacity-balance)*math.Exp(-dt/tau)
	default:
		return balance
	}
}

type wbalState struct {
	t, watts, balance float64
}

// ComputeWPrimeBalance integrates the critical-power model over the ride.
func ComputeWPrimeBalance(in []samples.MetricSample, ctx Context) Result {
	in = samples.Sanitize(in)
	summary := nulls(wbalKeys...)

	ps := power.FromMetricSamples(in)
	if len(ps) == 0 {
		return Result{Summary: summary}
	}

	cp, estimated := ctx.CP, false
	if cp <= 0 {
		watts := make([]float64, len(ps))
		for i, s := range ps {
			watts[i] = s.Power
		}
		cp, _ = stats.Quantile(watts, cpEstimateQuantile)
		estimated = true
	}
	if cp <= 0 {
		return Result{Summary: summary}
	}

	capacity := ctx.WPrime
	if capacity <= 0 {
		capacity = max(minWPrimeJoules, cp*wPrimeSecondsAtCP)
	}

	nominal := 1 / samples.EffectiveSampleRate(in, ctx.Activity)
	states := make([]wbalState, 0, len(ps))
	balance, lowest, above := capacity, capacity, 0.0
	for i, s := range ps {
		dt := nominal
		if i > 0 {
			dt = s.T - ps[i-1].T
		}
		if dt > 0 {
			balance = wbalStep(balance, s.Power, dt, cp, capacity)
			if s.Power > cp {
				above += dt
			}
		}
		lowest = min(lowest, balance)
		states = append(states, wbalState{t: s.T, watts: s.Power, balance: balance})
	}

	summary["cp_w"] = units(cp)
	summary["w_prime_capacity_j"] = units(capacity)
	summary["min_balance_j"] = units(lowest)
	summary["min_balance_pct"] = Round(lowest/capacity*100, 2)
	summary["end_balance_j"] = units(balance)
	summary["max_depletion_j"] = units(capacity - lowest)
	summary["seconds_above_cp"] = units(above)
	summary["cp_estimated"] = flag(estimated)

	thinned := samples.Downsample(states, wbalMaxSeriesPoints)
	series := make([]SeriesPoint, len(thinned))
	for i, s := range thinned {
		series[i] = SeriesPoint{
			"t":         units(s.t),
			"balance_j": units(s.balance),
			"power_w":   units(s.watts),
		}
	}

	return Result{Summary: summary, Series: series}
}

package metrics

import (
	"ridemetrics/internal/samples"
	"ridemetrics/internal/stats"
)

const (
	curveWindowSeconds = 300.0
	decouplingMinPairs = 20

	// maxCurveWindows caps the curve at one week of windows.
	maxCurveWindows = 7 * 24 * 12
)

var curveKeys = []string{
	"overall_median_ratio", "drift_pct", "drift_slope_per_window", "decoupling_pct",
	"window_count", "valid_window_count",
}

type wattsHRPair struct {
	t, watts, hr float64
}

type curveWindow struct {
	samples int
	ratios  []float64
}

// ComputeEfficiencyCurve splits the ride into 5 minute windows, summarizes
// the watts per beat ratio within each, and fits the trend across windows.
func ComputeEfficiencyCurve(in []samples.MetricSample, _ Context) Result {
	in = samples.Sanitize(in)
	summary := nulls(curveKeys...)
	summary["window_count"] = count(0)
	summary["valid_window_count"] = count(0)
	if len(in) == 0 {
		return Result{Summary: summary}
	}

	last, ok := bucketIndex(in[len(in)-1].T, curveWindowSeconds)
	if !ok || last >= maxCurveWindows {
		last = maxCurveWindows - 1
	}
	arena := make([]curveWindow, last+1)
	var pairs []wattsHRPair
	var all []float64
	for _, s := range in {
		i, ok := bucketIndex(s.T, curveWindowSeconds)
		if !ok || i > last {
			break
		}
		w := &arena[i]
		w.samples++
		if !samples.Valid(s.Power) || !samples.Valid(s.HeartRate) {
			continue
		}
		if *s.Power <= 0 || *s.HeartRate <= 0 {
			continue
		}
		r := *s.Power / *s.HeartRate
		w.ratios = append(w.ratios, r)
		all = append(all, r)
		pairs = append(pairs, wattsHRPair{t: s.T, watts: *s.Power, hr: *s.HeartRate})
	}

	series := make([]SeriesPoint, len(arena))
	var trend []stats.Point
	for i, w := range arena {
		p := SeriesPoint{
			"window_index": count(i),
			"start_s":      units(float64(i) * curveWindowSeconds),
			"median_ratio": nil,
			"p25_ratio":    nil,
			"p75_ratio":    nil,
			"pair_count":   count(len(w.ratios)),
			"coverage":     ratio(0),
		}
		if w.samples > 0 {
			p["coverage"] = ratio(float64(len(w.ratios)) / float64(w.samples))
		}
		if len(w.ratios) > 0 {
			med, _ := stats.Median(w.ratios)
			p25, _ := stats.Quantile(w.ratios, 0.25)
			p75, _ := stats.Quantile(w.ratios, 0.75)
			p["median_ratio"] = ratio(med)
			p["p25_ratio"] = ratio(p25)
			p["p75_ratio"] = ratio(p75)
			trend = append(trend, stats.Point{X: float64(i), Y: med})
		}
		series[i] = p
	}

	summary["window_count"] = count(len(arena))
	summary["valid_window_count"] = count(len(trend))

	if len(all) > 0 {
		med, _ := stats.Median(all)
		summary["overall_median_ratio"] = ratio(med)
	}

	if len(trend) >= 2 {
		reg, _ := stats.LinearRegression(trend)
		start := reg.Intercept + reg.Slope*trend[0].X
		end := reg.Intercept + reg.Slope*trend[len(trend)-1].X
		summary["drift_slope_per_window"] = ratio(reg.Slope)
		if start > 0 {
			summary["drift_pct"] = Round((end-start)/start*100, 2)
		}
	}

	summary["decoupling_pct"] = decoupling(pairs)

	return Result{Summary: summary, Series: series}
}

// decoupling compares the watts per beat of the second half of the paired
// samples with the first half. Negative values mean efficiency fell.
func decoupling(pairs []wattsHRPair) *float64 {
	if len(pairs) < decouplingMinPairs {
		return nil
	}
	mid := len(pairs) / 2
	first := pairRatio(pairs[:mid])
	second := pairRatio(pairs[mid:])
	if first == 0 || second == 0 {
		return nil
	}
	return Round((second/first-1)*100, 2)
}

func pairRatio(pairs []wattsHRPair) float64 {
	var watts, hr float64
	for _, p := range pairs {
		watts += p.watts
		hr += p.hr
	}
	if hr == 0 {
		return 0
	}
	return watts / hr
}

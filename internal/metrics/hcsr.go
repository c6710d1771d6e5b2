package metrics

import (
	"math"

	"ridemetrics/internal/samples"
	"ridemetrics/internal/stats"
)

// Heart-rate to cadence scaling.
const (
	hcsrBinWidth        = 10.0
	hcsrMinCadence      = 20.0
	hcsrOpenBinCadence  = 130.0 // this and above share one bin
	hcsrMinDwellSeconds = 60.0
	hcsrMinPiecewise    = 4
)

var hcsrKeys = []string{
	"slope_bpm_per_rpm", "intercept_bpm", "r2", "piecewise_r2", "nonlinearity_delta",
	"low_cadence_slope", "high_cadence_slope", "first_half_slope", "second_half_slope",
	"fatigue_slope_delta", "bucket_count", "valid_seconds", "bucketed_seconds", "robust_fit",
}

// cadenceBucket accumulates one 10 rpm bin.
type cadenceBucket struct {
	id         int
	heartRates []float64
	seconds    float64
}

func (b cadenceBucket) midpoint() float64 {
	if float64(b.id)*hcsrBinWidth >= hcsrOpenBinCadence {
		return hcsrOpenBinCadence + hcsrBinWidth/2
	}
	return float64(b.id)*hcsrBinWidth + hcsrBinWidth/2
}

func cadenceBin(cadence float64) int {
	if cadence < hcsrMinCadence {
		return -1
	}
	if cadence >= hcsrOpenBinCadence {
		return int(hcsrOpenBinCadence / hcsrBinWidth)
	}
	return int(math.Floor(cadence / hcsrBinWidth))
}

type hrCadencePoint struct {
	t, hr, cadence, seconds float64
}

// hrCadencePoints keeps samples with both channels and a cadence in range,
// each credited with its own dwell time.
func hrCadencePoints(in []samples.MetricSample, nominal float64) []hrCadencePoint {
	dts := samples.Durations(in, nominal)
	out := make([]hrCadencePoint, 0, len(in))
	for i, s := range in {
		if !samples.Valid(s.HeartRate) || !samples.Valid(s.Cadence) {
			continue
		}
		if *s.HeartRate <= 0 || *s.Cadence < hcsrMinCadence {
			continue
		}
		out = append(out, hrCadencePoint{t: s.T, hr: *s.HeartRate, cadence: *s.Cadence, seconds: dts[i]})
	}
	return out
}

// bucketize folds points into the bin arena and returns the bins that meet
// the dwell requirement, ordered by cadence.
func bucketize(points []hrCadencePoint) []cadenceBucket {
	arena := make([]cadenceBucket, cadenceBin(hcsrOpenBinCadence)+1)
	for i := range arena {
		arena[i].id = i
	}
	for _, p := range points {
		b := &arena[cadenceBin(p.cadence)]
		b.heartRates = append(b.heartRates, p.hr)
		b.seconds += p.seconds
	}

	kept := make([]cadenceBucket, 0, len(arena))
	for _, b := range arena {
		if len(b.heartRates) > 0 && b.seconds >= hcsrMinDwellSeconds {
			kept = append(kept, b)
		}
	}
	return kept
}

func bucketPoints(buckets []cadenceBucket) []stats.Point {
	pts := make([]stats.Point, len(buckets))
	for i, b := range buckets {
		med, _ := stats.Median(b.heartRates)
		pts[i] = stats.Point{X: b.midpoint(), Y: med}
	}
	return pts
}

// fitLine prefers the Theil-Sen fit and falls back to least squares, which
// also covers a single bucket (flat line through it).
func fitLine(pts []stats.Point) (reg *stats.Regression, robust bool) {
	if len(pts) == 0 {
		return nil, false
	}
	if ts := stats.TheilSen(pts); ts != nil {
		return ts, true
	}
	ols, err := stats.LinearRegression(pts)
	if err != nil {
		return nil, false
	}
	return &ols, false
}

// ComputeHCSR fits median heart rate against cadence bin midpoints.
func ComputeHCSR(in []samples.MetricSample, ctx Context) Result {
	in = samples.Sanitize(in)
	summary := nulls(hcsrKeys...)

	rate := samples.EffectiveSampleRate(in, ctx.Activity)
	points := hrCadencePoints(in, 1/rate)

	var validSeconds float64
	for _, p := range points {
		validSeconds += p.seconds
	}
	summary["valid_seconds"] = units(validSeconds)

	buckets := bucketize(points)
	summary["bucket_count"] = count(len(buckets))

	var bucketedSeconds float64
	series := make([]SeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		bucketedSeconds += b.seconds
		med, _ := stats.Median(b.heartRates)
		series = append(series, SeriesPoint{
			"cadence_rpm":   units(b.midpoint()),
			"median_hr_bpm": units(med),
			"seconds":       units(b.seconds),
			"sample_count":  count(len(b.heartRates)),
		})
	}
	summary["bucketed_seconds"] = units(bucketedSeconds)

	pts := bucketPoints(buckets)
	global, robust := fitLine(pts)
	if global == nil {
		return Result{Summary: summary, Series: series}
	}

	summary["slope_bpm_per_rpm"] = ratio(global.Slope)
	summary["intercept_bpm"] = units(global.Intercept)
	summary["r2"] = ratio(global.R2)
	summary["robust_fit"] = flag(robust)

	if len(pts) >= hcsrMinPiecewise {
		mid := len(pts) / 2
		low, _ := fitLine(pts[:mid])
		high, _ := fitLine(pts[mid:])
		if low != nil && high != nil {
			_, ssTot := stats.Residuals(pts, global.Slope, global.Intercept)
			lowRes, _ := stats.Residuals(pts[:mid], low.Slope, low.Intercept)
			highRes, _ := stats.Residuals(pts[mid:], high.Slope, high.Intercept)
			piecewise := 1.0
			if ssTot > 0 {
				piecewise = 1 - (lowRes+highRes)/ssTot
			}
			summary["piecewise_r2"] = ratio(piecewise)
			summary["nonlinearity_delta"] = ratio(piecewise - global.R2)
			summary["low_cadence_slope"] = ratio(low.Slope)
			summary["high_cadence_slope"] = ratio(high.Slope)
		}
	}

	if len(points) > 0 {
		split := (points[0].t + points[len(points)-1].t) / 2
		var first, second []hrCadencePoint
		for _, p := range points {
			if p.t < split {
				first = append(first, p)
			} else {
				second = append(second, p)
			}
		}
		a, _ := fitLine(bucketPoints(bucketize(first)))
		b, _ := fitLine(bucketPoints(bucketize(second)))
		if a != nil {
			summary["first_half_slope"] = ratio(a.Slope)
		}
		if b != nil {
			summary["second_half_slope"] = ratio(b.Slope)
		}
		if a != nil && b != nil {
			summary["fatigue_slope_delta"] = ratio(b.Slope - a.Slope)
		}
	}

	return Result{Summary: summary, Series: series}
}

package metrics

import (
	"math"

	"ridemetrics/internal/samples"
)

const intervalSeconds = 3600.0

var intervalKeys = []string{
	"interval_count", "first_efficiency", "last_efficiency", "efficiency_change_pct",
}

type intervalAcc struct {
	index                                 int
	samples                               int
	power, heartRate, cadence, temperature mean
}

func (a intervalAcc) efficiency() *float64 {
	p, hr := a.power.value(), a.heartRate.value()
	if p == nil || hr == nil || *hr <= 0 {
		return nil
	}
	v := *p / *hr
	return &v
}

// ComputeIntervalEfficiency averages each hour of the ride and reports
// power per heartbeat for every hour that has data.
func ComputeIntervalEfficiency(in []samples.MetricSample, _ Context) Result {
	in = samples.Sanitize(in)
	summary := nulls(intervalKeys...)
	summary["interval_count"] = count(0)
	if len(in) == 0 {
		return Result{Summary: summary}
	}

	// samples are ordered by T, so each hour is opened once
	var accs []intervalAcc
	for _, s := range in {
		i, ok := bucketIndex(s.T, intervalSeconds)
		if !ok {
			break
		}
		if len(accs) == 0 || accs[len(accs)-1].index != i {
			accs = append(accs, intervalAcc{index: i})
		}
		a := &accs[len(accs)-1]
		a.samples++
		a.power.add(s.Power)
		a.heartRate.add(s.HeartRate)
		a.cadence.add(s.Cadence)
		a.temperature.add(s.Temperature)
	}

	var series []SeriesPoint
	var efficiencies []float64
	for _, a := range accs {
		eff := a.efficiency()
		if eff != nil {
			efficiencies = append(efficiencies, *eff)
		}
		series = append(series, SeriesPoint{
			"interval_index":    count(a.index),
			"start_s":           units(float64(a.index) * intervalSeconds),
			"avg_power_w":       roundPtr(a.power.value(), precisionUnits),
			"avg_hr_bpm":        roundPtr(a.heartRate.value(), precisionUnits),
			"avg_cadence_rpm":   roundPtr(a.cadence.value(), precisionUnits),
			"avg_temperature_c": roundPtr(a.temperature.value(), precisionUnits),
			"efficiency":        roundPtr(eff, precisionRatio),
			"sample_count":      count(a.samples),
		})
	}

	summary["interval_count"] = count(len(series))
	if len(efficiencies) > 0 {
		first, last := efficiencies[0], efficiencies[len(efficiencies)-1]
		summary["first_efficiency"] = ratio(first)
		summary["last_efficiency"] = ratio(last)
		if len(efficiencies) > 1 && first > 0 {
			summary["efficiency_change_pct"] = Round((last-first)/first*100, 2)
		}
	}

	return Result{Summary: summary, Series: series}
}

// maxBucketIndex bounds the time bucket a sample can land in. Samples
// further out are ignored.
const maxBucketIndex = math.MaxInt32

// bucketIndex returns the width-second bucket holding t. Negative times fall
// in the first bucket.
func bucketIndex(t, width float64) (int, bool) {
	if t < 0 {
		return 0, true
	}
	i := math.Floor(t / width)
	if i > maxBucketIndex {
		return 0, false
	}
	return int(i), true
}

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridemetrics/internal/samples"
)

func TestLateAerobicWindow(t *testing.T) {
	// Two hours at 1 Hz. Only minutes 85 to 115 hold 200 W at 140 bpm.
	in := ride(7200, 1, func(i int, s *samples.MetricSample) {
		if i >= 5100 && i < 6900 {
			s.Power = samples.Float(200)
			s.HeartRate = samples.Float(140)
			return
		}
		s.Power = samples.Float(100)
		s.HeartRate = samples.Float(170)
	})

	res := ComputeLateAerobicEfficiency(in, Context{Activity: samples.Activity{DurationSec: 7200}})

	assert.Equal(t, 5100.0, requireValue(t, res, "window_start_s"))
	assert.Equal(t, 6900.0, requireValue(t, res, "window_end_s"))
	assert.Equal(t, 1800.0, requireValue(t, res, "valid_sample_count"))
	assert.Equal(t, 1800.0, requireValue(t, res, "total_window_sample_count"))
	assert.Equal(t, *Round(200.0/140.0, 4), requireValue(t, res, "watts_per_bpm"))
}

func TestLateAerobicShortRide(t *testing.T) {
	in := ride(240, 1, func(_ int, s *samples.MetricSample) {
		s.Power = samples.Float(200)
		s.HeartRate = samples.Float(140)
	})

	res := ComputeLateAerobicEfficiency(in, Context{Activity: samples.Activity{DurationSec: 240}})

	assert.Equal(t, 0.0, requireValue(t, res, "valid_sample_count"))
	assert.Equal(t, 0.0, requireValue(t, res, "total_window_sample_count"))
	_, ok := res.Value("watts_per_bpm")
	assert.False(t, ok)
}

func TestLateAerobicCountsMissingHeartRate(t *testing.T) {
	in := ride(3600, 1, func(i int, s *samples.MetricSample) {
		s.Power = samples.Float(180)
		if i%2 == 0 {
			s.HeartRate = samples.Float(120)
		}
	})

	res := ComputeLateAerobicEfficiency(in, Context{Activity: samples.Activity{DurationSec: 3600}})

	assert.Equal(t, 1800.0, requireValue(t, res, "total_window_sample_count"))
	assert.Equal(t, 900.0, requireValue(t, res, "valid_sample_count"))
	assert.Equal(t, 1.5, requireValue(t, res, "watts_per_bpm"))
}

func TestIntervalEfficiency(t *testing.T) {
	in := ride(7200, 1, func(i int, s *samples.MetricSample) {
		s.HeartRate = samples.Float(125)
		s.Cadence = samples.Float(88)
		if i < 3600 {
			s.Power = samples.Float(250)
			return
		}
		s.Power = samples.Float(225)
	})

	res := ComputeIntervalEfficiency(in, Context{})

	assert.Equal(t, 2.0, requireValue(t, res, "interval_count"))
	assert.Equal(t, 2.0, requireValue(t, res, "first_efficiency"))
	assert.Equal(t, 1.8, requireValue(t, res, "last_efficiency"))
	assert.Equal(t, -10.0, requireValue(t, res, "efficiency_change_pct"))

	require.Len(t, res.Series, 2)
	assert.Equal(t, 3600.0, *res.Series[1]["start_s"])
	assert.Equal(t, 3600.0, *res.Series[1]["sample_count"])
	assert.Nil(t, res.Series[1]["avg_temperature_c"])
}

func TestIntervalEfficiencySkipsEmptyHours(t *testing.T) {
	in := []samples.MetricSample{
		{T: 0, Power: samples.Float(200), HeartRate: samples.Float(100)},
		{T: 7300, Power: samples.Float(200), HeartRate: samples.Float(100)},
	}

	res := ComputeIntervalEfficiency(in, Context{})

	require.Len(t, res.Series, 2)
	assert.Equal(t, 0.0, *res.Series[0]["interval_index"])
	assert.Equal(t, 2.0, *res.Series[1]["interval_index"])
	assert.Equal(t, 0.0, requireValue(t, res, "efficiency_change_pct"))
}

func TestIntervalEfficiencyIgnoresUnreachableTimes(t *testing.T) {
	in := []samples.MetricSample{
		{T: 0, Power: samples.Float(200), HeartRate: samples.Float(100)},
		{T: 1.5e9, Power: samples.Float(200), HeartRate: samples.Float(100)},
		{T: 1e30, Power: samples.Float(200), HeartRate: samples.Float(100)},
	}

	res := ComputeIntervalEfficiency(in, Context{})

	require.Len(t, res.Series, 2)
	assert.Equal(t, 416666.0, *res.Series[1]["interval_index"])
	assert.Equal(t, 2.0, requireValue(t, res, "interval_count"))
}

func TestEfficiencyCurveCapsWindows(t *testing.T) {
	in := []samples.MetricSample{
		{T: 0, Power: samples.Float(200), HeartRate: samples.Float(100)},
		{T: 1.7e9, Power: samples.Float(200), HeartRate: samples.Float(100)},
	}

	res := ComputeEfficiencyCurve(in, Context{})

	assert.Equal(t, float64(maxCurveWindows), requireValue(t, res, "window_count"))
	assert.Equal(t, 1.0, requireValue(t, res, "valid_window_count"))
	require.Len(t, res.Series, maxCurveWindows)
}

func TestBucketIndex(t *testing.T) {
	i, ok := bucketIndex(-5, 300)
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = bucketIndex(601, 300)
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = bucketIndex(1e30, 300)
	assert.False(t, ok)
}

func TestEfficiencyCurveDrift(t *testing.T) {
	// Power holds while heart rate creeps up every 5 minutes.
	in := ride(3600, 1, func(i int, s *samples.MetricSample) {
		s.Power = samples.Float(200)
		s.HeartRate = samples.Float(float64(130 + i/300))
	})

	res := ComputeEfficiencyCurve(in, Context{})

	assert.Equal(t, 12.0, requireValue(t, res, "window_count"))
	assert.Equal(t, 12.0, requireValue(t, res, "valid_window_count"))
	assert.Less(t, requireValue(t, res, "drift_slope_per_window"), 0.0)
	assert.Less(t, requireValue(t, res, "drift_pct"), 0.0)
	assert.Less(t, requireValue(t, res, "decoupling_pct"), 0.0)

	require.Len(t, res.Series, 12)
	first := res.Series[0]
	assert.Equal(t, *Round(200.0/130.0, 4), *first["median_ratio"])
	assert.Equal(t, 1.0, *first["coverage"])
	assert.Equal(t, 300.0, *first["pair_count"])
}

func TestEfficiencyCurveKeepsEmptyWindows(t *testing.T) {
	in := ride(900, 1, func(i int, s *samples.MetricSample) {
		if i >= 300 && i < 600 {
			return
		}
		s.Power = samples.Float(210)
		s.HeartRate = samples.Float(140)
	})

	res := ComputeEfficiencyCurve(in, Context{})

	require.Len(t, res.Series, 3)
	assert.Nil(t, res.Series[1]["median_ratio"])
	assert.Equal(t, 0.0, *res.Series[1]["coverage"])
	assert.Equal(t, 2.0, requireValue(t, res, "valid_window_count"))
	assert.Equal(t, 0.0, requireValue(t, res, "drift_slope_per_window"))
}

func TestDecouplingNeedsPairs(t *testing.T) {
	pairs := make([]wattsHRPair, decouplingMinPairs-1)
	for i := range pairs {
		pairs[i] = wattsHRPair{t: float64(i), watts: 200, hr: 140}
	}
	assert.Nil(t, decoupling(pairs))

	pairs = append(pairs, wattsHRPair{t: 19, watts: 200, hr: 140})
	d := decoupling(pairs)
	require.NotNil(t, d)
	assert.Equal(t, 0.0, *d)
}

package aggregate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridemetrics/internal/metrics"
	"ridemetrics/internal/samples"
)

func steadyRide(id string, start time.Time, seconds int, watts float64) ActivityInput {
	in := make([]samples.MetricSample, seconds)
	for i := range in {
		in[i] = samples.MetricSample{T: float64(i), Power: samples.Float(watts)}
	}
	return ActivityInput{
		Activity: samples.Activity{ID: id, StartTime: start, DurationSec: float64(seconds), SampleRateHz: 1},
		Samples:  in,
	}
}

func powerSummary(np, avg float64) metrics.Summary {
	return metrics.Summary{
		"normalized_power_w": samples.Float(np),
		"average_power_w":    samples.Float(avg),
	}
}

func TestEstimateFTP(t *testing.T) {
	f := samples.Float

	ftp, src := EstimateFTP([]ActivityLoad{
		{Best20MinPower: f(300), AveragePower: f(200)},
		{Best20MinPower: f(280), AveragePower: f(260)},
	})
	assert.Equal(t, 285.0, ftp)
	assert.Equal(t, FTPSourceBest20, src)

	ftp, src = EstimateFTP([]ActivityLoad{{AveragePower: f(180)}, {AveragePower: f(210)}})
	assert.Equal(t, 210.0, ftp)
	assert.Equal(t, FTPSourceAverage, src)

	ftp, src = EstimateFTP(nil)
	assert.Equal(t, 0.0, ftp)
	assert.Equal(t, FTPSourceNone, src)
}

func TestActivityTSS(t *testing.T) {
	assert.InDelta(t, 100, ActivityTSS(3600, 250, 250), 1e-9)
	assert.InDelta(t, 50, ActivityTSS(1800, 250, 250), 1e-9)
	assert.Equal(t, 0.0, ActivityTSS(3600, 250, 0))
}

func TestComputeAdaptationEdges(t *testing.T) {
	day := date(2024, 6, 1).Add(8 * time.Hour)
	inputs := []ActivityInput{
		steadyRide("a", day, 3600, 200),
		{
			Activity: samples.Activity{ID: "b", StartTime: day.AddDate(0, 0, 2), DurationSec: 7200},
			Power:    powerSummary(250, 230),
		},
		steadyRide("c", day.AddDate(0, 0, 4), 1800, 300),
		{Activity: samples.Activity{ID: "broken"}, Err: errors.New("fetching samples: boom")},
		{Activity: samples.Activity{ID: "empty", StartTime: day}},
	}

	res := ComputeAdaptationEdges(inputs, EdgesOptions{FTP: 250, MinWindowDays: 1, MaxWindowDays: 6})

	assert.Equal(t, FTPSourceDeclared, res.FTPSource)
	assert.Equal(t, 250.0, res.FTPUsed)
	assert.Equal(t, 285.0, res.FTPEstimate, "best 20 min of 300 W ride")

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "broken", res.Skipped[0].ActivityID)
	assert.Equal(t, reasonNoData, res.Skipped[1].Reason)

	require.Len(t, res.Loads, 3)
	assert.InDelta(t, ActivityTSS(3600, 200, 250), res.Loads[0].TSS, 0.05)
	assert.Equal(t, 200.0, res.Loads[0].KJ*1000/3600)
	assert.InDelta(t, ActivityTSS(7200, 250, 250), res.Loads[1].TSS, 0.05)
	assert.Equal(t, 230*7200/1000.0, res.Loads[1].KJ)

	require.Len(t, res.Timeline, 5)
	require.Len(t, res.Fitness, 5)
	require.Len(t, res.Windows, 6)

	one := res.Windows[0]
	assert.Equal(t, 1, one.Days)
	assert.Equal(t, date(2024, 6, 3), one.BestTSS.Start, "ride b scores the most stress")
	assert.Equal(t, date(2024, 6, 3), one.BestKJ.Start)

	assert.Nil(t, res.Windows[5].BestTSS, "timeline is shorter than 6 days")
	assert.Equal(t, 5, res.Windows[4].BestTSS.DayCount)
	assert.Equal(t, []string{"a", "b", "c"}, res.Windows[4].BestTSS.ActivityIDs)
}

func TestAdaptationEdgesBlocksAreIndependent(t *testing.T) {
	// A short hard ride beats a long easy ride on TSS but not on kJ.
	day := date(2024, 1, 10).Add(9 * time.Hour)
	inputs := []ActivityInput{
		{Activity: samples.Activity{ID: "hard", StartTime: day, DurationSec: 3600}, Power: powerSummary(320, 300)},
		{Activity: samples.Activity{ID: "long", StartTime: day.AddDate(0, 0, 3), DurationSec: 4 * 3600}, Power: powerSummary(135, 130)},
	}

	res := ComputeAdaptationEdges(inputs, EdgesOptions{FTP: 250, MinWindowDays: 1, MaxWindowDays: 1})

	require.Len(t, res.Windows, 1)
	w := res.Windows[0]
	assert.Equal(t, []string{"hard"}, w.BestTSS.ActivityIDs)
	assert.Equal(t, []string{"long"}, w.BestKJ.ActivityIDs)
}

func TestAdaptationEdgesWindowsAreMaximal(t *testing.T) {
	start := date(2024, 2, 1).Add(10 * time.Hour)
	var inputs []ActivityInput
	for i := 0; i < 40; i++ {
		if i%3 == 1 {
			continue
		}
		watts := float64(150 + (i*53)%120)
		inputs = append(inputs, ActivityInput{
			Activity: samples.Activity{ID: string(rune('A' + i)), StartTime: start.AddDate(0, 0, i), DurationSec: float64(1800 + (i*977)%5400)},
			Power:    powerSummary(watts, watts-10),
		})
	}

	res := ComputeAdaptationEdges(inputs, EdgesOptions{FTP: 260})

	assert.Len(t, res.Windows, DefaultMaxWindowDays-DefaultMinWindowDays+1)
	for _, w := range res.Windows {
		require.NotNil(t, w.BestTSS)
		for s := 0; s+w.Days <= len(res.Timeline); s++ {
			var sum float64
			for _, d := range res.Timeline[s : s+w.Days] {
				sum += d.TotalTSS
			}
			assert.GreaterOrEqual(t, w.BestTSS.Total+0.05, sum, "window %d start %d", w.Days, s)
		}
	}
}

package aggregate

import (
	"time"

	"ridemetrics/internal/metrics"
	"ridemetrics/internal/power"
	"ridemetrics/internal/samples"
)

// DefaultMovingAverageDays is the trailing window of the depth moving average.
const DefaultMovingAverageDays = 90

// DepthOptions configures ComputeDepthAnalysis. Zero values take defaults.
type DepthOptions struct {
	ThresholdKJ       float64
	MinPowerW         float64
	MovingAverageDays int
	MinWindowDays     int
	MaxWindowDays     int
}

func (o DepthOptions) withDefaults() DepthOptions {
	if o.ThresholdKJ <= 0 {
		o.ThresholdKJ = metrics.DefaultDepthThresholdKJ
	}
	if o.MinPowerW <= 0 {
		o.MinPowerW = metrics.DefaultDepthMinPowerW
	}
	if o.MovingAverageDays < 1 {
		o.MovingAverageDays = DefaultMovingAverageDays
	}
	return o
}

// ActivityDepth is the depth work done in one activity.
type ActivityDepth struct {
	ActivityID    string    `json:"activity_id"`
	StartTime     time.Time `json:"start_time"`
	Crossed       bool      `json:"crossed"`
	CrossingTimeS *float64  `json:"crossing_time_s"`
	TotalKJ       float64   `json:"total_kj"`
	AboveKJ       float64   `json:"above_threshold_kj"`
	DepthKJ       float64   `json:"depth_kj"`
}

// DepthDay is a timeline day with the trailing moving average of depth kJ.
type DepthDay struct {
	DayAggregation
	MovingAverage float64 `json:"moving_average_kj"`
}

// DepthResult is the output of ComputeDepthAnalysis.
type DepthResult struct {
	ThresholdKJ float64           `json:"threshold_kj"`
	MinPowerW   float64           `json:"min_power_w"`
	Activities  []ActivityDepth   `json:"activities"`
	Timeline    []DepthDay        `json:"timeline"`
	BestBlocks  []BlockSummary    `json:"best_blocks"`
	Skipped     []SkippedActivity `json:"skipped"`
}

// activityDepth locates the threshold crossing in one activity's samples.
func activityDepth(in ActivityInput, thresholdKJ, minPowerW float64) (ActivityDepth, *SkippedActivity) {
	id := in.Activity.ID
	if in.Err != nil {
		s := skip(id, in.Err.Error())
		return ActivityDepth{}, &s
	}
	if len(in.Samples) == 0 {
		s := skip(id, "no samples")
		return ActivityDepth{}, &s
	}

	clean := samples.Sanitize(in.Samples)
	ps := power.FromMetricSamples(clean)
	if len(ps) == 0 {
		s := skip(id, reasonNoPower)
		return ActivityDepth{}, &s
	}

	rate := samples.EffectiveSampleRate(clean, in.Activity)
	c := power.CrossThreshold(ps, thresholdKJ*1000, minPowerW, 1/rate)

	d := ActivityDepth{
		ActivityID: id,
		StartTime:  in.Activity.StartTime,
		Crossed:    c.Crossed,
		TotalKJ:    c.TotalJoules / 1000,
		AboveKJ:    c.AboveJoules / 1000,
		DepthKJ:    c.DepthJoules / 1000,
	}
	if c.Crossed {
		t := c.T
		d.CrossingTimeS = &t
	}
	return d, nil
}

// MovingAverage returns the trailing mean of values over window entries.
// The first entries average over the days available so far.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < 1 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// ComputeDepthAnalysis credits every activity with the work it did beyond the
// cumulative threshold above the minimum power, aggregates it per day, and
// reports the trailing moving average and the best depth blocks.
func ComputeDepthAnalysis(inputs []ActivityInput, opts DepthOptions) DepthResult {
	opts = opts.withDefaults()
	res := DepthResult{
		ThresholdKJ: opts.ThresholdKJ,
		MinPowerW:   opts.MinPowerW,
		Activities:  []ActivityDepth{},
		Timeline:    []DepthDay{},
		BestBlocks:  []BlockSummary{},
		Skipped:     []SkippedActivity{},
	}

	var contribs []Contribution
	for _, in := range inputs {
		d, skipped := activityDepth(in, opts.ThresholdKJ, opts.MinPowerW)
		if skipped != nil {
			res.Skipped = append(res.Skipped, *skipped)
			continue
		}
		contribs = append(contribs, Contribution{
			ActivityID: d.ActivityID,
			Start:      d.StartTime,
			KJ:         d.TotalKJ,
			DepthKJ:    d.DepthKJ,
		})
		d.TotalKJ = round1(d.TotalKJ)
		d.AboveKJ = round1(d.AboveKJ)
		d.DepthKJ = round1(d.DepthKJ)
		if d.CrossingTimeS != nil {
			t := round1(*d.CrossingTimeS)
			d.CrossingTimeS = &t
		}
		res.Activities = append(res.Activities, d)
	}

	timeline := BuildTimeline(contribs)
	values := make([]float64, len(timeline))
	for i, d := range timeline {
		values[i] = d.DepthKJ
	}
	avg := MovingAverage(values, opts.MovingAverageDays)
	for i, d := range timeline {
		res.Timeline = append(res.Timeline, DepthDay{DayAggregation: d, MovingAverage: round1(avg[i])})
	}

	lo, hi := EdgesOptions{MinWindowDays: opts.MinWindowDays, MaxWindowDays: opts.MaxWindowDays}.windowRange()
	for n := lo; n <= hi; n++ {
		if b := bestBlock(timeline, n, dayDepth); b != nil {
			res.BestBlocks = append(res.BestBlocks, *b)
		}
	}

	return res
}

package aggregate

import (
	"sort"
	"time"
)

const dayLayout = "2006-01-02"

// DayAggregation is one calendar day (UTC) of the timeline. Days without
// activities are present with zero totals and no IDs.
type DayAggregation struct {
	Date        time.Time `json:"date"`
	TotalTSS    float64   `json:"total_tss"`
	TotalKJ     float64   `json:"total_kj"`
	DepthKJ     float64   `json:"depth_kj"`
	ActivityIDs []string  `json:"activity_ids"`
}

// Contribution is one activity's share of its day.
type Contribution struct {
	ActivityID string
	Start      time.Time
	TSS        float64
	KJ         float64
	DepthKJ    float64
}

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BuildTimeline groups contributions by UTC day and fills every day between
// the first and last one, so the result has no gaps.
func BuildTimeline(contribs []Contribution) []DayAggregation {
	if len(contribs) == 0 {
		return nil
	}

	sorted := make([]Contribution, len(contribs))
	copy(sorted, contribs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	byDay := make(map[string]*DayAggregation)
	for _, c := range sorted {
		key := Day(c.Start).Format(dayLayout)
		d, ok := byDay[key]
		if !ok {
			d = &DayAggregation{}
			byDay[key] = d
		}
		d.TotalTSS += c.TSS
		d.TotalKJ += c.KJ
		d.DepthKJ += c.DepthKJ
		d.ActivityIDs = append(d.ActivityIDs, c.ActivityID)
	}

	start := Day(sorted[0].Start)
	end := Day(sorted[len(sorted)-1].Start)

	var timeline []DayAggregation
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := DayAggregation{Date: d, ActivityIDs: []string{}}
		if agg, ok := byDay[d.Format(dayLayout)]; ok {
			day.TotalTSS = round1(agg.TotalTSS)
			day.TotalKJ = round1(agg.TotalKJ)
			day.DepthKJ = round1(agg.DepthKJ)
			day.ActivityIDs = agg.ActivityIDs
		}
		timeline = append(timeline, day)
	}
	return timeline
}

// FitnessPoint is the chronic/acute load balance on one day.
type FitnessPoint struct {
	Date time.Time `json:"date"`
	CTL  float64   `json:"ctl"` // 42-day EMA, "fitness"
	ATL  float64   `json:"atl"` // 7-day EMA, "fatigue"
	TSB  float64   `json:"tsb"` // CTL - ATL, "form"
}

// FitnessTrend runs the CTL/ATL exponential moving averages over the daily
// TSS of a dense timeline.
func FitnessTrend(timeline []DayAggregation) []FitnessPoint {
	if len(timeline) == 0 {
		return nil
	}

	ctlDecay := 2.0 / (42.0 + 1.0)
	atlDecay := 2.0 / (7.0 + 1.0)

	out := make([]FitnessPoint, len(timeline))
	var ctl, atl float64
	for i, d := range timeline {
		ctl += ctlDecay * (d.TotalTSS - ctl)
		atl += atlDecay * (d.TotalTSS - atl)
		out[i] = FitnessPoint{
			Date: d.Date,
			CTL:  round1(ctl),
			ATL:  round1(atl),
			TSB:  round1(ctl - atl),
		}
	}
	return out
}

// FormDescription returns a human-readable reading of TSB.
func FormDescription(tsb float64) string {
	switch {
	case tsb > 25:
		return "Very fresh (possibly detrained)"
	case tsb > 10:
		return "Fresh and ready to race"
	case tsb > 0:
		return "Neutral - good for training"
	case tsb > -10:
		return "Slightly fatigued"
	case tsb > -25:
		return "Tired but building fitness"
	default:
		return "Very fatigued - rest needed"
	}
}

package aggregate

import "time"

// BestWindow finds the contiguous run of n values with the largest sum. It
// keeps a running sum, adding the value entering the window and subtracting
// the one leaving it, and only replaces the best on a strictly larger sum so
// the earliest window wins ties. ok is false when there are fewer than n
// values or n < 1.
func BestWindow(values []float64, n int) (start int, total float64, ok bool) {
	if n < 1 || len(values) < n {
		return 0, 0, false
	}

	var sum float64
	for _, v := range values[:n] {
		sum += v
	}
	start, total = 0, sum

	for i := n; i < len(values); i++ {
		sum += values[i] - values[i-n]
		if sum > total {
			start, total = i-n+1, sum
		}
	}
	return start, total, true
}

// BlockSummary is the best run of DayCount days by one daily value.
type BlockSummary struct {
	Start            time.Time   `json:"start"`
	End              time.Time   `json:"end"`
	Total            float64     `json:"total"`
	AveragePerDay    float64     `json:"average_per_day"`
	DayCount         int         `json:"day_count"`
	ActivityIDs      []string    `json:"activity_ids"`
	ContributingDays []time.Time `json:"contributing_days"`
}

// bestBlock runs BestWindow over value(day) and summarizes the winning run.
// Contributing days are the days in the run with a positive value.
func bestBlock(timeline []DayAggregation, n int, value func(DayAggregation) float64) *BlockSummary {
	values := make([]float64, len(timeline))
	for i, d := range timeline {
		values[i] = value(d)
	}

	start, total, ok := BestWindow(values, n)
	if !ok {
		return nil
	}

	days := timeline[start : start+n]
	b := &BlockSummary{
		Start:            days[0].Date,
		End:              days[n-1].Date,
		Total:            round1(total),
		AveragePerDay:    round1(total / float64(n)),
		DayCount:         n,
		ActivityIDs:      []string{},
		ContributingDays: []time.Time{},
	}
	for i, d := range days {
		b.ActivityIDs = append(b.ActivityIDs, d.ActivityIDs...)
		if values[start+i] > 0 {
			b.ContributingDays = append(b.ContributingDays, d.Date)
		}
	}
	return b
}

func dayTSS(d DayAggregation) float64   { return d.TotalTSS }
func dayKJ(d DayAggregation) float64    { return d.TotalKJ }
func dayDepth(d DayAggregation) float64 { return d.DepthKJ }

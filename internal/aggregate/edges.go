package aggregate

import "time"

// FTP estimate sources.
const (
	FTPSourceDeclared = "declared"
	FTPSourceBest20   = "best_20min"
	FTPSourceAverage  = "average_power"
	FTPSourceNone     = "none"
)

const best20ToFTP = 0.95

// Default window lengths searched by the edges analysis.
const (
	DefaultMinWindowDays = 3
	DefaultMaxWindowDays = 25
)

// EdgesOptions configures ComputeAdaptationEdges.
type EdgesOptions struct {
	// FTP is the declared threshold power; 0 means use the estimate.
	FTP           float64
	MinWindowDays int
	MaxWindowDays int
}

func (o EdgesOptions) windowRange() (int, int) {
	lo, hi := o.MinWindowDays, o.MaxWindowDays
	if lo < 1 {
		lo = DefaultMinWindowDays
	}
	if hi < lo {
		hi = max(lo, DefaultMaxWindowDays)
	}
	return lo, hi
}

// ActivityLoad is the training load credited to one activity.
type ActivityLoad struct {
	ActivityID      string    `json:"activity_id"`
	StartTime       time.Time `json:"start_time"`
	DurationSec     float64   `json:"duration_s"`
	NormalizedPower *float64  `json:"normalized_power_w"`
	AveragePower    *float64  `json:"average_power_w"`
	Best20MinPower  *float64  `json:"best_20min_power_w"`
	KJ              float64   `json:"kj"`
	TSS             float64   `json:"tss"`
}

// Window holds the best blocks of one length, found independently by TSS
// and by kJ. Either is nil when the timeline is shorter than Days.
type Window struct {
	Days    int           `json:"days"`
	BestTSS *BlockSummary `json:"best_tss"`
	BestKJ  *BlockSummary `json:"best_kj"`
}

// EdgesResult is the output of ComputeAdaptationEdges.
type EdgesResult struct {
	FTPEstimate float64           `json:"ftp_estimate_w"`
	FTPSource   string            `json:"ftp_source"`
	FTPUsed     float64           `json:"ftp_used_w"`
	Loads       []ActivityLoad    `json:"loads"`
	Timeline    []DayAggregation  `json:"timeline"`
	Fitness     []FitnessPoint    `json:"fitness"`
	Windows     []Window          `json:"windows"`
	Skipped     []SkippedActivity `json:"skipped"`
}

// EstimateFTP returns 95% of the best 20 minute power across loads, falling
// back to the best average power when no activity has a 20 minute segment.
func EstimateFTP(loads []ActivityLoad) (float64, string) {
	var best20, bestAvg float64
	for _, l := range loads {
		if l.Best20MinPower != nil {
			best20 = max(best20, *l.Best20MinPower*best20ToFTP)
		}
		if l.AveragePower != nil {
			bestAvg = max(bestAvg, *l.AveragePower)
		}
	}
	switch {
	case best20 > 0:
		return round1(best20), FTPSourceBest20
	case bestAvg > 0:
		return round1(bestAvg), FTPSourceAverage
	default:
		return 0, FTPSourceNone
	}
}

// ActivityTSS returns duration × power × (power/ftp) / (ftp × 36).
func ActivityTSS(durationSec, watts, ftp float64) float64 {
	if ftp <= 0 || durationSec <= 0 || watts <= 0 {
		return 0
	}
	return durationSec * watts * (watts / ftp) / (ftp * 36)
}

// ComputeAdaptationEdges estimates FTP, scores every activity, builds the
// daily timeline and finds the best TSS and kJ blocks for every window
// length in the configured range.
func ComputeAdaptationEdges(inputs []ActivityInput, opts EdgesOptions) EdgesResult {
	res := EdgesResult{
		Loads:    []ActivityLoad{},
		Timeline: []DayAggregation{},
		Windows:  []Window{},
		Skipped:  []SkippedActivity{},
	}

	for _, in := range inputs {
		p, skipped := profile(in)
		if skipped != nil {
			res.Skipped = append(res.Skipped, *skipped)
			continue
		}
		res.Loads = append(res.Loads, ActivityLoad{
			ActivityID:      in.Activity.ID,
			StartTime:       in.Activity.StartTime,
			DurationSec:     p.durationSec,
			NormalizedPower: p.normalized,
			AveragePower:    p.average,
			Best20MinPower:  p.best20,
			KJ:              p.energyKJ,
		})
	}

	res.FTPEstimate, res.FTPSource = EstimateFTP(res.Loads)
	res.FTPUsed = res.FTPEstimate
	if opts.FTP > 0 {
		res.FTPUsed, res.FTPSource = opts.FTP, FTPSourceDeclared
	}

	contribs := make([]Contribution, len(res.Loads))
	for i := range res.Loads {
		l := &res.Loads[i]
		var watts float64
		if l.NormalizedPower != nil && *l.NormalizedPower > 0 {
			watts = *l.NormalizedPower
		} else if l.AveragePower != nil {
			watts = *l.AveragePower
		}
		tss := ActivityTSS(l.DurationSec, watts, res.FTPUsed)

		contribs[i] = Contribution{ActivityID: l.ActivityID, Start: l.StartTime, TSS: tss, KJ: l.KJ}

		l.TSS = round1(tss)
		l.KJ = round1(l.KJ)
		l.NormalizedPower = roundPtr(l.NormalizedPower)
		l.AveragePower = roundPtr(l.AveragePower)
		l.Best20MinPower = roundPtr(l.Best20MinPower)
	}

	if timeline := BuildTimeline(contribs); timeline != nil {
		res.Timeline = timeline
	}
	res.Fitness = FitnessTrend(res.Timeline)

	lo, hi := opts.windowRange()
	for n := lo; n <= hi; n++ {
		res.Windows = append(res.Windows, Window{
			Days:    n,
			BestTSS: bestBlock(res.Timeline, n, dayTSS),
			BestKJ:  bestBlock(res.Timeline, n, dayKJ),
		})
	}

	return res
}

func roundPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := round1(*p)
	return &v
}

package metrics

import (
	"ridemetrics/internal/power"
	"ridemetrics/internal/samples"
)

var durableKeys = []string{
	"threshold_kj", "crossed", "crossing_time_s", "segment_duration_s", "segment_energy_kj",
	"segment_np_w", "segment_avg_power_w", "ftp_w", "durable_tss",
}

// TSS returns the training stress of riding at watts for seconds against ftp.
func TSS(watts, seconds, ftp float64) float64 {
	if ftp <= 0 {
		return 0
	}
	intensity := watts / ftp
	return intensity * intensity * (seconds / 3600) * 100
}

// ComputeDurableTSS scores only the part of the ride done after cumulative
// work passed the depth threshold.
func ComputeDurableTSS(in []samples.MetricSample, ctx Context) Result {
	in = samples.Sanitize(in)
	summary := nulls(durableKeys...)

	thresholdKJ := ctx.depthThresholdKJ()
	ftp := ctx.ftp()
	summary["threshold_kj"] = units(thresholdKJ)
	if ftp > 0 {
		summary["ftp_w"] = units(ftp)
	}

	ps := power.FromMetricSamples(in)
	if len(ps) == 0 {
		return Result{Summary: summary}
	}

	rate := samples.EffectiveSampleRate(in, ctx.Activity)
	crossing := power.CrossThreshold(ps, thresholdKJ*1000, 0, 1/rate)
	summary["crossed"] = flag(crossing.Crossed)
	if !crossing.Crossed {
		summary["segment_duration_s"] = units(0)
		summary["segment_energy_kj"] = units(0)
		if ftp > 0 {
			summary["durable_tss"] = units(0)
		}
		return Result{Summary: summary}
	}

	summary["crossing_time_s"] = units(crossing.T)
	summary["segment_duration_s"] = units(crossing.AfterSeconds)
	summary["segment_energy_kj"] = units(crossing.AboveJoules / 1000)

	segment := ps[crossing.Index:]
	np := power.NormalizedPower(segment, power.WindowSamples(npWindowSeconds, rate))
	summary["segment_np_w"] = roundPtr(np, precisionUnits)

	var avg *float64
	if crossing.AfterSeconds > 0 {
		v := crossing.AboveJoules / crossing.AfterSeconds
		avg = &v
	}
	summary["segment_avg_power_w"] = roundPtr(avg, precisionUnits)

	effective := np
	if effective == nil {
		effective = avg
	}
	if ftp > 0 && effective != nil {
		summary["durable_tss"] = units(TSS(*effective, crossing.AfterSeconds, ftp))
	}

	return Result{Summary: summary}
}

package metrics

import (
	"errors"
	"fmt"

	"ridemetrics/internal/samples"
)

// ErrUnknownMetric is returned for a key with no registered module.
var ErrUnknownMetric = errors.New("unknown metric")

// Key identifies a metric module.
type Key string

const (
	KeyHCSR                  Key = "hcsr"
	KeyNormalizedPower       Key = "normalized_power"
	KeyIntervalEfficiency    Key = "interval_efficiency"
	KeyEfficiencyCurve       Key = "efficiency_curve"
	KeyLateAerobicEfficiency Key = "late_aerobic_efficiency"
	KeyWPrimeBalance         Key = "w_prime_balance"
	KeyDurableTSS            Key = "durable_tss"
)

// Definition is the static description of a metric. Results are stored
// against Key and Version, so any change to a module's output bumps Version.
type Definition struct {
	Key           Key                `json:"key"`
	Name          string             `json:"name"`
	Version       int                `json:"version"`
	Description   string             `json:"description"`
	Units         string             `json:"units,omitempty"`
	ComputeConfig map[string]float64 `json:"compute_config,omitempty"`
}

// ComputeFunc is the signature shared by every module.
type ComputeFunc func(in []samples.MetricSample, ctx Context) Result

type module struct {
	def     Definition
	compute ComputeFunc
}

// order fixes the iteration order of the registry.
var order = []Key{
	KeyNormalizedPower,
	KeyHCSR,
	KeyIntervalEfficiency,
	KeyEfficiencyCurve,
	KeyLateAerobicEfficiency,
	KeyWPrimeBalance,
	KeyDurableTSS,
}

var modules = map[Key]module{
	KeyHCSR: {
		def: Definition{
			Key:         KeyHCSR,
			Name:        "HR-to-cadence scaling",
			Version:     2,
			Description: "Robust fit of median heart rate against 10 rpm cadence bins, with piecewise and first/second half comparisons.",
			Units:       "bpm/rpm",
			ComputeConfig: map[string]float64{
				"bin_width_rpm":      hcsrBinWidth,
				"min_cadence_rpm":    hcsrMinCadence,
				"open_bin_rpm":       hcsrOpenBinCadence,
				"min_dwell_seconds":  hcsrMinDwellSeconds,
				"min_piecewise_bins": hcsrMinPiecewise,
			},
		},
		compute: ComputeHCSR,
	},
	KeyNormalizedPower: {
		def: Definition{
			Key:         KeyNormalizedPower,
			Name:        "Normalized power",
			Version:     1,
			Description: "Fourth-power mean of 30 s rolling power with variability index and coasting share.",
			Units:       "W",
			ComputeConfig: map[string]float64{
				"window_seconds":     npWindowSeconds,
				"coasting_max_watts": coastingMaxWatts,
			},
		},
		compute: ComputeNormalizedPower,
	},
	KeyIntervalEfficiency: {
		def: Definition{
			Key:           KeyIntervalEfficiency,
			Name:          "Interval efficiency",
			Version:       1,
			Description:   "Hourly averages of power, heart rate, cadence and temperature with watts per beat.",
			Units:         "W/bpm",
			ComputeConfig: map[string]float64{"interval_seconds": intervalSeconds},
		},
		compute: ComputeIntervalEfficiency,
	},
	KeyEfficiencyCurve: {
		def: Definition{
			Key:         KeyEfficiencyCurve,
			Name:        "Watts/HR efficiency curve",
			Version:     1,
			Description: "Per-window watts per beat distribution and its drift across the ride.",
			Units:       "W/bpm",
			ComputeConfig: map[string]float64{
				"window_seconds":       curveWindowSeconds,
				"decoupling_min_pairs": decouplingMinPairs,
			},
		},
		compute: ComputeEfficiencyCurve,
	},
	KeyLateAerobicEfficiency: {
		def: Definition{
			Key:         KeyLateAerobicEfficiency,
			Name:        "Late aerobic efficiency",
			Version:     1,
			Description: "Watts per beat over minutes [duration-35, duration-5).",
			Units:       "W/bpm",
			ComputeConfig: map[string]float64{
				"start_before_end_seconds": lateWindowStartBeforeEnd,
				"end_before_end_seconds":   lateWindowEndBeforeEnd,
			},
		},
		compute: ComputeLateAerobicEfficiency,
	},
	KeyWPrimeBalance: {
		def: Definition{
			Key:         KeyWPrimeBalance,
			Name:        "W′ balance",
			Version:     1,
			Description: "Critical-power model of anaerobic work capacity depletion and recovery.",
			Units:       "J",
			ComputeConfig: map[string]float64{
				"cp_quantile":         cpEstimateQuantile,
				"min_capacity_joules": minWPrimeJoules,
				"capacity_cp_seconds": wPrimeSecondsAtCP,
				"max_series_points":   wbalMaxSeriesPoints,
			},
		},
		compute: ComputeWPrimeBalance,
	},
	KeyDurableTSS: {
		def: Definition{
			Key:         KeyDurableTSS,
			Name:        "Durable TSS",
			Version:     1,
			Description: "Training stress accumulated after cumulative work passes the depth threshold.",
			Units:       "TSS",
			ComputeConfig: map[string]float64{
				"default_threshold_kj": DefaultDepthThresholdKJ,
			},
		},
		compute: ComputeDurableTSS,
	},
}

// Keys returns every registered key in a stable order.
func Keys() []Key {
	out := make([]Key, len(order))
	copy(out, order)
	return out
}

// Definitions returns every registered definition in a stable order.
func Definitions() []Definition {
	out := make([]Definition, 0, len(order))
	for _, k := range order {
		out = append(out, modules[k].def)
	}
	return out
}

// ParseKey validates a metric key.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if _, ok := modules[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return k, nil
}

// Lookup returns the definition for key.
func Lookup(key Key) (Definition, error) {
	m, ok := modules[key]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownMetric, key)
	}
	return m.def, nil
}

// Compute runs the module registered for key.
func Compute(key Key, in []samples.MetricSample, ctx Context) (Result, error) {
	m, ok := modules[key]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMetric, key)
	}
	return m.compute(in, ctx), nil
}

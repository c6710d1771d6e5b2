// Package metrics holds the per-activity metric modules. Every module is a
// pure function of the samples and the Context it is given; absent or
// insufficient data shows up as nil values in the Summary, never as errors.
package metrics

import (
	"math"

	"ridemetrics/internal/samples"
)

// Summary maps output names to rounded values. A nil value means the metric
// could not be determined from the data.
type Summary map[string]*float64

// SeriesPoint is one bucket, window or step of a metric's series.
type SeriesPoint map[string]*float64

// Result is the output of a metric module.
type Result struct {
	Summary Summary       `json:"summary"`
	Series  []SeriesPoint `json:"series,omitempty"`
}

// Value returns the named summary value and whether it was determined.
func (r Result) Value(name string) (float64, bool) {
	v := r.Summary[name]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Context carries everything a module needs besides the samples.
type Context struct {
	Activity samples.Activity

	// FTP is the athlete's declared threshold power; 0 means unknown.
	FTP float64
	// EstimatedFTP is a history-derived estimate used when FTP is unknown.
	EstimatedFTP float64
	// CP and WPrime override the critical-power model; 0 means estimate.
	CP     float64
	WPrime float64

	DepthThresholdKJ float64
	DepthMinPowerW   float64
}

// Defaults for the cumulative-work threshold used by depth and durable TSS.
const (
	DefaultDepthThresholdKJ = 1000.0
	DefaultDepthMinPowerW   = 100.0
)

func (c Context) depthThresholdKJ() float64 {
	if c.DepthThresholdKJ > 0 {
		return c.DepthThresholdKJ
	}
	return DefaultDepthThresholdKJ
}

func (c Context) depthMinPowerW() float64 {
	if c.DepthMinPowerW > 0 {
		return c.DepthMinPowerW
	}
	return DefaultDepthMinPowerW
}

// ftp returns the declared FTP, falling back to the estimate.
func (c Context) ftp() float64 {
	if c.FTP > 0 {
		return c.FTP
	}
	if c.EstimatedFTP > 0 {
		return c.EstimatedFTP
	}
	return 0
}

// Output precision in decimal places.
const (
	precisionUnits = 1 // watts, bpm, rpm, seconds, kJ, joules, TSS
	precisionRatio = 4 // ratios, shares, slopes, R²
)

// Round rounds v to places decimals and returns nil for non-finite values.
func Round(v float64, places int) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale
	if r == 0 {
		r = 0 // normalize -0
	}
	return &r
}

func roundPtr(p *float64, places int) *float64 {
	if p == nil {
		return nil
	}
	return Round(*p, places)
}

func units(v float64) *float64 { return Round(v, precisionUnits) }

func ratio(v float64) *float64 { return Round(v, precisionRatio) }

func count(n int) *float64 {
	v := float64(n)
	return &v
}

func flag(b bool) *float64 {
	if b {
		return count(1)
	}
	return count(0)
}

// nulls returns a summary with every key set to nil.
func nulls(keys ...string) Summary {
	s := make(Summary, len(keys))
	for _, k := range keys {
		s[k] = nil
	}
	return s
}

// mean accumulates a running average over nullable readings.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(p *float64) {
	if samples.Valid(p) {
		m.sum += *p
		m.n++
	}
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

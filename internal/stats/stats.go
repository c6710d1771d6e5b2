// Package stats holds the small numeric kernel shared by the metric modules:
// order statistics, least-squares and Theil-Sen line fits, and R² scoring.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned when a reduction is asked to summarize nothing.
// Callers are expected to check lengths first.
var ErrEmptyInput = errors.New("stats: empty input")

// Point is an (x, y) pair.
type Point struct {
	X float64
	Y float64
}

// Regression is the result of a straight-line fit.
type Regression struct {
	Slope     float64
	Intercept float64
	R2        float64
	SSRes     float64
	SSTot     float64
}

// Median returns the middle value of values, averaging the two middle values
// for even lengths. The input is not modified.
func Median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}
	sorted := sortedCopy(values)
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2, nil
}

// Quantile returns the q-quantile of values using linear interpolation
// between the order statistics bracketing index (n-1)*q. q is clamped to [0, 1].
func Quantile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}
	q = math.Max(0, math.Min(1, q))
	sorted := sortedCopy(values)
	return quantileSorted(sorted, q), nil
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	pos := float64(n-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// LinearRegression fits y = slope*x + intercept by ordinary least squares.
// When every x is identical the slope is 0 and the intercept is the mean of y.
// R2 is 1 when all y values are identical.
func LinearRegression(points []Point) (Regression, error) {
	n := len(points)
	if n == 0 {
		return Regression{}, ErrEmptyInput
	}

	xs, ys := split(points)
	var sumX, sumX2 float64
	for _, x := range xs {
		sumX += x
		sumX2 += x * x
	}
	denom := float64(n)*sumX2 - sumX*sumX

	var reg Regression
	if denom == 0 {
		reg.Intercept = stat.Mean(ys, nil)
	} else {
		reg.Intercept, reg.Slope = stat.LinearRegression(xs, ys, nil, false)
	}
	reg.R2, reg.SSRes, reg.SSTot = r2(points, reg.Slope, reg.Intercept)
	return reg, nil
}

// TheilSen returns the median-of-pairwise-slopes fit, with the intercept taken
// as the median of y - slope*x. Pairs sharing an x value are ignored. It returns
// nil when fewer than two points or no pair with distinct x exists.
func TheilSen(points []Point) *Regression {
	if len(points) < 2 {
		return nil
	}

	slopes := make([]float64, 0, len(points)*(len(points)-1)/2)
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			dx := points[j].X - points[i].X
			if dx == 0 {
				continue
			}
			slopes = append(slopes, (points[j].Y-points[i].Y)/dx)
		}
	}
	if len(slopes) == 0 {
		return nil
	}

	slope, _ := Median(slopes)
	residuals := make([]float64, len(points))
	for i, p := range points {
		residuals[i] = p.Y - slope*p.X
	}
	intercept, _ := Median(residuals)

	reg := Regression{Slope: slope, Intercept: intercept}
	reg.R2, reg.SSRes, reg.SSTot = r2(points, slope, intercept)
	return &reg
}

// ComputeR2 scores a given line against points. It returns 1 when the
// points have no variance in y, and 0 for an empty input.
func ComputeR2(points []Point, slope, intercept float64) float64 {
	if len(points) == 0 {
		return 0
	}
	v, _, _ := r2(points, slope, intercept)
	return v
}

// Residuals returns the residual and total sums of squares of a line.
func Residuals(points []Point, slope, intercept float64) (ssRes, ssTot float64) {
	if len(points) == 0 {
		return 0, 0
	}
	_, ssRes, ssTot = r2(points, slope, intercept)
	return ssRes, ssTot
}

func r2(points []Point, slope, intercept float64) (value, ssRes, ssTot float64) {
	_, ys := split(points)
	mean := floats.Sum(ys) / float64(len(ys))
	for _, p := range points {
		pred := slope*p.X + intercept
		ssRes += (p.Y - pred) * (p.Y - pred)
		ssTot += (p.Y - mean) * (p.Y - mean)
	}
	if ssTot == 0 {
		return 1, ssRes, ssTot
	}
	return 1 - ssRes/ssTot, ssRes, ssTot
}

func split(points []Point) (xs, ys []float64) {
	xs = make([]float64, len(points))
	ys = make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

package metrics

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// inputs returns the context values that key's output depends on besides
// the samples themselves.
func inputs(key Key, ctx Context) []float64 {
	v := []float64{ctx.Activity.DurationSec, ctx.Activity.SampleRateHz}
	switch key {
	case KeyDurableTSS:
		v = append(v, ctx.ftp(), ctx.depthThresholdKJ())
	case KeyWPrimeBalance:
		v = append(v, ctx.CP, ctx.WPrime)
	}
	return v
}

// InputsHash fingerprints the context a result of key was computed with.
// A cached result whose hash differs from the current one is stale.
func InputsHash(key Key, ctx Context) (string, error) {
	if _, ok := modules[key]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, key)
	}

	h := xxhash.New()
	var buf [8]byte
	for _, v := range inputs(key, ctx) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

package samples

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	in := []MetricSample{
		{T: 2, Power: Float(200)},
		{T: nan, Power: Float(100)},
		{T: 0, Power: &nan, HeartRate: Float(120)},
		{T: 1, Cadence: &inf},
	}

	out := Sanitize(in)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{0, 1, 2}, []float64{out[0].T, out[1].T, out[2].T})
	assert.Nil(t, out[0].Power)
	assert.Equal(t, 120.0, *out[0].HeartRate)
	assert.Nil(t, out[1].Cadence)

	// input untouched
	assert.True(t, math.IsNaN(*in[2].Power))
}

func TestEffectiveSampleRate(t *testing.T) {
	halfHz := make([]MetricSample, 30)
	for i := range halfHz {
		halfHz[i] = MetricSample{T: float64(i * 2)}
	}

	tests := []struct {
		name     string
		samples  []MetricSample
		activity Activity
		want     float64
	}{
		{"declared rate wins", halfHz, Activity{SampleRateHz: 4}, 4},
		{"inferred from gaps", halfHz, Activity{}, 0.5},
		{"negative rate ignored", halfHz, Activity{SampleRateHz: -1}, 0.5},
		{"count over duration", []MetricSample{{T: 5}}, Activity{DurationSec: 10}, 0.1},
		{"default", nil, Activity{}, 1},
		{"duplicate timestamps", []MetricSample{{T: 3}, {T: 3}}, Activity{}, 1},
		{"median of even gap count", []MetricSample{{T: 0}, {T: 1}, {T: 2}, {T: 5}, {T: 9}}, Activity{}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EffectiveSampleRate(tt.samples, tt.activity), 1e-12)
		})
	}
}

func TestDurations(t *testing.T) {
	t.Run("uses neighbor spacing", func(t *testing.T) {
		in := []MetricSample{{T: 0}, {T: 2}, {T: 4}, {T: 6}}
		assert.Equal(t, []float64{2, 2, 2, 2}, Durations(in, 2))
	})

	t.Run("long pause replaced by nominal", func(t *testing.T) {
		in := []MetricSample{{T: 0}, {T: 1}, {T: 100}, {T: 101}}
		assert.Equal(t, []float64{1, 1, 1, 1}, Durations(in, 1))
	})

	t.Run("duplicate timestamp", func(t *testing.T) {
		in := []MetricSample{{T: 0}, {T: 0}, {T: 1}}
		assert.Equal(t, []float64{1, 1, 1}, Durations(in, 1))
	})

	t.Run("single sample", func(t *testing.T) {
		assert.Equal(t, []float64{0.5}, Durations([]MetricSample{{T: 9}}, 0.5))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Durations(nil, 1))
	})
}

func TestDownsample(t *testing.T) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	for _, max := range []int{1, 2, 3, 7, 100, 999, 1000, 5000} {
		out := Downsample(items, max)
		assert.LessOrEqual(t, len(out), max)
		require.NotEmpty(t, out)
		assert.Equal(t, 999, out[len(out)-1], "max=%d", max)
		for i := 1; i < len(out); i++ {
			assert.Greater(t, out[i], out[i-1])
		}
	}

	assert.Nil(t, Downsample(items, 0))
	assert.Nil(t, Downsample([]int{}, 10))
}

func TestFromStreams(t *testing.T) {
	s := &Streams{
		Time:      []float64{0, 1, 2},
		HeartRate: Ints([]int{120, 121, 122}),
		Power:     Floats([]float64{200, math.NaN()}),
	}

	out := FromStreams(s)
	require.Len(t, out, 3)
	assert.Equal(t, 200.0, *out[0].Power)
	assert.Nil(t, out[1].Power)
	assert.Nil(t, out[2].Power)
	assert.Nil(t, out[2].Cadence)
	assert.Equal(t, 122.0, *out[2].HeartRate)

	counts := Count(out)
	assert.Equal(t, 3, counts[ChannelHeartRate])
	assert.Equal(t, 1, counts[ChannelPower])
	assert.Zero(t, counts[ChannelCadence])

	assert.Nil(t, FromStreams(nil))
}

func TestDuration(t *testing.T) {
	in := []MetricSample{{T: 10}, {T: 70}}
	assert.Equal(t, 300.0, Duration(in, Activity{DurationSec: 300}))
	assert.Equal(t, 60.0, Duration(in, Activity{}))
	assert.Equal(t, 0.0, Duration(nil, Activity{}))
}

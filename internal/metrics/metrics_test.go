package metrics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridemetrics/internal/samples"
)

// ride builds n samples spaced dt seconds apart.
func ride(n int, dt float64, fill func(i int, s *samples.MetricSample)) []samples.MetricSample {
	out := make([]samples.MetricSample, n)
	for i := range out {
		out[i].T = float64(i) * dt
		if fill != nil {
			fill(i, &out[i])
		}
	}
	return out
}

func requireValue(t *testing.T, r Result, key string) float64 {
	t.Helper()
	v, ok := r.Value(key)
	require.True(t, ok, "expected %s to be set", key)
	return v
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.2346, *Round(1.23456, 4))
	assert.Equal(t, 2.0, *Round(1.96, 1))
	assert.Nil(t, Round(0/zero(), 2))
	neg := Round(-0.00001, 2)
	require.NotNil(t, neg)
	b, _ := json.Marshal(*neg)
	assert.Equal(t, "0", string(b))
}

func zero() float64 { return 0 }

func TestRegistry(t *testing.T) {
	keys := Keys()
	require.Len(t, keys, 7)

	seen := map[Key]bool{}
	for _, k := range keys {
		def, err := Lookup(k)
		require.NoError(t, err)
		assert.Equal(t, k, def.Key)
		assert.Positive(t, def.Version)
		assert.NotEmpty(t, def.Name)
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}

	_, err := Lookup("vo2max")
	assert.ErrorIs(t, err, ErrUnknownMetric)

	_, err = Compute("vo2max", nil, Context{})
	assert.ErrorIs(t, err, ErrUnknownMetric)

	k, err := ParseKey("hcsr")
	require.NoError(t, err)
	assert.Equal(t, KeyHCSR, k)

	_, err = ParseKey("HCSR")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestModulesTolerateDegenerateInput(t *testing.T) {
	inputs := map[string][]samples.MetricSample{
		"empty":     nil,
		"all null":  ride(120, 1, nil),
		"single":    {{T: 0, Power: samples.Float(200), HeartRate: samples.Float(140), Cadence: samples.Float(90)}},
		"same time": {{T: 5, Power: samples.Float(200)}, {T: 5, Power: samples.Float(210)}},
		"far future": {
			{T: 0, Power: samples.Float(200), HeartRate: samples.Float(140)},
			{T: 1e30, Power: samples.Float(210), HeartRate: samples.Float(150)},
		},
	}

	for name, in := range inputs {
		for _, k := range Keys() {
			t.Run(name+"/"+string(k), func(t *testing.T) {
				ctx := Context{Activity: samples.Activity{ID: "a", DurationSec: 0}}
				res, err := Compute(k, in, ctx)
				require.NoError(t, err)
				require.NotNil(t, res.Summary)

				_, err = json.Marshal(res)
				require.NoError(t, err, "result must be JSON encodable (no NaN)")
			})
		}
	}
}

func TestModulesAreIdempotent(t *testing.T) {
	in := ride(7200, 1, func(i int, s *samples.MetricSample) {
		s.Power = samples.Float(180 + float64(i%97))
		s.HeartRate = samples.Float(120 + float64(i%31))
		s.Cadence = samples.Float(60 + float64(i%53))
		s.Temperature = samples.Float(18 + float64(i%7)/10)
	})
	ctx := Context{Activity: samples.Activity{ID: "a", DurationSec: 7200}, FTP: 250}

	for _, k := range Keys() {
		a, err := Compute(k, in, ctx)
		require.NoError(t, err)
		b, err := Compute(k, in, ctx)
		require.NoError(t, err)

		ja, err := json.Marshal(a)
		require.NoError(t, err)
		jb, err := json.Marshal(b)
		require.NoError(t, err)
		assert.Equal(t, string(ja), string(jb), "metric %s", k)
	}
}

func TestInputsHash(t *testing.T) {
	base := Context{Activity: samples.Activity{ID: "a", DurationSec: 3600}, FTP: 250, CP: 240}
	moved := base
	moved.FTP = 300
	moved.CP = 260

	hash := func(k Key, ctx Context) string {
		t.Helper()
		h, err := InputsHash(k, ctx)
		require.NoError(t, err)
		return h
	}

	assert.NotEqual(t, hash(KeyDurableTSS, base), hash(KeyDurableTSS, moved))
	assert.NotEqual(t, hash(KeyWPrimeBalance, base), hash(KeyWPrimeBalance, moved))
	assert.Equal(t, hash(KeyHCSR, base), hash(KeyHCSR, moved), "hcsr does not read ftp or cp")
	assert.Equal(t, hash(KeyDurableTSS, base), hash(KeyDurableTSS, base))

	// an estimate only matters while no ftp is declared
	estimated := base
	estimated.EstimatedFTP = 280
	assert.Equal(t, hash(KeyDurableTSS, base), hash(KeyDurableTSS, estimated))
	estimated.FTP = 0
	assert.NotEqual(t, hash(KeyDurableTSS, base), hash(KeyDurableTSS, estimated))

	renamed := base
	renamed.Activity.ID = "b"
	assert.Equal(t, hash(KeyDurableTSS, base), hash(KeyDurableTSS, renamed))

	_, err := InputsHash("vo2max", base)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

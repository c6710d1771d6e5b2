package samples

// Streams is a raw, column-oriented recording as delivered by an upstream
// source: one time column plus optional channel columns of the same length.
// A missing channel is a nil slice; a missing reading inside a present channel
// is a nil element.
type Streams struct {
	Time        []float64
	HeartRate   []*float64
	Cadence     []*float64
	Power       []*float64
	Speed       []*float64
	Elevation   []*float64
	Temperature []*float64
}

// Len returns the number of time steps.
func (s *Streams) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Time)
}

// FromStreams zips the columns into canonical samples. Channels shorter than
// the time column leave their trailing readings empty. The result is sanitized.
func FromStreams(s *Streams) []MetricSample {
	n := s.Len()
	if n == 0 {
		return nil
	}

	out := make([]MetricSample, n)
	for i := 0; i < n; i++ {
		out[i] = MetricSample{
			T:           s.Time[i],
			HeartRate:   at(s.HeartRate, i),
			Cadence:     at(s.Cadence, i),
			Power:       at(s.Power, i),
			Speed:       at(s.Speed, i),
			Elevation:   at(s.Elevation, i),
			Temperature: at(s.Temperature, i),
		}
	}
	return Sanitize(out)
}

func at(col []*float64, i int) *float64 {
	if i >= len(col) {
		return nil
	}
	return col[i]
}

// Ints converts an integer column into nullable readings.
func Ints(values []int) []*float64 {
	if values == nil {
		return nil
	}
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = Float(float64(v))
	}
	return out
}

// Floats converts a float column into nullable readings, dropping non-finite values.
func Floats(values []float64) []*float64 {
	if values == nil {
		return nil
	}
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = Float(v)
	}
	return out
}

// Channel names used by Count.
const (
	ChannelHeartRate   = "heart_rate"
	ChannelCadence     = "cadence"
	ChannelPower       = "power"
	ChannelSpeed       = "speed"
	ChannelElevation   = "elevation"
	ChannelTemperature = "temperature"
)

// Count returns how many samples carry a reading on each channel.
func Count(in []MetricSample) map[string]int {
	counts := map[string]int{}
	for _, s := range in {
		if Valid(s.HeartRate) {
			counts[ChannelHeartRate]++
		}
		if Valid(s.Cadence) {
			counts[ChannelCadence]++
		}
		if Valid(s.Power) {
			counts[ChannelPower]++
		}
		if Valid(s.Speed) {
			counts[ChannelSpeed]++
		}
		if Valid(s.Elevation) {
			counts[ChannelElevation]++
		}
		if Valid(s.Temperature) {
			counts[ChannelTemperature]++
		}
	}
	return counts
}

package strava

import (
	"strconv"
	"time"

	"ridemetrics/internal/samples"
)

// Activity is a Strava activity summary from /athlete/activities
type Activity struct {
	ID             int64     `json:"id"`
	Athlete        Athlete   `json:"athlete"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	SportType      string    `json:"sport_type"`
	StartDate      time.Time `json:"start_date"`
	Timezone       string    `json:"timezone"`
	Distance       float64   `json:"distance"`     // meters
	MovingTime     int       `json:"moving_time"`  // seconds
	ElapsedTime    int       `json:"elapsed_time"` // seconds
	AverageWatts   float64   `json:"average_watts"`
	WeightedWatts  float64   `json:"weighted_average_watts"`
	Kilojoules     float64   `json:"kilojoules"`
	DeviceWatts    bool      `json:"device_watts"`
	HasHeartrate   bool      `json:"has_heartrate"`
	AverageCadence float64   `json:"average_cadence"`
	Trainer        bool      `json:"trainer"`
}

// Athlete represents a Strava athlete (minimal info in activity response)
type Athlete struct {
	ID int64 `json:"id"`
}

// rideTypes are the sport types analyzed as rides
var rideTypes = map[string]bool{
	"Ride":             true,
	"VirtualRide":      true,
	"GravelRide":       true,
	"MountainBikeRide": true,
	"EBikeRide":        false,
}

// IsRide reports whether the activity is a ride. sport_type is preferred;
// older payloads only carry type.
func (a Activity) IsRide() bool {
	if a.SportType != "" {
		return rideTypes[a.SportType]
	}
	return rideTypes[a.Type]
}

// StringID returns the activity ID as stored locally
func (a Activity) StringID() string {
	return strconv.FormatInt(a.ID, 10)
}

// Streams is the activity stream payload. Strava returns streams keyed by
// type when key_by_type=true.
type Streams struct {
	Time           *StreamData[float64]  `json:"time"`
	Heartrate      *StreamData[*int]     `json:"heartrate"`
	Cadence        *StreamData[*int]     `json:"cadence"`
	Watts          *StreamData[*int]     `json:"watts"`
	VelocitySmooth *StreamData[*float64] `json:"velocity_smooth"`
	Altitude       *StreamData[*float64] `json:"altitude"`
	Temp           *StreamData[*float64] `json:"temp"`
}

// StreamData represents a single stream type
type StreamData[T any] struct {
	Data         []T    `json:"data"`
	SeriesType   string `json:"series_type"`
	OriginalSize int    `json:"original_size"`
	Resolution   string `json:"resolution"`
}

// Len returns the length of the stream, or 0 if nil
func (s *Streams) Len() int {
	if s == nil || s.Time == nil {
		return 0
	}
	return len(s.Time.Data)
}

// HasPower returns true if power data exists
func (s *Streams) HasPower() bool {
	return s != nil && s.Watts != nil && len(s.Watts.Data) > 0
}

func ints(s *StreamData[*int]) []*float64 {
	if s == nil {
		return nil
	}
	out := make([]*float64, len(s.Data))
	for i, v := range s.Data {
		if v != nil {
			out[i] = samples.Float(float64(*v))
		}
	}
	return out
}

func floats(s *StreamData[*float64]) []*float64 {
	if s == nil {
		return nil
	}
	return s.Data
}

// Samples converts the streams into engine samples
func (s *Streams) Samples() []samples.MetricSample {
	if s.Len() == 0 {
		return nil
	}
	return samples.FromStreams(&samples.Streams{
		Time:        s.Time.Data,
		HeartRate:   ints(s.Heartrate),
		Cadence:     ints(s.Cadence),
		Power:       ints(s.Watts),
		Speed:       floats(s.VelocitySmooth),
		Elevation:   floats(s.Altitude),
		Temperature: floats(s.Temp),
	})
}

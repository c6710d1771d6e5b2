// Package fitfile reads ride recordings from Garmin FIT files.
package fitfile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tormoder/fit"

	"ridemetrics/internal/samples"
	"ridemetrics/internal/store"
)

var (
	// ErrNoRecords is returned for files without any timestamped record
	ErrNoRecords = errors.New("fit file has no records")
	// ErrNotCycling is returned when the session sport is not cycling
	ErrNotCycling = errors.New("fit file is not a cycling activity")
)

// idSpace namespaces activity IDs derived from FIT start times, so the same
// recording imported twice maps to the same activity
var idSpace = uuid.MustParse("5f0d3c8e-2b7a-4c61-9a55-1e8f4d7b6a20")

// Ride is a decoded FIT recording
type Ride struct {
	Activity store.Activity
	Samples  []samples.MetricSample
}

// ReadFile decodes the FIT file at path
func ReadFile(path string) (*Ride, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Decode(f, name)
}

// Decode reads a FIT activity from r
func Decode(r io.Reader, name string) (*Ride, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}

	var session *fit.SessionMsg
	if len(activity.Sessions) > 0 {
		session = activity.Sessions[0]
		switch session.Sport {
		case fit.SportCycling, fit.SportGeneric, fit.SportInvalid:
		default:
			return nil, fmt.Errorf("%w: %v", ErrNotCycling, session.Sport)
		}
	}

	var start time.Time
	out := make([]samples.MetricSample, 0, len(activity.Records))
	for _, rec := range activity.Records {
		ts := validTime(rec.Timestamp)
		if ts.IsZero() {
			continue
		}
		if start.IsZero() {
			start = ts
		}
		out = append(out, sample(rec, ts.Sub(start).Seconds()))
	}
	if len(out) == 0 {
		return nil, ErrNoRecords
	}
	out = samples.Sanitize(out)

	if session != nil {
		if t := validTime(session.StartTime); !t.IsZero() && t.Before(start) {
			// records are relative to the first one; shift onto the session start
			offset := start.Sub(t).Seconds()
			for i := range out {
				out[i].T += offset
			}
			start = t
		}
	}

	duration := samples.Span(out)
	if session != nil {
		if elapsed := session.GetTotalElapsedTimeScaled(); finite(elapsed) && elapsed > 0 {
			duration = elapsed
		}
	}

	ride := &Ride{
		Activity: store.Activity{
			ID:            uuid.NewSHA1(idSpace, []byte(start.UTC().Format(time.RFC3339Nano))).String(),
			Name:          name,
			Source:        store.SourceFIT,
			SportType:     "Ride",
			StartTime:     start.UTC(),
			DurationSec:   duration,
			SamplesSynced: true,
		},
		Samples: out,
	}
	ride.Activity.SampleRateHz = samples.EffectiveSampleRate(out, ride.Activity.Engine())
	return ride, nil
}

func sample(rec *fit.RecordMsg, t float64) samples.MetricSample {
	s := samples.MetricSample{T: t}
	if rec.HeartRate != math.MaxUint8 {
		s.HeartRate = samples.Float(float64(rec.HeartRate))
	}
	if rec.Cadence != math.MaxUint8 {
		s.Cadence = samples.Float(float64(rec.Cadence))
	}
	if rec.Power != math.MaxUint16 {
		s.Power = samples.Float(float64(rec.Power))
	}
	if rec.Temperature != math.MaxInt8 {
		s.Temperature = samples.Float(float64(rec.Temperature))
	}

	if v := rec.GetEnhancedSpeedScaled(); finite(v) && v >= 0 {
		s.Speed = samples.Float(v)
	} else if v := rec.GetSpeedScaled(); finite(v) && v >= 0 {
		s.Speed = samples.Float(v)
	}
	if v := rec.GetEnhancedAltitudeScaled(); finite(v) {
		s.Elevation = samples.Float(v)
	} else if v := rec.GetAltitudeScaled(); finite(v) {
		s.Elevation = samples.Float(v)
	}
	return s
}

func validTime(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

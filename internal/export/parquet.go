// Package export writes normalized samples and daily timelines as Parquet.
package export

import (
	"fmt"
	"strings"
	"time"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"ridemetrics/internal/aggregate"
	"ridemetrics/internal/samples"
)

// parallelism of the parquet-go column writers
const writerParallelism = 4

type sampleRow struct {
	ActivityID   string   `parquet:"name=activity_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	TSUTCISO     string   `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8"`
	ElapsedS     float64  `parquet:"name=elapsed_s, type=DOUBLE"`
	PowerW       *float64 `parquet:"name=power_w, type=DOUBLE, repetitiontype=OPTIONAL"`
	HRBPM        *float64 `parquet:"name=hr_bpm, type=DOUBLE, repetitiontype=OPTIONAL"`
	CadenceRPM   *float64 `parquet:"name=cadence_rpm, type=DOUBLE, repetitiontype=OPTIONAL"`
	SpeedMPS     *float64 `parquet:"name=speed_mps, type=DOUBLE, repetitiontype=OPTIONAL"`
	ElevationM   *float64 `parquet:"name=elevation_m, type=DOUBLE, repetitiontype=OPTIONAL"`
	TemperatureC *float64 `parquet:"name=temperature_c, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type dayRow struct {
	Date          string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalTSS      float64  `parquet:"name=total_tss, type=DOUBLE"`
	TotalKJ       float64  `parquet:"name=total_kj, type=DOUBLE"`
	DepthKJ       float64  `parquet:"name=depth_kj, type=DOUBLE"`
	ActivityCount int64    `parquet:"name=activity_count, type=INT64"`
	ActivityIDs   string   `parquet:"name=activity_ids, type=BYTE_ARRAY, convertedtype=UTF8"`
	MovingAverage *float64 `parquet:"name=moving_average_kj, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func sampleRows(activity samples.Activity, in []samples.MetricSample) []sampleRow {
	rows := make([]sampleRow, len(in))
	for i, s := range in {
		ts := activity.StartTime.Add(time.Duration(s.T * float64(time.Second)))
		rows[i] = sampleRow{
			ActivityID:   activity.ID,
			TSUTCISO:     ts.UTC().Format(time.RFC3339Nano),
			ElapsedS:     s.T,
			PowerW:       s.Power,
			HRBPM:        s.HeartRate,
			CadenceRPM:   s.Cadence,
			SpeedMPS:     s.Speed,
			ElevationM:   s.Elevation,
			TemperatureC: s.Temperature,
		}
	}
	return rows
}

func newDayRow(d aggregate.DayAggregation) dayRow {
	return dayRow{
		Date:          d.Date.Format("2006-01-02"),
		TotalTSS:      d.TotalTSS,
		TotalKJ:       d.TotalKJ,
		DepthKJ:       d.DepthKJ,
		ActivityCount: int64(len(d.ActivityIDs)),
		ActivityIDs:   strings.Join(d.ActivityIDs, ","),
	}
}

func timelineRows(days []aggregate.DayAggregation) []dayRow {
	rows := make([]dayRow, len(days))
	for i, d := range days {
		rows[i] = newDayRow(d)
	}
	return rows
}

func depthRows(days []aggregate.DepthDay) []dayRow {
	rows := make([]dayRow, len(days))
	for i, d := range days {
		rows[i] = newDayRow(d.DayAggregation)
		ma := d.MovingAverage
		rows[i].MovingAverage = &ma
	}
	return rows
}

// SamplesParquet encodes an activity's samples as a Parquet file
func SamplesParquet(activity samples.Activity, in []samples.MetricSample) ([]byte, error) {
	return toBytes(sampleRows(activity, in))
}

// TimelineParquet encodes a daily timeline as a Parquet file
func TimelineParquet(days []aggregate.DayAggregation) ([]byte, error) {
	return toBytes(timelineRows(days))
}

// DepthTimelineParquet encodes a depth timeline, moving average included
func DepthTimelineParquet(days []aggregate.DepthDay) ([]byte, error) {
	return toBytes(depthRows(days))
}

// WriteSamplesFile writes SamplesParquet output to path
func WriteSamplesFile(path string, activity samples.Activity, in []samples.MetricSample) error {
	return toFile(path, sampleRows(activity, in))
}

// WriteTimelineFile writes TimelineParquet output to path
func WriteTimelineFile(path string, days []aggregate.DayAggregation) error {
	return toFile(path, timelineRows(days))
}

// WriteDepthTimelineFile writes DepthTimelineParquet output to path
func WriteDepthTimelineFile(path string, days []aggregate.DepthDay) error {
	return toFile(path, depthRows(days))
}

func toBytes[T any](rows []T) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := write(fw, rows); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

func toFile[T any](path string, rows []T) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(fw, rows); err != nil {
		fw.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return fw.Close()
}

func write[T any](fw source.ParquetFile, rows []T) error {
	pw, err := writer.NewParquetWriter(fw, new(T), writerParallelism)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	return pw.WriteStop()
}

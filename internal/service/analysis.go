package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ridemetrics/internal/aggregate"
	"ridemetrics/internal/config"
	"ridemetrics/internal/metrics"
	"ridemetrics/internal/store"
)

// AnalysisService runs the multi-activity analyses over stored rides
type AnalysisService struct {
	store    *store.DB
	athlete  config.AthleteConfig
	analysis config.AnalysisConfig
	logger   *slog.Logger
}

// NewAnalysisService creates an analysis service
func NewAnalysisService(db *store.DB, cfg *config.Config, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{
		store:    db,
		athlete:  cfg.Athlete,
		analysis: cfg.Analysis,
		logger:   logger,
	}
}

// Range bounds the activities an analysis looks at by start time. Zero
// values leave that side open.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// activities returns the synced activities inside r
func (s *AnalysisService) activities(r Range) ([]store.Activity, error) {
	all, err := s.store.ListActivitiesWithSamples()
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	out := all[:0]
	for _, a := range all {
		if r.contains(a.StartTime) {
			out = append(out, a)
		}
	}
	return out, nil
}

// loadInputs fetches the inputs of every activity concurrently. With
// preferCached, activities holding a cached normalized_power summary skip
// loading their samples. Per-activity load failures end up in Err.
func (s *AnalysisService) loadInputs(ctx context.Context, activities []store.Activity, preferCached bool) ([]aggregate.ActivityInput, error) {
	var cached map[string]*store.MetricResult
	if preferCached {
		def, err := metrics.Lookup(metrics.KeyNormalizedPower)
		if err != nil {
			return nil, err
		}
		if cached, err = s.store.ListResults(def.Key, def.Version); err != nil {
			return nil, fmt.Errorf("listing cached power results: %w", err)
		}
	}

	inputs := make([]aggregate.ActivityInput, len(activities))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.analysis.FetchConcurrency))

	for i, a := range activities {
		inputs[i].Activity = a.Engine()
		if r, ok := cached[a.ID]; ok {
			inputs[i].Power = r.Summary
			continue
		}
		i, a := i, a
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			in, err := s.store.GetSamples(a.ID)
			if err != nil {
				inputs[i].Err = fmt.Errorf("loading samples: %w", err)
				return nil
			}
			inputs[i].Samples = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

func (s *AnalysisService) logSkipped(analysis string, skipped []aggregate.SkippedActivity) {
	for _, sk := range skipped {
		s.logger.Warn("activity skipped", "analysis", analysis, "activity", sk.ActivityID, "reason", sk.Reason)
	}
}

// AdaptationEdges scores the rides in r and finds their best training blocks
func (s *AnalysisService) AdaptationEdges(ctx context.Context, r Range) (aggregate.EdgesResult, error) {
	activities, err := s.activities(r)
	if err != nil {
		return aggregate.EdgesResult{}, err
	}
	inputs, err := s.loadInputs(ctx, activities, true)
	if err != nil {
		return aggregate.EdgesResult{}, err
	}

	res := aggregate.ComputeAdaptationEdges(inputs, aggregate.EdgesOptions{
		FTP:           s.athlete.FTP,
		MinWindowDays: s.analysis.WindowMinDays,
		MaxWindowDays: s.analysis.WindowMaxDays,
	})
	s.logSkipped("edges", res.Skipped)
	s.logger.Info("adaptation edges computed",
		"activities", len(res.Loads),
		"days", len(res.Timeline),
		"ftp_w", res.FTPUsed,
		"ftp_source", res.FTPSource,
	)
	return res, nil
}

// DepthAnalysis measures post-threshold work across the rides in r
func (s *AnalysisService) DepthAnalysis(ctx context.Context, r Range) (aggregate.DepthResult, error) {
	activities, err := s.activities(r)
	if err != nil {
		return aggregate.DepthResult{}, err
	}
	inputs, err := s.loadInputs(ctx, activities, false)
	if err != nil {
		return aggregate.DepthResult{}, err
	}

	res := aggregate.ComputeDepthAnalysis(inputs, aggregate.DepthOptions{
		ThresholdKJ:       s.analysis.DepthThresholdKJ,
		MinPowerW:         s.analysis.DepthMinPowerW,
		MovingAverageDays: s.analysis.DepthMovingAverageDays,
		MinWindowDays:     s.analysis.WindowMinDays,
		MaxWindowDays:     s.analysis.WindowMaxDays,
	})
	s.logSkipped("depth", res.Skipped)
	s.logger.Info("depth analysis computed",
		"activities", len(res.Activities),
		"days", len(res.Timeline),
		"threshold_kj", res.ThresholdKJ,
	)
	return res, nil
}

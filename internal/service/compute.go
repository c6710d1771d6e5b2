// Package service wires the metric engine to storage and data sources.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"ridemetrics/internal/aggregate"
	"ridemetrics/internal/config"
	"ridemetrics/internal/metrics"
	"ridemetrics/internal/store"
)

// ComputeService computes per-activity metrics and caches them by
// (activity, metric, version). A cached result is reused only while the
// context inputs it was computed with are unchanged.
type ComputeService struct {
	store    *store.DB
	athlete  config.AthleteConfig
	analysis config.AnalysisConfig
	logger   *slog.Logger
}

// NewComputeService creates a compute service
func NewComputeService(db *store.DB, cfg *config.Config, logger *slog.Logger) *ComputeService {
	return &ComputeService{
		store:    db,
		athlete:  cfg.Athlete,
		analysis: cfg.Analysis,
		logger:   logger,
	}
}

// ComputeResult summarizes a ComputeAll run
type ComputeResult struct {
	Activities int
	Computed   int
	Cached     int
	Failed     int
	Errors     []error
}

// RegisterDefinitions stores the current metric definitions and drops cached
// results written by other versions
func (s *ComputeService) RegisterDefinitions() error {
	defs := metrics.Definitions()
	if err := s.store.SaveDefinitions(defs); err != nil {
		return fmt.Errorf("saving metric definitions: %w", err)
	}
	for _, d := range defs {
		n, err := s.store.DeleteStaleResults(d.Key, d.Version)
		if err != nil {
			return fmt.Errorf("deleting stale %s results: %w", d.Key, err)
		}
		if n > 0 {
			s.logger.Info("dropped stale metric results", "metric", d.Key, "version", d.Version, "count", n)
		}
	}
	return nil
}

// Context builds the metric context of an activity. estimatedFTP stands in
// when no FTP is configured.
func (s *ComputeService) Context(a store.Activity, estimatedFTP float64) metrics.Context {
	return metrics.Context{
		Activity:         a.Engine(),
		FTP:              s.athlete.FTP,
		EstimatedFTP:     estimatedFTP,
		CP:               s.athlete.CP,
		WPrime:           s.athlete.WPrime,
		DepthThresholdKJ: s.analysis.DepthThresholdKJ,
		DepthMinPowerW:   s.analysis.DepthMinPowerW,
	}
}

// EstimateFTP estimates FTP from the cached normalized_power results
func (s *ComputeService) EstimateFTP() (float64, string, error) {
	def, err := metrics.Lookup(metrics.KeyNormalizedPower)
	if err != nil {
		return 0, "", err
	}
	results, err := s.store.ListResults(def.Key, def.Version)
	if err != nil {
		return 0, "", fmt.Errorf("listing power results: %w", err)
	}

	loads := make([]aggregate.ActivityLoad, 0, len(results))
	for id, r := range results {
		loads = append(loads, aggregate.ActivityLoad{
			ActivityID:     id,
			AveragePower:   r.Summary["average_power_w"],
			Best20MinPower: r.Summary["best_20min_power_w"],
		})
	}
	ftp, source := aggregate.EstimateFTP(loads)
	return ftp, source, nil
}

// Compute returns the metric for one activity, from cache unless force is
// set. cached reports whether the cache answered.
func (s *ComputeService) Compute(ctx context.Context, activityID string, key metrics.Key, force bool) (result metrics.Result, cached bool, err error) {
	def, err := metrics.Lookup(key)
	if err != nil {
		return metrics.Result{}, false, err
	}
	activity, err := s.store.GetActivity(activityID)
	if err != nil {
		return metrics.Result{}, false, err
	}

	var estimate float64
	if s.athlete.FTP <= 0 && key == metrics.KeyDurableTSS {
		if estimate, _, err = s.EstimateFTP(); err != nil {
			return metrics.Result{}, false, err
		}
	}
	return s.compute(ctx, *activity, def, estimate, force)
}

func (s *ComputeService) compute(ctx context.Context, a store.Activity, def metrics.Definition, estimatedFTP float64, force bool) (metrics.Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return metrics.Result{}, false, err
	}

	mctx := s.Context(a, estimatedFTP)
	hash, err := metrics.InputsHash(def.Key, mctx)
	if err != nil {
		return metrics.Result{}, false, err
	}

	if !force {
		r, err := s.store.GetResult(a.ID, def.Key, def.Version)
		switch {
		case err == nil && r.InputsHash == hash:
			return r.Result(), true, nil
		case err == nil:
			s.logger.Debug("cached result has other inputs", "metric", def.Key, "activity", a.ID)
		case !errors.Is(err, store.ErrResultNotFound):
			return metrics.Result{}, false, fmt.Errorf("reading cached %s: %w", def.Key, err)
		}
	}

	in, err := s.store.GetSamples(a.ID)
	if err != nil {
		return metrics.Result{}, false, fmt.Errorf("loading samples: %w", err)
	}
	result, err := metrics.Compute(def.Key, in, mctx)
	if err != nil {
		return metrics.Result{}, false, err
	}

	err = s.store.SaveResult(&store.MetricResult{
		ActivityID: a.ID,
		Key:        def.Key,
		Version:    def.Version,
		Summary:    result.Summary,
		Series:     result.Series,
		InputsHash: hash,
	})
	if err != nil {
		return metrics.Result{}, false, fmt.Errorf("caching %s: %w", def.Key, err)
	}
	return result, false, nil
}

// ComputeAll computes keys for every activity with samples. Failures are
// logged and counted; they don't stop the run. normalized_power goes first
// so the FTP estimate sees this run's results.
func (s *ComputeService) ComputeAll(ctx context.Context, keys []metrics.Key, force bool) (*ComputeResult, error) {
	if len(keys) == 0 {
		keys = metrics.Keys()
	}
	keys = slices.Clone(keys)
	slices.SortStableFunc(keys, func(a, b metrics.Key) int {
		return boolRank(a == metrics.KeyNormalizedPower) - boolRank(b == metrics.KeyNormalizedPower)
	})

	activities, err := s.store.ListActivitiesWithSamples()
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}

	result := &ComputeResult{Activities: len(activities)}
	for _, key := range keys {
		def, err := metrics.Lookup(key)
		if err != nil {
			return result, err
		}

		var estimate float64
		if key == metrics.KeyDurableTSS && s.athlete.FTP <= 0 {
			var source string
			estimate, source, err = s.EstimateFTP()
			if err != nil {
				return result, err
			}
			s.logger.Debug("estimated ftp", "ftp_w", estimate, "source", source)
		}

		for _, a := range activities {
			_, cached, err := s.compute(ctx, a, def, estimate, force)
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			switch {
			case err != nil:
				result.Failed++
				result.Errors = append(result.Errors, fmt.Errorf("%s on %s: %w", key, a.ID, err))
				s.logger.Warn("metric failed", "metric", key, "activity", a.ID, "error", err)
			case cached:
				result.Cached++
			default:
				result.Computed++
			}
		}
		s.logger.Info("metric computed", "metric", key, "version", def.Version, "activities", len(activities))
	}
	return result, nil
}

// boolRank orders true before false
func boolRank(b bool) int {
	if b {
		return 0
	}
	return 1
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ridemetrics/internal/store"
	"ridemetrics/internal/strava"
)

// defaultStreamBatch keeps one sync inside Strava's short rate limit window
const defaultStreamBatch = 50

// SyncService imports rides and their sample streams from Strava
type SyncService struct {
	client *strava.Client
	store  *store.DB
	logger *slog.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(client *strava.Client, db *store.DB, logger *slog.Logger) *SyncService {
	return &SyncService{client: client, store: db, logger: logger}
}

// SyncResult contains the results of a sync operation
type SyncResult struct {
	ActivitiesFetched int
	RidesStored       int
	StreamsFetched    int
	Errors            []error
}

// Sync fetches rides started since the last sync, then streams for up to
// streamBatch rides still missing samples (0 uses the default batch)
func (s *SyncService) Sync(ctx context.Context, streamBatch int) (*SyncResult, error) {
	result := &SyncResult{}

	if err := s.syncActivities(ctx, result); err != nil {
		return result, fmt.Errorf("syncing activities: %w", err)
	}
	if err := s.syncStreams(ctx, streamBatch, result); err != nil {
		return result, fmt.Errorf("syncing streams: %w", err)
	}

	if err := s.store.SetSyncTime(store.SyncKeyLastRun, time.Now()); err != nil {
		return result, fmt.Errorf("recording sync time: %w", err)
	}
	return result, nil
}

func (s *SyncService) syncActivities(ctx context.Context, result *SyncResult) error {
	after, err := s.store.GetSyncTime(store.SyncKeyLastActivity)
	if err != nil {
		return fmt.Errorf("reading last sync: %w", err)
	}

	rides, err := s.client.GetRides(ctx, after, func(fetched int) {
		result.ActivitiesFetched = fetched
		s.logger.Debug("fetched activities", "count", fetched)
	})
	if err != nil {
		return err
	}

	latest := after
	for _, r := range rides {
		a := convertActivity(r)
		if err := s.store.UpsertActivity(&a); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("storing activity %s: %w", a.ID, err))
			continue
		}
		result.RidesStored++
		if a.StartTime.After(latest) {
			latest = a.StartTime
		}
	}
	s.logger.Info("activities synced", "fetched", result.ActivitiesFetched, "rides", result.RidesStored)

	if latest.After(after) {
		return s.store.SetSyncTime(store.SyncKeyLastActivity, latest)
	}
	return nil
}

func (s *SyncService) syncStreams(ctx context.Context, batch int, result *SyncResult) error {
	if batch <= 0 {
		batch = defaultStreamBatch
	}
	activities, err := s.store.GetActivitiesNeedingSamples(batch)
	if err != nil {
		return fmt.Errorf("getting activities needing samples: %w", err)
	}

	for _, a := range activities {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := s.client.GetActivityStreams(ctx, a.ID)
		if err != nil {
			// some activities (manual entries) have no streams at all
			result.Errors = append(result.Errors, fmt.Errorf("activity %s (%s): %w", a.ID, a.Name, err))
			s.logger.Warn("stream fetch failed", "activity", a.ID, "error", err)
			continue
		}

		in := streams.Samples()
		if err := s.store.SaveSamples(a.ID, in); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("saving samples for %s: %w", a.ID, err))
			continue
		}
		if err := s.store.DeleteResultsForActivity(a.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("clearing results for %s: %w", a.ID, err))
		}
		result.StreamsFetched++
		s.logger.Debug("samples stored", "activity", a.ID, "samples", len(in), "power", streams.HasPower())
	}

	short, daily := s.client.RateLimitStatus()
	s.logger.Info("streams synced", "count", result.StreamsFetched, "rate_short_remaining", short, "rate_daily_remaining", daily)
	return nil
}

// convertActivity converts a Strava ride to the store model
func convertActivity(a strava.Activity) store.Activity {
	sport := a.SportType
	if sport == "" {
		sport = a.Type
	}
	return store.Activity{
		ID:          a.StringID(),
		Name:        a.Name,
		Source:      store.SourceStrava,
		SportType:   sport,
		StartTime:   a.StartDate.UTC(),
		DurationSec: float64(a.ElapsedTime),
	}
}

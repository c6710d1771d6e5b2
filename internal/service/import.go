package service

import (
	"fmt"
	"log/slog"

	"ridemetrics/internal/fitfile"
	"ridemetrics/internal/store"
)

// ImportService loads FIT recordings into the store
type ImportService struct {
	store  *store.DB
	logger *slog.Logger
}

// NewImportService creates an import service
func NewImportService(db *store.DB, logger *slog.Logger) *ImportService {
	return &ImportService{store: db, logger: logger}
}

// ImportResult lists what an import stored and what it rejected
type ImportResult struct {
	Imported []store.Activity
	Errors   []error
}

// ImportFiles imports every path. A file that fails is reported and skipped.
func (s *ImportService) ImportFiles(paths []string) *ImportResult {
	result := &ImportResult{}
	for _, path := range paths {
		a, n, err := s.importFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", path, err))
			s.logger.Warn("import failed", "file", path, "error", err)
			continue
		}
		result.Imported = append(result.Imported, a)
		s.logger.Info("ride imported", "file", path, "activity", a.ID, "samples", n)
	}
	return result
}

func (s *ImportService) importFile(path string) (store.Activity, int, error) {
	ride, err := fitfile.ReadFile(path)
	if err != nil {
		return store.Activity{}, 0, err
	}

	a := ride.Activity
	if err := s.store.UpsertActivity(&a); err != nil {
		return store.Activity{}, 0, fmt.Errorf("storing activity: %w", err)
	}
	if err := s.store.SaveSamples(a.ID, ride.Samples); err != nil {
		return store.Activity{}, 0, fmt.Errorf("storing samples: %w", err)
	}
	// a re-import replaces the samples, so results computed from the old
	// ones are dropped
	if err := s.store.DeleteResultsForActivity(a.ID); err != nil {
		return store.Activity{}, 0, fmt.Errorf("clearing cached results: %w", err)
	}
	return a, len(ride.Samples), nil
}

// ABOUTME: Data migration between primary storage backends.
// ABOUTME: Copies metrics and symptoms from source to destination, skipping records already present.

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Metrics  int
	Symptoms int
	Skipped  int
}

// MigrateData copies every user's records from src to dst.
// Records whose id already exists in dst are counted as skipped, so a
// migration can be re-run after a partial failure.
func MigrateData(ctx context.Context, src, dst PrimaryStore) (*MigrateSummary, error) {
	summary := &MigrateSummary{}

	metrics, err := src.ListMetrics(ctx, MetricFilter{})
	if err != nil {
		return nil, fmt.Errorf("list source metrics: %w", err)
	}

	// Oldest first keeps insertion order meaningful for ties in dst.
	for i := len(metrics) - 1; i >= 0; i-- {
		m := metrics[i]
		if err := dst.InsertMetric(ctx, m); err != nil {
			if errors.Is(err, ErrDuplicate) {
				summary.Skipped++
				continue
			}
			return nil, fmt.Errorf("create metric %s: %w", m.ID, err)
		}
		summary.Metrics++
	}

	symptoms, err := src.ListSymptoms(ctx, SymptomFilter{})
	if err != nil {
		return nil, fmt.Errorf("list source symptoms: %w", err)
	}

	for i := len(symptoms) - 1; i >= 0; i-- {
		s := symptoms[i]
		if err := dst.InsertSymptom(ctx, s); err != nil {
			if errors.Is(err, ErrDuplicate) {
				summary.Skipped++
				continue
			}
			return nil, fmt.Errorf("create symptom %s: %w", s.ID, err)
		}
		summary.Symptoms++
	}

	return summary, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}

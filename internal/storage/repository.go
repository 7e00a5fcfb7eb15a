// ABOUTME: PrimaryStore interface for health data storage.
// ABOUTME: Defines the contract every primary backend (SQLite, Charm KV, memory) satisfies.
package storage

import (
	"context"
	"time"

	"github.com/harperreed/healthhub/internal/models"
)

// PrimaryStore is the authoritative datastore.
//
// Implementations return errors matching ErrUnavailable for connectivity or
// schema failures and ErrDuplicate when an id already exists. An empty result
// is never an error.
type PrimaryStore interface {
	InsertMetric(ctx context.Context, m *models.Metric) error
	InsertSymptom(ctx context.Context, s *models.Symptom) error

	// LatestMetricsPerType returns one metric per type, newest first.
	LatestMetricsPerType(ctx context.Context, userID int64) ([]*models.Metric, error)
	ListMetrics(ctx context.Context, f MetricFilter) ([]*models.Metric, error)
	ListSymptoms(ctx context.Context, f SymptomFilter) ([]*models.Symptom, error)

	Ping(ctx context.Context) error
	Close() error
}

// MetricFilter narrows ListMetrics. A zero UserID matches every user.
// Results are ordered by RecordedAt descending.
type MetricFilter struct {
	UserID     int64
	MetricType *models.MetricType
	Since      *time.Time
	Limit      int
}

// SymptomFilter narrows ListSymptoms. A zero UserID matches every user.
type SymptomFilter struct {
	UserID int64
	Since  *time.Time
	Limit  int
}

// Match reports whether m passes the filter.
func (f MetricFilter) Match(m *models.Metric) bool {
	if f.UserID != 0 && m.UserID != f.UserID {
		return false
	}
	if f.MetricType != nil && m.MetricType != *f.MetricType {
		return false
	}
	if f.Since != nil && m.RecordedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Match reports whether s passes the filter.
func (f SymptomFilter) Match(s *models.Symptom) bool {
	if f.UserID != 0 && s.UserID != f.UserID {
		return false
	}
	if f.Since != nil && s.RecordedAt.Before(*f.Since) {
		return false
	}
	return true
}

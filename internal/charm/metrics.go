// ABOUTME: Metric and symptom operations for Charm KV storage.
// ABOUTME: Uses user-scoped, type-prefixed keys and client-side filtering.
package charm

import (
	"context"
	"fmt"
	"sort"

	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/storage"
)

// metricKey returns the KV key for a metric.
func metricKey(m *models.Metric) string {
	return userPrefix(MetricPrefix, m.UserID) + m.ID.String()
}

func symptomKey(s *models.Symptom) string {
	return userPrefix(SymptomPrefix, s.UserID) + s.ID.String()
}

// InsertMetric stores a new metric in the KV store.
func (c *Client) InsertMetric(_ context.Context, m *models.Metric) error {
	data, err := marshalJSON(m)
	if err != nil {
		return fmt.Errorf("marshal metric: %w", err)
	}
	return c.insert("create metric", metricKey(m), data)
}

// InsertSymptom stores a new symptom in the KV store.
func (c *Client) InsertSymptom(_ context.Context, s *models.Symptom) error {
	data, err := marshalJSON(s)
	if err != nil {
		return fmt.Errorf("marshal symptom: %w", err)
	}
	return c.insert("create symptom", symptomKey(s), data)
}

// ListMetrics retrieves metrics matching the filter.
// Results are sorted by RecordedAt descending (most recent first).
func (c *Client) ListMetrics(_ context.Context, f storage.MetricFilter) ([]*models.Metric, error) {
	allData, err := c.listByPrefix("list metrics", userPrefix(MetricPrefix, f.UserID))
	if err != nil {
		return nil, err
	}

	var metrics []*models.Metric
	for _, data := range allData {
		m, err := unmarshalJSON[models.Metric](data)
		if err != nil {
			log.WithComponent("charm").Warn().Err(err).Msg("skipping undecodable metric")
			continue
		}
		if f.Match(m) {
			metrics = append(metrics, m)
		}
	}

	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].RecordedAt.After(metrics[j].RecordedAt)
	})

	if f.Limit > 0 && len(metrics) > f.Limit {
		metrics = metrics[:f.Limit]
	}

	return metrics, nil
}

// LatestMetricsPerType returns the newest metric of each type for a user.
func (c *Client) LatestMetricsPerType(ctx context.Context, userID int64) ([]*models.Metric, error) {
	all, err := c.ListMetrics(ctx, storage.MetricFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	seen := make(map[models.MetricType]bool)
	var latest []*models.Metric
	for _, m := range all {
		if !seen[m.MetricType] {
			seen[m.MetricType] = true
			latest = append(latest, m)
		}
	}
	return latest, nil
}

// ListSymptoms retrieves symptoms matching the filter, newest first.
func (c *Client) ListSymptoms(_ context.Context, f storage.SymptomFilter) ([]*models.Symptom, error) {
	allData, err := c.listByPrefix("list symptoms", userPrefix(SymptomPrefix, f.UserID))
	if err != nil {
		return nil, err
	}

	var symptoms []*models.Symptom
	for _, data := range allData {
		s, err := unmarshalJSON[models.Symptom](data)
		if err != nil {
			log.WithComponent("charm").Warn().Err(err).Msg("skipping undecodable symptom")
			continue
		}
		if f.Match(s) {
			symptoms = append(symptoms, s)
		}
	}

	sort.SliceStable(symptoms, func(i, j int) bool {
		return symptoms[i].RecordedAt.After(symptoms[j].RecordedAt)
	})

	if f.Limit > 0 && len(symptoms) > f.Limit {
		symptoms = symptoms[:f.Limit]
	}

	return symptoms, nil
}

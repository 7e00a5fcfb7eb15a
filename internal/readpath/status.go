// ABOUTME: Latest classified status per metric type.
// ABOUTME: Falls back entirely to staged entries when the primary store is unavailable.
package readpath

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/healthhub/internal/classify"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/metrics"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// HealthStatus is the classified latest reading of one metric type.
type HealthStatus struct {
	MetricType     models.MetricType  `json:"metric_type"`
	Status         string             `json:"status"`
	Value          *float64           `json:"value"`
	Unit           string             `json:"unit"`
	AdditionalData map[string]float64 `json:"additional_data,omitempty"`
	RecordedAt     time.Time          `json:"recorded_at"`
}

// StatusReport is the latest status per metric type for a user.
type StatusReport struct {
	MetricsStatus map[models.MetricType]HealthStatus `json:"metrics_status"`
	LastUpdated   *time.Time                         `json:"last_updated"`
	Source        string                             `json:"source"`
}

// LatestStatusPerType classifies the newest reading of each metric type.
// When the primary store is unavailable the report is built from staged
// fallback entries alone.
func (r *Reader) LatestStatusPerType(ctx context.Context, userID int64) (*StatusReport, error) {
	ctx, span := r.tracer.Start(ctx, "Reader.LatestStatusPerType")
	defer span.End()

	source := SourcePrimary
	latest, err := r.primary.LatestMetricsPerType(ctx, userID)
	if err != nil {
		if !storage.IsUnavailable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "primary_read_failed")
			return nil, fmt.Errorf("latest metrics: %w", err)
		}
		log.WithUserID("readpath", userID).Warn().Err(err).Msg("primary store unavailable, reading status from fallback")
		metrics.ReadFallbacksTotal.WithLabelValues("status").Inc()
		source = SourceFallback
		latest = r.fallbackMetrics(ctx, storage.MetricFilter{UserID: userID})
	}
	span.SetAttributes(attribute.String("source", source))

	return buildStatusReport(latest, source), nil
}

// buildStatusReport keeps the newest record per type. On equal timestamps the
// record seen first wins.
func buildStatusReport(records []*models.Metric, source string) *StatusReport {
	newest := make(map[models.MetricType]*models.Metric)
	for _, m := range records {
		cur, ok := newest[m.MetricType]
		if !ok || m.RecordedAt.After(cur.RecordedAt) {
			newest[m.MetricType] = m
		}
	}

	report := &StatusReport{
		MetricsStatus: make(map[models.MetricType]HealthStatus, len(newest)),
		Source:        source,
	}
	for mt, m := range newest {
		res := classify.Metric(m)
		report.MetricsStatus[mt] = HealthStatus{
			MetricType:     mt,
			Status:         res.Status,
			Value:          m.Value,
			Unit:           res.Unit,
			AdditionalData: m.AdditionalData,
			RecordedAt:     m.RecordedAt,
		}
		if report.LastUpdated == nil || m.RecordedAt.After(*report.LastUpdated) {
			t := m.RecordedAt
			report.LastUpdated = &t
		}
	}
	return report
}

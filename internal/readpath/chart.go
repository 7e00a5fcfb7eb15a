// ABOUTME: Chart series for one metric type over a days window.
// ABOUTME: Blood pressure yields systolic and diastolic series joined into a flat table.
package readpath

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/metrics"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrUnknownMetric is returned for a metric type outside the supported set.
var ErrUnknownMetric = errors.New("unknown metric type")

// Point is one chart sample.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Row is one line of the flat chart table.
type Row struct {
	Timestamp time.Time `json:"timestamp"`
	Value     *float64  `json:"value,omitempty"`
	Systolic  *float64  `json:"systolic,omitempty"`
	Diastolic *float64  `json:"diastolic"`
}

// Chart holds ascending series for a metric type.
type Chart struct {
	Metric    models.MetricType `json:"metric"`
	Unit      string            `json:"unit"`
	Series    []Point           `json:"series,omitempty"`
	Systolic  []Point           `json:"systolic,omitempty"`
	Diastolic []Point           `json:"diastolic,omitempty"`
	Flat      []Row             `json:"flat"`
	Source    string            `json:"source"`
}

// IsBloodPressure reports whether the chart carries paired series.
func (c *Chart) IsBloodPressure() bool {
	return c.Metric == models.MetricBloodPressure
}

// ChartSeries returns readings of metricType recorded in the last days
// (all readings when days <= 0), oldest first. Staged fallback entries
// substitute when the primary store is unavailable or has no rows.
func (r *Reader) ChartSeries(ctx context.Context, userID int64, metricType string, days int) (*Chart, error) {
	ctx, span := r.tracer.Start(ctx, "Reader.ChartSeries")
	defer span.End()

	if !models.IsValidMetricType(metricType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metricType)
	}
	mt := models.MetricType(metricType)
	filter := storage.MetricFilter{UserID: userID, MetricType: &mt, Since: r.sinceDays(days)}

	source := SourcePrimary
	records, err := r.primary.ListMetrics(ctx, filter)
	switch {
	case err != nil && !storage.IsUnavailable(err):
		span.RecordError(err)
		span.SetStatus(codes.Error, "primary_read_failed")
		return nil, fmt.Errorf("list metrics: %w", err)
	case err != nil:
		log.WithUserID("readpath", userID).Warn().Err(err).Msg("primary store unavailable, charting from fallback")
		fallthrough
	case len(records) == 0:
		if staged := r.fallbackMetrics(ctx, filter); len(staged) > 0 || err != nil {
			metrics.ReadFallbacksTotal.WithLabelValues("chart").Inc()
			source = SourceFallback
			records = staged
		}
	}
	span.SetAttributes(attribute.String("source", source), attribute.Int("points", len(records)))

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RecordedAt.Before(records[j].RecordedAt)
	})

	chart := &Chart{Metric: mt, Unit: models.MetricUnits[mt], Flat: []Row{}, Source: source}
	if mt == models.MetricBloodPressure {
		buildPressure(chart, records)
		return chart, nil
	}

	chart.Series = []Point{}
	for _, m := range records {
		if m.Value == nil {
			continue
		}
		chart.Series = append(chart.Series, Point{Timestamp: m.RecordedAt, Value: *m.Value})
		chart.Flat = append(chart.Flat, Row{Timestamp: m.RecordedAt, Value: models.Float(*m.Value)})
	}
	return chart, nil
}

// buildPressure fills both series and one flat row per reading. A reading
// without a systolic value has no row; a missing diastolic stays null.
func buildPressure(chart *Chart, records []*models.Metric) {
	chart.Systolic = []Point{}
	chart.Diastolic = []Point{}
	for _, m := range records {
		dia, hasDia := m.Diastolic()
		if hasDia {
			chart.Diastolic = append(chart.Diastolic, Point{Timestamp: m.RecordedAt, Value: dia})
		}
		sys, ok := m.Systolic()
		if !ok {
			continue
		}
		chart.Systolic = append(chart.Systolic, Point{Timestamp: m.RecordedAt, Value: sys})
		row := Row{Timestamp: m.RecordedAt, Systolic: models.Float(sys)}
		if hasDia {
			row.Diastolic = models.Float(dia)
		}
		chart.Flat = append(chart.Flat, row)
	}
}

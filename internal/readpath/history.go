// ABOUTME: Combined metric and symptom history for a user.
// ABOUTME: Staged fallback entries supplement primary results, newest first.
package readpath

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/healthhub/internal/classify"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/metrics"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FilterSymptom selects only symptoms in History.
const FilterSymptom = "symptom"

// History entry types.
const (
	TypeMetric  = "metric"
	TypeSymptom = "symptom"
)

// HistoryEntry is one metric or symptom in the timeline.
type HistoryEntry struct {
	Type           string             `json:"type"`
	ID             uuid.UUID          `json:"id"`
	MetricType     models.MetricType  `json:"metric_type,omitempty"`
	Value          *float64           `json:"value,omitempty"`
	Unit           string             `json:"unit,omitempty"`
	AdditionalData map[string]float64 `json:"additional_data,omitempty"`
	Status         string             `json:"status,omitempty"`
	Symptom        string             `json:"symptom,omitempty"`
	Description    *string            `json:"description,omitempty"`
	Severity       models.Severity    `json:"severity,omitempty"`
	RecordedAt     time.Time          `json:"recorded_at"`
	Source         string             `json:"source"`
}

func metricEntry(m *models.Metric, source string) HistoryEntry {
	return HistoryEntry{
		Type:           TypeMetric,
		ID:             m.ID,
		MetricType:     m.MetricType,
		Value:          m.Value,
		Unit:           m.Unit,
		AdditionalData: m.AdditionalData,
		Status:         classify.Metric(m).Status,
		RecordedAt:     m.RecordedAt,
		Source:         source,
	}
}

func symptomEntry(s *models.Symptom, source string) HistoryEntry {
	return HistoryEntry{
		Type:        TypeSymptom,
		ID:          s.ID,
		Symptom:     s.Symptom,
		Description: s.Description,
		Severity:    s.Severity,
		RecordedAt:  s.RecordedAt,
		Source:      source,
	}
}

// History returns metrics and symptoms recorded in the last days (all when
// days <= 0), newest first. An empty filter returns both kinds, "symptom"
// returns symptoms only, and any other value returns metrics of that type.
func (r *Reader) History(ctx context.Context, userID int64, filter string, days int) ([]HistoryEntry, error) {
	ctx, span := r.tracer.Start(ctx, "Reader.History")
	defer span.End()
	span.SetAttributes(attribute.String("filter", filter))

	includeMetrics := filter != FilterSymptom
	includeSymptoms := filter == "" || filter == FilterSymptom
	since := r.sinceDays(days)
	logger := log.WithUserID("readpath", userID)

	var primary, staged []HistoryEntry
	seen := make(map[uuid.UUID]bool)
	usedFallback := false

	if includeMetrics {
		mf := storage.MetricFilter{UserID: userID, Since: since}
		if filter != "" {
			mt := models.MetricType(filter)
			mf.MetricType = &mt
		}

		records, err := r.primary.ListMetrics(ctx, mf)
		if err != nil && !storage.IsUnavailable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "primary_read_failed")
			return nil, fmt.Errorf("list metrics: %w", err)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("primary store unavailable, history from fallback")
		}
		for _, m := range records {
			seen[m.ID] = true
			primary = append(primary, metricEntry(m, SourcePrimary))
		}
		for _, m := range r.fallbackMetrics(ctx, mf) {
			if !seen[m.ID] {
				seen[m.ID] = true
				staged = append(staged, metricEntry(m, SourceFallback))
				usedFallback = true
			}
		}
	}

	if includeSymptoms {
		sf := storage.SymptomFilter{UserID: userID, Since: since}

		records, err := r.primary.ListSymptoms(ctx, sf)
		if err != nil && !storage.IsUnavailable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "primary_read_failed")
			return nil, fmt.Errorf("list symptoms: %w", err)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("primary store unavailable, symptom history from fallback")
		}
		for _, s := range records {
			seen[s.ID] = true
			primary = append(primary, symptomEntry(s, SourcePrimary))
		}
		for _, s := range r.fallbackSymptoms(ctx, sf) {
			if !seen[s.ID] {
				seen[s.ID] = true
				staged = append(staged, symptomEntry(s, SourceFallback))
				usedFallback = true
			}
		}
	}

	if usedFallback {
		metrics.ReadFallbacksTotal.WithLabelValues("history").Inc()
	}

	entries := append(primary, staged...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RecordedAt.After(entries[j].RecordedAt)
	})
	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries, nil
}

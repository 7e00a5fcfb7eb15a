// ABOUTME: Merged read path over the primary and fallback stores.
// ABOUTME: Reads prefer the primary store and degrade to staged fallback entries when it is down.
package readpath

import (
	"context"
	"time"

	"github.com/harperreed/healthhub/internal/fallback"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Data sources reported with read results.
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
	SourceMerged   = "merged"
)

// Reader serves status, chart and history reads.
type Reader struct {
	primary  storage.PrimaryStore
	fallback fallback.Store
	now      func() time.Time
	tracer   trace.Tracer
}

// New returns a Reader over the given stores.
func New(primary storage.PrimaryStore, fb fallback.Store) *Reader {
	return &Reader{
		primary:  primary,
		fallback: fb,
		now:      time.Now,
		tracer:   otel.Tracer("github.com/harperreed/healthhub/internal/readpath"),
	}
}

// sinceDays returns the lower time bound for a days window, or nil when days <= 0.
func (r *Reader) sinceDays(days int) *time.Time {
	if days <= 0 {
		return nil
	}
	since := r.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	return &since
}

// fallbackMetrics converts the user's staged metrics. Entries without a
// usable timestamp or with an unknown type are skipped.
func (r *Reader) fallbackMetrics(ctx context.Context, f storage.MetricFilter) []*models.Metric {
	logger := log.WithComponent("readpath")
	var out []*models.Metric
	for _, e := range r.fallback.LoadAll(ctx) {
		if e.IsSymptom() || e.UserID != f.UserID {
			continue
		}
		if _, ok := e.Timestamp(); !ok {
			logger.Debug().Str("key", e.Key()).Msg("skipping staged metric without timestamp")
			continue
		}
		m, err := e.ToMetric(r.now())
		if err != nil {
			logger.Debug().Err(err).Str("key", e.Key()).Msg("skipping staged metric")
			continue
		}
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// fallbackSymptoms converts the user's staged symptoms.
func (r *Reader) fallbackSymptoms(ctx context.Context, f storage.SymptomFilter) []*models.Symptom {
	var out []*models.Symptom
	for _, e := range r.fallback.LoadAll(ctx) {
		if !e.IsSymptom() || e.UserID != f.UserID {
			continue
		}
		if _, ok := e.Timestamp(); !ok {
			continue
		}
		s, err := e.ToSymptom(r.now())
		if err != nil {
			log.WithComponent("readpath").Debug().Err(err).Str("key", e.Key()).Msg("skipping staged symptom")
			continue
		}
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// ABOUTME: Dual-write path: validated records go to the primary store, or to the fallback store when it is down.
// ABOUTME: Only storage unavailability triggers the fallback; other failures surface unchanged.
package dualwrite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/healthhub/internal/fallback"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/metrics"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Where a record ended up.
const (
	StoredPrimary  = "primary"
	StoredFallback = "fallback"
)

// ErrFallbackWrite means the primary store was down and staging locally failed too.
var ErrFallbackWrite = errors.New("fallback write failed")

// WriteResult reports a successful write.
type WriteResult struct {
	Success bool            `json:"success"`
	Stored  string          `json:"stored"`
	Metric  *models.Metric  `json:"metric,omitempty"`
	Symptom *models.Symptom `json:"symptom,omitempty"`
}

// Writer records metrics and symptoms.
type Writer struct {
	primary  storage.PrimaryStore
	fallback fallback.Store
	now      func() time.Time
	tracer   trace.Tracer
}

// New returns a Writer over the given stores.
func New(primary storage.PrimaryStore, fb fallback.Store) *Writer {
	return &Writer{
		primary:  primary,
		fallback: fb,
		now:      time.Now,
		tracer:   otel.Tracer("github.com/harperreed/healthhub/internal/dualwrite"),
	}
}

// RecordMetric validates in and stores it for userID.
func (w *Writer) RecordMetric(ctx context.Context, userID int64, in models.MetricInput) (*WriteResult, error) {
	ctx, span := w.tracer.Start(ctx, "Writer.RecordMetric")
	defer span.End()

	m, err := in.Build(userID, w.now())
	if err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("metric.type", string(m.MetricType)))

	stored, err := w.store(ctx, span, "metric",
		func(ctx context.Context) error { return w.primary.InsertMetric(ctx, m) },
		func() fallback.Entry { return fallback.FromMetric(m, w.now()) },
	)
	if err != nil {
		return nil, err
	}
	return &WriteResult{Success: true, Stored: stored, Metric: m}, nil
}

// RecordSymptom validates in and stores it for userID.
func (w *Writer) RecordSymptom(ctx context.Context, userID int64, in models.SymptomInput) (*WriteResult, error) {
	ctx, span := w.tracer.Start(ctx, "Writer.RecordSymptom")
	defer span.End()

	s, err := in.Build(userID, w.now())
	if err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return nil, err
	}

	stored, err := w.store(ctx, span, "symptom",
		func(ctx context.Context) error { return w.primary.InsertSymptom(ctx, s) },
		func() fallback.Entry { return fallback.FromSymptom(s, w.now()) },
	)
	if err != nil {
		return nil, err
	}
	return &WriteResult{Success: true, Stored: stored, Symptom: s}, nil
}

// store inserts into the primary store, staging the entry locally when the
// primary is unavailable.
func (w *Writer) store(ctx context.Context, span trace.Span, kind string, insert func(context.Context) error, entry func() fallback.Entry) (string, error) {
	logger := log.WithComponent("dualwrite")

	err := insert(ctx)
	if err == nil {
		metrics.WritesTotal.WithLabelValues(kind, StoredPrimary).Inc()
		span.SetAttributes(attribute.String("stored", StoredPrimary))
		return StoredPrimary, nil
	}

	if !storage.IsUnavailable(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "primary_insert_failed")
		return "", fmt.Errorf("create %s: %w", kind, err)
	}

	logger.Warn().Err(err).Str("kind", kind).Msg("primary store unavailable, staging record locally")

	if ferr := w.fallback.Append(ctx, entry()); ferr != nil {
		metrics.FallbackWriteFailures.Inc()
		span.RecordError(ferr)
		span.SetStatus(codes.Error, "fallback_write_failed")
		logger.Error().Err(ferr).Str("kind", kind).Msg("fallback write failed")
		return "", fmt.Errorf("%w: %v (primary: %v)", ErrFallbackWrite, ferr, err)
	}

	metrics.WritesTotal.WithLabelValues(kind, StoredFallback).Inc()
	span.SetAttributes(attribute.String("stored", StoredFallback))
	return StoredFallback, nil
}

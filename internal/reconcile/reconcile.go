// ABOUTME: Reconciler that drains staged fallback entries into the primary store.
// ABOUTME: Supports confirmed-only clearing (default) and the legacy clear-everything policy.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/harperreed/healthhub/internal/fallback"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/metrics"
	"github.com/harperreed/healthhub/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrPrimaryUnavailable means the primary store could not be reached; nothing was drained.
	ErrPrimaryUnavailable = errors.New("primary store unavailable")
	// ErrDrainInProgress means another drain is already running in this process.
	ErrDrainInProgress = errors.New("drain already in progress")
)

// ClearPolicy decides which staged entries are dropped after a drain.
type ClearPolicy string

const (
	// ClearConfirmed removes only entries that are now in the primary store.
	ClearConfirmed ClearPolicy = "confirmed"
	// ClearAll empties the fallback store once anything was inserted,
	// discarding entries that failed.
	ClearAll ClearPolicy = "all"
)

// ParseClearPolicy maps a config value to a ClearPolicy. Empty means ClearConfirmed.
func ParseClearPolicy(s string) (ClearPolicy, error) {
	switch ClearPolicy(s) {
	case "", ClearConfirmed:
		return ClearConfirmed, nil
	case ClearAll:
		return ClearAll, nil
	}
	return "", fmt.Errorf("invalid clear policy %q (want confirmed or all)", s)
}

// Failure is a staged entry that could not be moved.
type Failure struct {
	Entry  fallback.Entry `json:"entry"`
	Reason string         `json:"reason"`
}

// Summary reports one drain.
type Summary struct {
	Pending    int         `json:"pending"`
	Inserted   int         `json:"inserted"`
	Duplicates int         `json:"duplicates"`
	Failures   []Failure   `json:"failures"`
	Cleared    int         `json:"cleared"`
	Policy     ClearPolicy `json:"policy"`
}

// Reconciler moves staged entries into the primary store.
type Reconciler struct {
	primary  storage.PrimaryStore
	fallback fallback.Store
	policy   ClearPolicy
	now      func() time.Time
	running  atomic.Bool
	tracer   trace.Tracer
}

// New returns a Reconciler. An empty policy means ClearConfirmed.
func New(primary storage.PrimaryStore, fb fallback.Store, policy ClearPolicy) *Reconciler {
	if policy == "" {
		policy = ClearConfirmed
	}
	return &Reconciler{
		primary:  primary,
		fallback: fb,
		policy:   policy,
		now:      time.Now,
		tracer:   otel.Tracer("github.com/harperreed/healthhub/internal/reconcile"),
	}
}

// Policy returns the configured clear policy.
func (r *Reconciler) Policy() ClearPolicy {
	return r.policy
}

// Pending returns the staged entries and refreshes the pending gauge.
func (r *Reconciler) Pending(ctx context.Context) []fallback.Entry {
	entries := r.fallback.LoadAll(ctx)
	metrics.FallbackPending.Set(float64(len(entries)))
	return entries
}

// Drain inserts every staged entry into the primary store. Per-entry
// failures are collected in the summary and do not stop the drain.
// Duplicates count as already present.
func (r *Reconciler) Drain(ctx context.Context) (*Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	defer r.running.Store(false)

	ctx, span := r.tracer.Start(ctx, "Reconciler.Drain")
	defer span.End()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration)

	logger := log.WithComponent("reconcile")

	if err := r.primary.Ping(ctx); err != nil {
		span.SetStatus(codes.Error, "primary_unavailable")
		return nil, fmt.Errorf("%w: %v", ErrPrimaryUnavailable, err)
	}

	// The store lock gives up on a done ctx and LoadAll would then look empty.
	// Staged entries are still counted, recorded as failures and left in place.
	storeCtx := context.WithoutCancel(ctx)
	entries := r.fallback.LoadAll(storeCtx)
	summary := &Summary{Pending: len(entries), Policy: r.policy, Failures: []Failure{}}
	if len(entries) == 0 {
		metrics.FallbackPending.Set(0)
		return summary, nil
	}

	var confirmed []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			summary.Failures = append(summary.Failures, Failure{Entry: e, Reason: err.Error()})
			continue
		}

		err := r.insert(ctx, e)
		switch {
		case err == nil:
			summary.Inserted++
			confirmed = append(confirmed, e.Key())
		case errors.Is(err, storage.ErrDuplicate):
			summary.Duplicates++
			confirmed = append(confirmed, e.Key())
		default:
			logger.Warn().Err(err).Str("key", e.Key()).Msg("failed to reconcile staged entry")
			summary.Failures = append(summary.Failures, Failure{Entry: e, Reason: err.Error()})
		}
	}

	metrics.ReconcileInserted.Add(float64(summary.Inserted))
	metrics.ReconcileFailed.Add(float64(len(summary.Failures)))
	span.SetAttributes(
		attribute.Int("pending", summary.Pending),
		attribute.Int("inserted", summary.Inserted),
		attribute.Int("failed", len(summary.Failures)),
	)

	if err := r.clear(storeCtx, summary, confirmed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clear_failed")
		return summary, err
	}
	metrics.FallbackPending.Set(float64(summary.Pending - summary.Cleared))

	logger.Info().
		Int("pending", summary.Pending).
		Int("inserted", summary.Inserted).
		Int("duplicates", summary.Duplicates).
		Int("failed", len(summary.Failures)).
		Int("cleared", summary.Cleared).
		Str("policy", string(summary.Policy)).
		Msg("reconciled fallback entries")
	return summary, nil
}

func (r *Reconciler) insert(ctx context.Context, e fallback.Entry) error {
	if e.IsSymptom() {
		s, err := e.ToSymptom(r.now())
		if err != nil {
			return err
		}
		return r.primary.InsertSymptom(ctx, s)
	}
	m, err := e.ToMetric(r.now())
	if err != nil {
		return err
	}
	return r.primary.InsertMetric(ctx, m)
}

func (r *Reconciler) clear(ctx context.Context, summary *Summary, confirmed []string) error {
	switch r.policy {
	case ClearAll:
		if summary.Inserted == 0 {
			return nil
		}
		if err := r.fallback.Clear(ctx); err != nil {
			return fmt.Errorf("clear fallback: %w", err)
		}
		summary.Cleared = summary.Pending
	default:
		if len(confirmed) == 0 {
			return nil
		}
		if err := r.fallback.Remove(ctx, confirmed); err != nil {
			return fmt.Errorf("remove reconciled entries: %w", err)
		}
		summary.Cleared = len(confirmed)
	}
	return nil
}

// Run drains every interval until ctx is done. An unreachable primary
// store is not an error; the next tick tries again.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid reconcile interval %s", interval)
	}
	logger := log.WithComponent("reconcile")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if len(r.Pending(ctx)) == 0 {
				continue
			}
			_, err := r.Drain(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrPrimaryUnavailable), errors.Is(err, ErrDrainInProgress):
				logger.Debug().Err(err).Msg("skipping scheduled drain")
			default:
				logger.Error().Err(err).Msg("scheduled drain failed")
			}
		}
	}
}

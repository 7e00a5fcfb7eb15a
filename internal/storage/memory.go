// ABOUTME: In-process PrimaryStore with switchable availability.
// ABOUTME: Backs the "memory" backend and simulates primary outages in tests.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/harperreed/healthhub/internal/models"
)

var errOffline = errors.New("memory store is offline")

// MemoryStore keeps records in memory. Records are copied on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	metrics  []*models.Metric
	symptoms []*models.Symptom
	ids      map[uuid.UUID]struct{}
	offline  bool
	failNext map[uuid.UUID]error
}

var _ PrimaryStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty, available store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids:      make(map[uuid.UUID]struct{}),
		failNext: make(map[uuid.UUID]error),
	}
}

// SetAvailable switches the store between reachable and unreachable.
func (s *MemoryStore) SetAvailable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = !ok
}

// FailInsert makes the next insert of id fail with err.
func (s *MemoryStore) FailInsert(id uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[id] = err
}

func (s *MemoryStore) insert(op string, id uuid.UUID, add func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offline {
		return Unavailable(op, errOffline)
	}
	if err, ok := s.failNext[id]; ok {
		delete(s.failNext, id)
		return &Error{Op: op, Err: err}
	}
	if _, exists := s.ids[id]; exists {
		return Duplicate(op, errors.New(id.String()))
	}
	s.ids[id] = struct{}{}
	add()
	return nil
}

// InsertMetric stores a copy of m.
func (s *MemoryStore) InsertMetric(_ context.Context, m *models.Metric) error {
	c := copyMetric(m)
	return s.insert("create metric", m.ID, func() { s.metrics = append(s.metrics, c) })
}

// InsertSymptom stores a copy of sym.
func (s *MemoryStore) InsertSymptom(_ context.Context, sym *models.Symptom) error {
	c := *sym
	return s.insert("create symptom", sym.ID, func() { s.symptoms = append(s.symptoms, &c) })
}

// LatestMetricsPerType returns the newest metric of each type, newest first.
func (s *MemoryStore) LatestMetricsPerType(ctx context.Context, userID int64) ([]*models.Metric, error) {
	all, err := s.ListMetrics(ctx, MetricFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	seen := make(map[models.MetricType]bool)
	var out []*models.Metric
	for _, m := range all {
		if seen[m.MetricType] {
			continue
		}
		seen[m.MetricType] = true
		out = append(out, m)
	}
	return out, nil
}

// ListMetrics returns matching metrics, newest first with insertion order on ties.
func (s *MemoryStore) ListMetrics(_ context.Context, f MetricFilter) ([]*models.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.offline {
		return nil, Unavailable("list metrics", errOffline)
	}
	var out []*models.Metric
	for _, m := range s.metrics {
		if f.Match(m) {
			out = append(out, copyMetric(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ListSymptoms returns matching symptoms, newest first.
func (s *MemoryStore) ListSymptoms(_ context.Context, f SymptomFilter) ([]*models.Symptom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.offline {
		return nil, Unavailable("list symptoms", errOffline)
	}
	var out []*models.Symptom
	for _, sym := range s.symptoms {
		if f.Match(sym) {
			c := *sym
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Ping fails while the store is offline.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.offline {
		return Unavailable("ping", errOffline)
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func copyMetric(m *models.Metric) *models.Metric {
	c := *m
	if m.Value != nil {
		c.Value = models.Float(*m.Value)
	}
	if m.AdditionalData != nil {
		c.AdditionalData = make(map[string]float64, len(m.AdditionalData))
		for k, v := range m.AdditionalData {
			c.AdditionalData[k] = v
		}
	}
	return &c
}

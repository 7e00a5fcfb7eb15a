// ABOUTME: FallbackEntry codec shared by every fallback store.
// ABOUTME: Converts records to flat JSON entries and back, tolerating legacy and partial files.
package fallback

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/healthhub/internal/models"
)

// Entry kinds.
const (
	KindMetric  = "metric"
	KindSymptom = "symptom"
)

// keyNamespace derives stable ids for legacy entries that were staged without one.
var keyNamespace = uuid.MustParse("6f1d3b8e-4c1a-4f59-9a7e-2b0c8d5e7a41")

// Number is a decimal that also decodes from a numeric string.
type Number float64

// UnmarshalJSON accepts 12.5 and "12.5".
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("number %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Entry is one staged record. Timestamps stay strings so a single bad value
// never makes the whole store unreadable. Entries without Kind are metrics.
type Entry struct {
	Kind           string            `json:"kind,omitempty"`
	ID             string            `json:"id,omitempty"`
	UserID         int64             `json:"user_id"`
	MetricType     string            `json:"metric_type,omitempty"`
	Value          *Number           `json:"value,omitempty"`
	Unit           string            `json:"unit,omitempty"`
	AdditionalData map[string]Number `json:"additional_data,omitempty"`
	Symptom        string            `json:"symptom,omitempty"`
	Description    *string           `json:"description,omitempty"`
	Severity       string            `json:"severity,omitempty"`
	RecordedAt     string            `json:"recorded_at,omitempty"`
	CreatedAt      string            `json:"created_at,omitempty"`
}

// FromMetric builds an entry for m staged at now.
func FromMetric(m *models.Metric, now time.Time) Entry {
	e := Entry{
		Kind:       KindMetric,
		ID:         m.ID.String(),
		UserID:     m.UserID,
		MetricType: string(m.MetricType),
		Unit:       m.Unit,
		RecordedAt: m.RecordedAt.UTC().Format(time.RFC3339Nano),
		CreatedAt:  now.UTC().Format(time.RFC3339Nano),
	}
	if m.Value != nil {
		v := Number(*m.Value)
		e.Value = &v
	}
	if len(m.AdditionalData) > 0 {
		e.AdditionalData = make(map[string]Number, len(m.AdditionalData))
		for k, v := range m.AdditionalData {
			e.AdditionalData[k] = Number(v)
		}
	}
	return e
}

// FromSymptom builds an entry for s staged at now.
func FromSymptom(s *models.Symptom, now time.Time) Entry {
	return Entry{
		Kind:        KindSymptom,
		ID:          s.ID.String(),
		UserID:      s.UserID,
		Symptom:     s.Symptom,
		Description: s.Description,
		Severity:    string(s.Severity),
		RecordedAt:  s.RecordedAt.UTC().Format(time.RFC3339Nano),
		CreatedAt:   now.UTC().Format(time.RFC3339Nano),
	}
}

// IsSymptom reports whether the entry holds a symptom.
func (e Entry) IsSymptom() bool {
	return e.Kind == KindSymptom
}

// Key identifies the entry for confirmed removal: the record id when
// present, otherwise a hash of the entry's content.
func (e Entry) Key() string {
	if e.ID != "" {
		return e.ID
	}
	b, _ := json.Marshal(e)
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Timestamp returns recorded_at, or created_at when recorded_at is absent or
// unparsable. ok is false when neither parses.
func (e Entry) Timestamp() (time.Time, bool) {
	if t, err := models.ParseTime(e.RecordedAt); err == nil {
		return t, true
	}
	if t, err := models.ParseTime(e.CreatedAt); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (e Entry) recordID() uuid.UUID {
	if id, err := uuid.Parse(e.ID); err == nil {
		return id
	}
	return uuid.NewSHA1(keyNamespace, []byte(e.Key()))
}

func (e Entry) createdAt(fallback time.Time) time.Time {
	if t, err := models.ParseTime(e.CreatedAt); err == nil {
		return t
	}
	return fallback
}

// ToMetric converts the entry to a metric. Entries with no usable timestamp
// take now as recorded_at.
func (e Entry) ToMetric(now time.Time) (*models.Metric, error) {
	if e.IsSymptom() {
		return nil, errors.New("entry is a symptom")
	}
	if !models.IsValidMetricType(e.MetricType) {
		return nil, fmt.Errorf("invalid metric_type %q", e.MetricType)
	}

	recordedAt, ok := e.Timestamp()
	if !ok {
		recordedAt = now.UTC()
	}

	m := &models.Metric{
		ID:         e.recordID(),
		UserID:     e.UserID,
		MetricType: models.MetricType(e.MetricType),
		Unit:       e.Unit,
		RecordedAt: recordedAt,
		CreatedAt:  e.createdAt(now.UTC()),
	}
	if e.Value != nil {
		m.Value = models.Float(float64(*e.Value))
	}
	if len(e.AdditionalData) > 0 {
		m.AdditionalData = make(map[string]float64, len(e.AdditionalData))
		for k, v := range e.AdditionalData {
			m.AdditionalData[k] = float64(v)
		}
	}
	if m.MetricType == models.MetricBloodPressure {
		if sys, ok := m.AdditionalData[models.KeySystolic]; ok {
			m.Value = models.Float(sys)
		}
	}
	if m.Unit == "" {
		m.Unit = models.MetricUnits[m.MetricType]
	}
	return m, nil
}

// ToSymptom converts the entry to a symptom.
func (e Entry) ToSymptom(now time.Time) (*models.Symptom, error) {
	if !e.IsSymptom() {
		return nil, errors.New("entry is not a symptom")
	}
	if e.Symptom == "" {
		return nil, errors.New("symptom name is empty")
	}
	if !models.IsValidSeverity(e.Severity) {
		return nil, fmt.Errorf("invalid severity %q", e.Severity)
	}

	recordedAt, ok := e.Timestamp()
	if !ok {
		recordedAt = now.UTC()
	}
	return &models.Symptom{
		ID:          e.recordID(),
		UserID:      e.UserID,
		Symptom:     e.Symptom,
		Description: e.Description,
		Severity:    models.Severity(e.Severity),
		RecordedAt:  recordedAt,
		CreatedAt:   e.createdAt(now.UTC()),
	}, nil
}

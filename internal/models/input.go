// ABOUTME: Request payloads for recording metrics and symptoms, with validation.
// ABOUTME: Validation fails fast with field-level messages before anything reaches storage.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValidationError carries field-level validation messages.
type ValidationError struct {
	Fields map[string][]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for a field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// MetricInput is the payload for recording a metric.
// Value and AdditionalData values accept JSON numbers or numeric strings.
type MetricInput struct {
	MetricType     string         `json:"metric_type"`
	Value          any            `json:"value,omitempty"`
	Unit           string         `json:"unit"`
	AdditionalData map[string]any `json:"additional_data,omitempty"`
	RecordedAt     string         `json:"recorded_at"`
}

// Build validates the input and returns a normalized Metric for userID.
// Blood pressure readings take their value from additional_data.systolic.
func (in MetricInput) Build(userID int64, now time.Time) (*Metric, error) {
	verr := &ValidationError{}

	mt := strings.TrimSpace(in.MetricType)
	switch {
	case mt == "":
		verr.Add("metric_type", "The metric_type field is required.")
	case !IsValidMetricType(mt):
		verr.Add("metric_type", "The selected metric_type is invalid.")
	}

	if strings.TrimSpace(in.Unit) == "" {
		verr.Add("unit", "The unit field is required.")
	}

	var recordedAt time.Time
	if strings.TrimSpace(in.RecordedAt) == "" {
		verr.Add("recorded_at", "The recorded_at field is required.")
	} else if t, err := ParseTime(in.RecordedAt); err != nil {
		verr.Add("recorded_at", "The recorded_at is not a valid date.")
	} else {
		recordedAt = t
	}

	extra := make(map[string]float64, len(in.AdditionalData))
	for k, raw := range in.AdditionalData {
		v, ok := toFloat(raw)
		if !ok {
			verr.Add("additional_data."+k, fmt.Sprintf("The additional_data.%s must be a number.", k))
			continue
		}
		extra[k] = v
	}

	var value *float64
	if MetricType(mt) == MetricBloodPressure {
		for _, key := range []string{KeySystolic, KeyDiastolic} {
			if _, present := in.AdditionalData[key]; !present {
				verr.Add("additional_data."+key, fmt.Sprintf("The additional_data.%s field is required.", key))
			}
		}
		if sys, ok := extra[KeySystolic]; ok {
			value = &sys
		}
		if dia, ok := extra[KeyDiastolic]; ok && value != nil {
			extra = map[string]float64{KeySystolic: *value, KeyDiastolic: dia}
		}
	} else {
		switch v, ok := toFloat(in.Value); {
		case in.Value == nil:
			verr.Add("value", "The value field is required.")
		case !ok:
			verr.Add("value", "The value must be a number.")
		default:
			value = &v
		}
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}

	if len(extra) == 0 {
		extra = nil
	}
	return &Metric{
		ID:             uuid.New(),
		UserID:         userID,
		MetricType:     MetricType(mt),
		Value:          value,
		Unit:           strings.TrimSpace(in.Unit),
		AdditionalData: extra,
		RecordedAt:     recordedAt,
		CreatedAt:      now.UTC(),
	}, nil
}

// SymptomInput is the payload for recording a symptom.
type SymptomInput struct {
	Symptom     string  `json:"symptom"`
	Description *string `json:"description,omitempty"`
	Severity    string  `json:"severity"`
	RecordedAt  string  `json:"recorded_at"`
}

// Build validates the input and returns a Symptom for userID.
func (in SymptomInput) Build(userID int64, now time.Time) (*Symptom, error) {
	verr := &ValidationError{}

	name := strings.TrimSpace(in.Symptom)
	switch {
	case name == "":
		verr.Add("symptom", "The symptom field is required.")
	case len([]rune(name)) > MaxSymptomLength:
		verr.Add("symptom", fmt.Sprintf("The symptom may not be greater than %d characters.", MaxSymptomLength))
	}

	switch {
	case in.Severity == "":
		verr.Add("severity", "The severity field is required.")
	case !IsValidSeverity(in.Severity):
		verr.Add("severity", "The selected severity is invalid.")
	}

	var recordedAt time.Time
	if strings.TrimSpace(in.RecordedAt) == "" {
		verr.Add("recorded_at", "The recorded_at field is required.")
	} else if t, err := ParseTime(in.RecordedAt); err != nil {
		verr.Add("recorded_at", "The recorded_at is not a valid date.")
	} else {
		recordedAt = t
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}

	s := &Symptom{
		ID:         uuid.New(),
		UserID:     userID,
		Symptom:    name,
		Severity:   Severity(in.Severity),
		RecordedAt: recordedAt,
		CreatedAt:  now.UTC(),
	}
	if in.Description != nil && *in.Description != "" {
		s.WithDescription(*in.Description)
	}
	return s, nil
}

// ParseTime accepts the date formats clients commonly send.
// Values without a zone are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

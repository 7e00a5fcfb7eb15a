// ABOUTME: Metric model and MetricType enum for health measurements.
// ABOUTME: Defines the six supported metric types, their default units, and blood pressure helpers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MetricType represents the type of health metric being recorded.
type MetricType string

const (
	MetricBloodPressure MetricType = "blood_pressure"
	MetricBloodSugar    MetricType = "blood_sugar"
	MetricWeight        MetricType = "weight"
	MetricTemperature   MetricType = "temperature"
	MetricBMI           MetricType = "bmi"
	MetricHeartRate     MetricType = "heart_rate"
)

// Keys used in AdditionalData for blood pressure readings.
const (
	KeySystolic  = "systolic"
	KeyDiastolic = "diastolic"
)

// MetricUnits maps metric types to their canonical units.
var MetricUnits = map[MetricType]string{
	MetricBloodPressure: "mmHg",
	MetricBloodSugar:    "mg/dL",
	MetricWeight:        "kg",
	MetricTemperature:   "°C",
	MetricBMI:           "kg/m²",
	MetricHeartRate:     "bpm",
}

// AllMetricTypes returns all valid metric types.
var AllMetricTypes = []MetricType{
	MetricBloodPressure, MetricBloodSugar, MetricWeight,
	MetricTemperature, MetricBMI, MetricHeartRate,
}

// IsValidMetricType checks if a string is a valid metric type.
func IsValidMetricType(s string) bool {
	for _, mt := range AllMetricTypes {
		if string(mt) == s {
			return true
		}
	}
	return false
}

// Metric represents a single health measurement for a user.
// For blood pressure, Value always equals AdditionalData["systolic"].
type Metric struct {
	ID             uuid.UUID          `json:"id"`
	UserID         int64              `json:"user_id"`
	MetricType     MetricType         `json:"metric_type"`
	Value          *float64           `json:"value"`
	Unit           string             `json:"unit"`
	AdditionalData map[string]float64 `json:"additional_data,omitempty"`
	RecordedAt     time.Time          `json:"recorded_at"`
	CreatedAt      time.Time          `json:"created_at"`
}

// NewMetric creates a new Metric with generated UUID and current timestamp.
func NewMetric(userID int64, metricType MetricType, value float64) *Metric {
	now := time.Now().UTC()
	return &Metric{
		ID:         uuid.New(),
		UserID:     userID,
		MetricType: metricType,
		Value:      &value,
		Unit:       MetricUnits[metricType],
		RecordedAt: now,
		CreatedAt:  now,
	}
}

// NewBloodPressure creates a blood pressure Metric whose value is the systolic reading.
func NewBloodPressure(userID int64, systolic, diastolic float64) *Metric {
	m := NewMetric(userID, MetricBloodPressure, systolic)
	m.AdditionalData = map[string]float64{
		KeySystolic:  systolic,
		KeyDiastolic: diastolic,
	}
	return m
}

// WithRecordedAt sets a custom recorded_at timestamp.
func (m *Metric) WithRecordedAt(t time.Time) *Metric {
	m.RecordedAt = t.UTC()
	return m
}

// WithUnit overrides the default unit.
func (m *Metric) WithUnit(unit string) *Metric {
	m.Unit = unit
	return m
}

// Systolic returns the systolic reading of a blood pressure metric.
func (m *Metric) Systolic() (float64, bool) {
	if v, ok := m.AdditionalData[KeySystolic]; ok {
		return v, true
	}
	if m.MetricType == MetricBloodPressure && m.Value != nil {
		return *m.Value, true
	}
	return 0, false
}

// Diastolic returns the diastolic reading of a blood pressure metric.
func (m *Metric) Diastolic() (float64, bool) {
	v, ok := m.AdditionalData[KeyDiastolic]
	return v, ok
}

// Float returns a pointer to v. Handy for optional values in literals.
func Float(v float64) *float64 {
	return &v
}

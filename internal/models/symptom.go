// ABOUTME: Symptom model and Severity enum for symptom events.
// ABOUTME: Symptoms are immutable once recorded and share the history timeline with metrics.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity grades a symptom.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// MaxSymptomLength is the longest symptom name accepted.
const MaxSymptomLength = 255

// IsValidSeverity checks if a string is a valid severity.
func IsValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// Symptom represents a symptom event logged by a user.
type Symptom struct {
	ID          uuid.UUID `json:"id"`
	UserID      int64     `json:"user_id"`
	Symptom     string    `json:"symptom"`
	Description *string   `json:"description,omitempty"`
	Severity    Severity  `json:"severity"`
	RecordedAt  time.Time `json:"recorded_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewSymptom creates a new Symptom with generated UUID and current timestamp.
func NewSymptom(userID int64, name string, severity Severity) *Symptom {
	now := time.Now().UTC()
	return &Symptom{
		ID:         uuid.New(),
		UserID:     userID,
		Symptom:    name,
		Severity:   severity,
		RecordedAt: now,
		CreatedAt:  now,
	}
}

// WithDescription sets the free-text description.
func (s *Symptom) WithDescription(d string) *Symptom {
	s.Description = &d
	return s
}

// WithRecordedAt sets a custom recorded_at timestamp.
func (s *Symptom) WithRecordedAt(t time.Time) *Symptom {
	s.RecordedAt = t.UTC()
	return s
}

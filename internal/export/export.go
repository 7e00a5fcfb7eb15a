// ABOUTME: Export and import of health data as JSON or YAML.
// ABOUTME: Exports include staged fallback entries so nothing pending is left out of a backup.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/healthhub/internal/fallback"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/storage"
	"gopkg.in/yaml.v3"
)

// Version of the export format.
const Version = "1.0"

// Data is the full export document.
type Data struct {
	Version    string            `json:"version" yaml:"version"`
	ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
	Tool       string            `json:"tool" yaml:"tool"`
	Metrics    []*models.Metric  `json:"metrics" yaml:"metrics"`
	Symptoms   []*models.Symptom `json:"symptoms" yaml:"symptoms"`
	Pending    []fallback.Entry  `json:"pending,omitempty" yaml:"pending,omitempty"`
}

// Options narrows an export. UserID 0 exports every user.
type Options struct {
	UserID int64
	Since  *time.Time
}

// Collect gathers records from the primary store plus any staged entries.
// fb may be nil.
func Collect(ctx context.Context, store storage.PrimaryStore, fb fallback.Store, opts Options) (*Data, error) {
	metrics, err := store.ListMetrics(ctx, storage.MetricFilter{UserID: opts.UserID, Since: opts.Since})
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	symptoms, err := store.ListSymptoms(ctx, storage.SymptomFilter{UserID: opts.UserID, Since: opts.Since})
	if err != nil {
		return nil, fmt.Errorf("list symptoms: %w", err)
	}

	data := &Data{
		Version:    Version,
		ExportedAt: time.Now().UTC(),
		Tool:       "healthhub",
		Metrics:    metrics,
		Symptoms:   symptoms,
	}
	if fb != nil {
		for _, e := range fb.LoadAll(ctx) {
			if opts.UserID == 0 || e.UserID == opts.UserID {
				data.Pending = append(data.Pending, e)
			}
		}
	}
	return data, nil
}

// JSON renders data as indented JSON.
func JSON(data *Data) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

type yamlMetric struct {
	ID             string             `yaml:"id"`
	UserID         int64              `yaml:"user_id"`
	Value          *float64           `yaml:"value,omitempty"`
	Unit           string             `yaml:"unit"`
	AdditionalData map[string]float64 `yaml:"additional_data,omitempty"`
	RecordedAt     string             `yaml:"recorded_at"`
}

type yamlSymptom struct {
	ID          string `yaml:"id"`
	UserID      int64  `yaml:"user_id"`
	Symptom     string `yaml:"symptom"`
	Description string `yaml:"description,omitempty"`
	Severity    string `yaml:"severity"`
	RecordedAt  string `yaml:"recorded_at"`
}

// YAML renders data for reading, with metrics grouped by type.
func YAML(data *Data) ([]byte, error) {
	doc := struct {
		Version    string                  `yaml:"version"`
		ExportedAt string                  `yaml:"exported_at"`
		Tool       string                  `yaml:"tool"`
		Metrics    map[string][]yamlMetric `yaml:"metrics"`
		Symptoms   []yamlSymptom           `yaml:"symptoms"`
		Pending    int                     `yaml:"pending"`
	}{
		Version:    data.Version,
		ExportedAt: data.ExportedAt.Format(time.RFC3339),
		Tool:       data.Tool,
		Metrics:    make(map[string][]yamlMetric),
		Symptoms:   make([]yamlSymptom, 0, len(data.Symptoms)),
		Pending:    len(data.Pending),
	}

	for _, m := range data.Metrics {
		mt := string(m.MetricType)
		doc.Metrics[mt] = append(doc.Metrics[mt], yamlMetric{
			ID:             m.ID.String()[:8],
			UserID:         m.UserID,
			Value:          m.Value,
			Unit:           m.Unit,
			AdditionalData: m.AdditionalData,
			RecordedAt:     m.RecordedAt.Format(time.RFC3339),
		})
	}
	for _, s := range data.Symptoms {
		ys := yamlSymptom{
			ID:         s.ID.String()[:8],
			UserID:     s.UserID,
			Symptom:    s.Symptom,
			Severity:   string(s.Severity),
			RecordedAt: s.RecordedAt.Format(time.RFC3339),
		}
		if s.Description != nil {
			ys.Description = *s.Description
		}
		doc.Symptoms = append(doc.Symptoms, ys)
	}

	return yaml.Marshal(doc)
}

// ImportSummary counts what an import did.
type ImportSummary struct {
	Metrics  int
	Symptoms int
	Skipped  int
}

// Import loads a JSON export into store. Records already present are
// skipped. Pending entries are not imported; reconcile them instead.
func Import(ctx context.Context, store storage.PrimaryStore, raw []byte) (*ImportSummary, error) {
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}

	summary := &ImportSummary{}
	for _, m := range data.Metrics {
		err := store.InsertMetric(ctx, m)
		switch {
		case err == nil:
			summary.Metrics++
		case errors.Is(err, storage.ErrDuplicate):
			summary.Skipped++
		default:
			return summary, fmt.Errorf("import metric: %w", err)
		}
	}
	for _, s := range data.Symptoms {
		err := store.InsertSymptom(ctx, s)
		switch {
		case err == nil:
			summary.Symptoms++
		case errors.Is(err, storage.ErrDuplicate):
			summary.Skipped++
		default:
			return summary, fmt.Errorf("import symptom: %w", err)
		}
	}
	return summary, nil
}

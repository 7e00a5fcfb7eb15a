// ABOUTME: CLI commands for recording metrics and symptoms.
// ABOUTME: Goes through the dual-write path, so records are staged when the primary store is down.
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/healthhub/internal/dualwrite"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/spf13/cobra"
)

var (
	addAt   string
	addUnit string

	symptomAt          string
	symptomSeverity    string
	symptomDescription string
)

// metricAliases are CLI shorthands for metric types.
var metricAliases = map[string]models.MetricType{
	"bp":    models.MetricBloodPressure,
	"sugar": models.MetricBloodSugar,
	"temp":  models.MetricTemperature,
	"hr":    models.MetricHeartRate,
}

var addCmd = &cobra.Command{
	Use:     "add <type> <value> [diastolic]",
	Aliases: []string{"a"},
	Short:   "Add a health metric",
	Long: `Add a health metric. For blood pressure, provide both systolic and diastolic values.

Types: blood_pressure (bp), blood_sugar (sugar), weight, temperature (temp),
bmi, heart_rate (hr). The unit defaults to the type's canonical unit.

Examples:
  healthhub add weight 82.5
  healthhub add heart_rate 64 --at "2024-12-14 07:00"
  healthhub add bp 120 80
  healthhub add temperature 98.6 --unit °F`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		metricType := resolveMetricType(args[0])
		if !models.IsValidMetricType(string(metricType)) {
			return fmt.Errorf("unknown metric type: %s\nValid types: blood_pressure, blood_sugar, weight, temperature, bmi, heart_rate", args[0])
		}

		in, err := buildMetricInput(metricType, args[1:])
		if err != nil {
			return err
		}

		res, err := writer.RecordMetric(cmd.Context(), currentUser(), in)
		if err != nil {
			return describeWriteError("metric", err)
		}

		color.Green("✓ Added %s", metricType)
		fmt.Printf("  %s %s\n",
			color.New(color.Faint).Sprint(res.Metric.ID.String()[:8]),
			formatMetric(res.Metric))
		reportStored(res)
		return nil
	},
}

var symptomCmd = &cobra.Command{
	Use:   "symptom <name>",
	Short: "Record a symptom",
	Long: `Record a symptom with a severity of mild, moderate or severe.

Examples:
  healthhub symptom headache --severity mild
  healthhub symptom nausea -s moderate -d "after lunch" --at "2024-12-14 13:30"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := recordedAt(symptomAt)
		if err != nil {
			return err
		}

		in := models.SymptomInput{
			Symptom:    args[0],
			Severity:   strings.ToLower(symptomSeverity),
			RecordedAt: at,
		}
		if symptomDescription != "" {
			in.Description = &symptomDescription
		}

		res, err := writer.RecordSymptom(cmd.Context(), currentUser(), in)
		if err != nil {
			return describeWriteError("symptom", err)
		}

		color.Green("✓ Added symptom %s", res.Symptom.Symptom)
		fmt.Printf("  %s %s\n",
			color.New(color.Faint).Sprint(res.Symptom.ID.String()[:8]),
			res.Symptom.Severity)
		reportStored(res)
		return nil
	},
}

func resolveMetricType(s string) models.MetricType {
	s = strings.ToLower(strings.TrimSpace(s))
	if mt, ok := metricAliases[s]; ok {
		return mt
	}
	return models.MetricType(s)
}

// buildMetricInput turns positional values into a MetricInput.
func buildMetricInput(metricType models.MetricType, values []string) (models.MetricInput, error) {
	at, err := recordedAt(addAt)
	if err != nil {
		return models.MetricInput{}, err
	}

	unit := addUnit
	if unit == "" {
		unit = models.MetricUnits[metricType]
	}
	in := models.MetricInput{
		MetricType: string(metricType),
		Unit:       unit,
		RecordedAt: at,
	}

	if metricType == models.MetricBloodPressure {
		if len(values) < 2 {
			return in, errors.New("blood pressure requires two values: systolic and diastolic")
		}
		in.AdditionalData = map[string]any{
			models.KeySystolic:  values[0],
			models.KeyDiastolic: values[1],
		}
		return in, nil
	}

	if len(values) > 1 {
		return in, fmt.Errorf("%s takes a single value", metricType)
	}
	in.Value = values[0]
	return in, nil
}

// recordedAt normalizes the --at flag, defaulting to now.
func recordedAt(flag string) (string, error) {
	if flag == "" {
		return time.Now().UTC().Format(time.RFC3339), nil
	}
	t, err := parseTime(flag)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp: %s", flag)
	}
	return t.Format(time.RFC3339), nil
}

// parseTime reads --at values in local time unless a zone is given.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

func describeWriteError(kind string, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("invalid %s: %w", kind, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("failed to record %s: %w", kind, err)
}

func reportStored(res *dualwrite.WriteResult) {
	if res.Stored == dualwrite.StoredFallback {
		color.Yellow("⚠ Primary store unavailable; staged locally. Run 'healthhub reconcile' once it is back.")
	}
}

func formatMetric(m *models.Metric) string {
	if m.MetricType == models.MetricBloodPressure {
		sys, _ := m.Systolic()
		if dia, ok := m.Diastolic(); ok {
			return fmt.Sprintf("%.0f/%.0f %s", sys, dia, m.Unit)
		}
		return fmt.Sprintf("%.0f %s", sys, m.Unit)
	}
	if m.Value == nil {
		return m.Unit
	}
	return fmt.Sprintf("%.2f %s", *m.Value, m.Unit)
}

func init() {
	addCmd.Flags().StringVar(&addAt, "at", "", "timestamp (YYYY-MM-DD HH:MM)")
	addCmd.Flags().StringVarP(&addUnit, "unit", "u", "", "unit (default: canonical unit for the type)")
	rootCmd.AddCommand(addCmd)

	symptomCmd.Flags().StringVar(&symptomAt, "at", "", "timestamp (YYYY-MM-DD HH:MM)")
	symptomCmd.Flags().StringVarP(&symptomSeverity, "severity", "s", "mild", "mild, moderate or severe")
	symptomCmd.Flags().StringVarP(&symptomDescription, "description", "d", "", "free-text description")
	rootCmd.AddCommand(symptomCmd)
}

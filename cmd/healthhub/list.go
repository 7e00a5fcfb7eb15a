// ABOUTME: CLI commands for reading health data: status, history and chart.
// ABOUTME: Reads merge the primary store with staged fallback entries.
package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/healthhub/internal/classify"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/readpath"
	"github.com/spf13/cobra"
)

var (
	historyMetric string
	historyDays   int
	historyLimit  int

	chartDays int
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show the latest classified reading per metric",
	Long: `Show the newest reading of each metric type with its classification
(normal, high, low, and so on).

The footer says where the data came from: primary, or fallback when
the primary store is down and only staged records are available.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := reader.LatestStatusPerType(cmd.Context(), currentUser())
		if err != nil {
			return fmt.Errorf("failed to load status: %w", err)
		}

		if len(report.MetricsStatus) == 0 {
			fmt.Println("No metrics recorded yet.")
			return nil
		}

		types := make([]string, 0, len(report.MetricsStatus))
		for mt := range report.MetricsStatus {
			types = append(types, string(mt))
		}
		sort.Strings(types)

		faint := color.New(color.Faint)
		for _, t := range types {
			hs := report.MetricsStatus[models.MetricType(t)]
			fmt.Printf("%s %s %s %s\n",
				padRight(t, 16),
				statusColor(hs.Status).Sprint(padRight(hs.Status, 20)),
				padRight(statusValue(hs), 14),
				faint.Sprint(hs.RecordedAt.Local().Format("2006-01-02 15:04")))
		}
		if report.LastUpdated != nil {
			faint.Printf("\nLast updated %s (source: %s)\n",
				report.LastUpdated.Local().Format("2006-01-02 15:04"), report.Source)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"ls", "list"},
	Short:   "Show the metric and symptom timeline",
	Long: `Show metrics and symptoms newest first.

OUTPUT FORMAT:

  Each line shows: ID  TIMESTAMP  TYPE  VALUE/SEVERITY  STATUS  [SOURCE]

FILTERING:

  --metric symptom      only symptoms
  --metric <type>       only that metric type
  --days N              last N days (0 = all time)

EXAMPLES:

  healthhub history                       # Last 30 days
  healthhub history --metric weight       # Weight only
  healthhub history --days 0 -n 100       # Everything, capped at 100 lines`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := historyMetric
		if filter != "" && filter != readpath.FilterSymptom {
			filter = string(resolveMetricType(filter))
		}

		entries, err := reader.History(cmd.Context(), currentUser(), filter, historyDays)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No history found.")
			return nil
		}
		if historyLimit > 0 && len(entries) > historyLimit {
			entries = entries[:historyLimit]
		}

		faint := color.New(color.Faint)
		for _, e := range entries {
			var kind, detail, status string
			if e.Type == readpath.TypeSymptom {
				kind = truncate(e.Symptom, 16)
				detail = string(e.Severity)
				if e.Description != nil && *e.Description != "" {
					status = faint.Sprintf("(%s)", truncate(*e.Description, 30))
				}
			} else {
				kind = string(e.MetricType)
				detail = historyValue(e)
				status = statusColor(e.Status).Sprint(e.Status)
			}
			source := ""
			if e.Source == readpath.SourceFallback {
				source = color.YellowString(" [staged]")
			}
			fmt.Printf("%s %s %s %s %s%s\n",
				faint.Sprint(e.ID.String()[:8]),
				faint.Sprint(e.RecordedAt.Local().Format("2006-01-02 15:04")),
				padRight(kind, 16),
				padRight(detail, 14),
				status,
				source)
		}
		return nil
	},
}

var chartCmd = &cobra.Command{
	Use:   "chart <metric>",
	Short: "Show a metric's series over time",
	Long: `Show a metric's readings oldest first as a table.

Blood pressure shows systolic and diastolic columns side by side.

EXAMPLES:

  healthhub chart weight             # Last 30 days
  healthhub chart bp --days 90       # Blood pressure, last 90 days
  healthhub chart heart_rate --days 0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		metricType := resolveMetricType(args[0])
		chart, err := reader.ChartSeries(cmd.Context(), currentUser(), string(metricType), chartDays)
		if errors.Is(err, readpath.ErrUnknownMetric) {
			return fmt.Errorf("unknown metric type: %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to load chart: %w", err)
		}
		if len(chart.Flat) == 0 {
			fmt.Printf("No %s readings in range.\n", chart.Metric)
			return nil
		}

		faint := color.New(color.Faint)
		bold := color.New(color.Bold)
		if chart.IsBloodPressure() {
			bold.Printf("%s %s %s\n", padRight("TIMESTAMP", 17), padRight("SYSTOLIC", 9), "DIASTOLIC")
		} else {
			bold.Printf("%s %s\n", padRight("TIMESTAMP", 17), strings.ToUpper(chart.Unit))
		}
		for _, row := range chart.Flat {
			ts := faint.Sprint(padRight(row.Timestamp.Local().Format("2006-01-02 15:04"), 17))
			if chart.IsBloodPressure() {
				fmt.Printf("%s %s %s\n", ts, padRight(optional(row.Systolic), 9), optional(row.Diastolic))
				continue
			}
			fmt.Printf("%s %s\n", ts, optional(row.Value))
		}
		if chart.Source != readpath.SourcePrimary {
			color.Yellow("\nIncludes staged records (source: %s)", chart.Source)
		}
		return nil
	},
}

func statusValue(hs readpath.HealthStatus) string {
	if sys, ok := hs.AdditionalData[models.KeySystolic]; ok {
		if dia, ok := hs.AdditionalData[models.KeyDiastolic]; ok {
			return fmt.Sprintf("%.0f/%.0f %s", sys, dia, hs.Unit)
		}
	}
	if hs.Value == nil {
		return hs.Unit
	}
	return fmt.Sprintf("%.1f %s", *hs.Value, hs.Unit)
}

func historyValue(e readpath.HistoryEntry) string {
	if sys, ok := e.AdditionalData[models.KeySystolic]; ok {
		if dia, ok := e.AdditionalData[models.KeyDiastolic]; ok {
			return fmt.Sprintf("%.0f/%.0f %s", sys, dia, e.Unit)
		}
	}
	if e.Value == nil {
		return e.Unit
	}
	return fmt.Sprintf("%.1f %s", *e.Value, e.Unit)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func statusColor(status string) *color.Color {
	switch status {
	case classify.Normal:
		return color.New(color.FgGreen)
	case classify.Unknown, classify.Recorded, "":
		return color.New(color.Faint)
	case classify.High, classify.Fever, classify.Obese:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	historyCmd.Flags().StringVarP(&historyMetric, "metric", "m", "", "filter: metric type or 'symptom'")
	historyCmd.Flags().IntVar(&historyDays, "days", 30, "days to include (0 = all time)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "max number of lines (0 = no limit)")
	chartCmd.Flags().IntVar(&chartDays, "days", 30, "days to include (0 = all time)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(chartCmd)
}

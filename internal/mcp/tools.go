// ABOUTME: MCP tool implementations for health metrics and symptoms.
// ABOUTME: Recording goes through the dual-write path; reads use the merged read path.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/readpath"
	"github.com/harperreed/healthhub/internal/reconcile"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "record_metric",
		Description: "Record a health metric (blood_pressure, blood_sugar, weight, temperature, bmi, heart_rate)",
	}, s.handleRecordMetric)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "record_symptom",
		Description: "Record a symptom with severity mild, moderate or severe",
	}, s.handleRecordSymptom)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_status",
		Description: "Get the latest classified status for each metric type",
	}, s.handleGetStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_history",
		Description: "List metrics and symptoms, newest first",
	}, s.handleGetHistory)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_chart",
		Description: "Get chart series for one metric type, oldest first",
	}, s.handleGetChart)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reconcile",
		Description: "Move records staged during a storage outage into the primary store",
	}, s.handleReconcile)
}

// Tool input/output types

type recordMetricInput struct {
	MetricType string  `json:"metric_type" jsonschema:"Type of metric: blood_pressure, blood_sugar, weight, temperature, bmi or heart_rate"`
	Value      *float64 `json:"value,omitempty" jsonschema:"The metric value; systolic for blood_pressure"`
	Diastolic  *float64 `json:"diastolic,omitempty" jsonschema:"Diastolic reading, required for blood_pressure"`
	Unit       string   `json:"unit,omitempty" jsonschema:"Unit, defaults to the canonical unit for the type"`
	RecordedAt string   `json:"recorded_at,omitempty" jsonschema:"Timestamp (ISO 8601), defaults to now"`
}

type recordOutput struct {
	ID      string `json:"id"`
	Stored  string `json:"stored"`
	Message string `json:"message"`
}

type recordSymptomInput struct {
	Symptom     string `json:"symptom" jsonschema:"Name of the symptom"`
	Severity    string `json:"severity" jsonschema:"mild, moderate or severe"`
	Description string `json:"description,omitempty" jsonschema:"Optional free-text description"`
	RecordedAt  string `json:"recorded_at,omitempty" jsonschema:"Timestamp (ISO 8601), defaults to now"`
}

type emptyInput struct{}

type historyInput struct {
	Metric string `json:"metric,omitempty" jsonschema:"Metric type to filter by, or symptom for symptoms only"`
	Days   int    `json:"days,omitempty" jsonschema:"Window in days; omit for all time"`
}

type chartInput struct {
	Metric string `json:"metric" jsonschema:"Metric type to chart"`
	Days   int    `json:"days,omitempty" jsonschema:"Window in days (default 30)"`
}

const defaultDays = 30

func (s *Server) recordedAt(raw string) string {
	if raw == "" {
		return s.now().UTC().Format(time.RFC3339)
	}
	return raw
}

// Tool handlers

func (s *Server) handleRecordMetric(ctx context.Context, req *mcp.CallToolRequest, input recordMetricInput) (*mcp.CallToolResult, recordOutput, error) {
	in := models.MetricInput{
		MetricType: input.MetricType,
		Unit:       input.Unit,
		RecordedAt: s.recordedAt(input.RecordedAt),
	}
	if in.Unit == "" {
		in.Unit = models.MetricUnits[models.MetricType(input.MetricType)]
	}
	// Absent readings stay absent so validation reports them as required.
	if models.MetricType(input.MetricType) == models.MetricBloodPressure {
		in.AdditionalData = map[string]any{}
		if input.Value != nil {
			in.AdditionalData[models.KeySystolic] = *input.Value
		}
		if input.Diastolic != nil {
			in.AdditionalData[models.KeyDiastolic] = *input.Diastolic
		}
	} else if input.Value != nil {
		in.Value = *input.Value
	}

	res, err := s.writer.RecordMetric(ctx, s.userID, in)
	if err != nil {
		return nil, recordOutput{}, fmt.Errorf("failed to record metric: %w", err)
	}

	m := res.Metric
	return nil, recordOutput{
		ID:      m.ID.String()[:8],
		Stored:  res.Stored,
		Message: fmt.Sprintf("Recorded %s: %s (ID: %s, stored in %s)", m.MetricType, describe(m), m.ID.String()[:8], res.Stored),
	}, nil
}

func describe(m *models.Metric) string {
	if m.MetricType == models.MetricBloodPressure {
		sys, _ := m.Systolic()
		dia, _ := m.Diastolic()
		return fmt.Sprintf("%.0f/%.0f %s", sys, dia, m.Unit)
	}
	if m.Value == nil {
		return m.Unit
	}
	return fmt.Sprintf("%.2f %s", *m.Value, m.Unit)
}

func (s *Server) handleRecordSymptom(ctx context.Context, req *mcp.CallToolRequest, input recordSymptomInput) (*mcp.CallToolResult, recordOutput, error) {
	in := models.SymptomInput{
		Symptom:    input.Symptom,
		Severity:   input.Severity,
		RecordedAt: s.recordedAt(input.RecordedAt),
	}
	if input.Description != "" {
		in.Description = &input.Description
	}

	res, err := s.writer.RecordSymptom(ctx, s.userID, in)
	if err != nil {
		return nil, recordOutput{}, fmt.Errorf("failed to record symptom: %w", err)
	}

	sym := res.Symptom
	return nil, recordOutput{
		ID:      sym.ID.String()[:8],
		Stored:  res.Stored,
		Message: fmt.Sprintf("Recorded %s symptom: %s (ID: %s)", sym.Severity, sym.Symptom, sym.ID.String()[:8]),
	}, nil
}

func (s *Server) handleGetStatus(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	report, err := s.reader.LatestStatusPerType(ctx, s.userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load status: %w", err)
	}
	if len(report.MetricsStatus) == 0 {
		return nil, map[string]any{"message": "No metrics recorded yet."}, nil
	}
	return nil, report, nil
}

func (s *Server) handleGetHistory(ctx context.Context, req *mcp.CallToolRequest, input historyInput) (*mcp.CallToolResult, any, error) {
	entries, err := s.reader.History(ctx, s.userID, input.Metric, input.Days)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(entries) == 0 {
		return nil, map[string]any{"message": "No history found."}, nil
	}
	return nil, map[string]any{"entries": entries}, nil
}

func (s *Server) handleGetChart(ctx context.Context, req *mcp.CallToolRequest, input chartInput) (*mcp.CallToolResult, any, error) {
	days := input.Days
	if days <= 0 {
		days = defaultDays
	}

	chart, err := s.reader.ChartSeries(ctx, s.userID, input.Metric, days)
	if errors.Is(err, readpath.ErrUnknownMetric) {
		return nil, nil, fmt.Errorf("unknown metric type: %s", input.Metric)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load chart: %w", err)
	}
	return nil, chart, nil
}

func (s *Server) handleReconcile(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	summary, err := s.reconciler.Drain(ctx)
	if errors.Is(err, reconcile.ErrPrimaryUnavailable) {
		return nil, map[string]any{"message": "Primary store is still unavailable; staged records were left in place."}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reconcile: %w", err)
	}
	return nil, summary, nil
}

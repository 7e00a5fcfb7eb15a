// ABOUTME: Handlers for recording and reading metrics and symptoms.
// ABOUTME: Maps validation, unknown-metric and storage failures onto 422 and 500 responses.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/readpath"
	"github.com/harperreed/healthhub/internal/reconcile"
	"github.com/labstack/echo/v4"
)

const defaultDays = 30

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) recordMetric(c echo.Context) error {
	var in models.MetricInput
	if err := c.Bind(&in); err != nil {
		return bindFailure(c, err)
	}

	res, err := s.writer.RecordMetric(c.Request().Context(), userID(c), in)
	if err != nil {
		return failure(c, "Failed to record health data", err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"message": "Health data recorded successfully",
		"stored":  res.Stored,
		"data":    res.Metric,
	})
}

func (s *Server) recordSymptom(c echo.Context) error {
	var in models.SymptomInput
	if err := c.Bind(&in); err != nil {
		return bindFailure(c, err)
	}

	res, err := s.writer.RecordSymptom(c.Request().Context(), userID(c), in)
	if err != nil {
		return failure(c, "Failed to record symptom", err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"message": "Symptom recorded successfully",
		"stored":  res.Stored,
		"data":    res.Symptom,
	})
}

func (s *Server) status(c echo.Context) error {
	report, err := s.reader.LatestStatusPerType(c.Request().Context(), userID(c))
	if err != nil {
		return failure(c, "Failed to load health status", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":        true,
		"metrics_status": report.MetricsStatus,
		"last_updated":   report.LastUpdated,
		"source":         report.Source,
	})
}

func (s *Server) chart(c echo.Context) error {
	days, ok := daysParam(c)
	if !ok {
		return invalidDays(c)
	}

	chart, err := s.reader.ChartSeries(c.Request().Context(), userID(c), c.Param("metric"), days)
	if errors.Is(err, readpath.ErrUnknownMetric) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"message": "Unknown metric type.",
		})
	}
	if err != nil {
		return failure(c, "Failed to load chart", err)
	}

	var series any = chart.Series
	if chart.IsBloodPressure() {
		series = map[string][]readpath.Point{
			"systolic":  chart.Systolic,
			"diastolic": chart.Diastolic,
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"metric":  chart.Metric,
		"unit":    chart.Unit,
		"series":  series,
		"flat":    chart.Flat,
		"source":  chart.Source,
	})
}

func (s *Server) history(c echo.Context) error {
	days, ok := daysParam(c)
	if !ok {
		return invalidDays(c)
	}

	entries, err := s.reader.History(c.Request().Context(), userID(c), c.QueryParam("metric"), days)
	if err != nil {
		return failure(c, "Failed to load history", err)
	}
	if entries == nil {
		entries = []readpath.HistoryEntry{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    entries,
	})
}

func (s *Server) reconcile(c echo.Context) error {
	summary, err := s.reconciler.Drain(c.Request().Context())
	switch {
	case errors.Is(err, reconcile.ErrPrimaryUnavailable):
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"message": "Primary store unavailable.",
		})
	case errors.Is(err, reconcile.ErrDrainInProgress):
		return c.JSON(http.StatusConflict, map[string]any{
			"success": false,
			"message": "Reconciliation already running.",
		})
	case err != nil:
		return failure(c, "Failed to reconcile", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    summary,
	})
}

func (s *Server) pending(c echo.Context) error {
	uid := userID(c)
	count := 0
	for _, e := range s.reconciler.Pending(c.Request().Context()) {
		if e.UserID == uid {
			count++
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"pending": count,
	})
}

// daysParam reads ?days=N. Missing means the default window; 0 means all time.
func daysParam(c echo.Context) (int, bool) {
	raw := c.QueryParam("days")
	if raw == "" {
		return defaultDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0, false
	}
	return days, true
}

func invalidDays(c echo.Context) error {
	return c.JSON(http.StatusUnprocessableEntity, map[string]any{
		"success": false,
		"errors":  map[string][]string{"days": {"The days must be a non-negative integer."}},
	})
}

// bindFailure answers 422 for a well-formed body with a mistyped field and 400
// for anything echo could not decode at all.
func bindFailure(c echo.Context, err error) error {
	var ute *json.UnmarshalTypeError
	if !errors.As(err, &ute) {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Internal != nil {
			errors.As(he.Internal, &ute)
		}
	}
	if ute == nil {
		return badRequest(c)
	}

	field := ute.Field
	if field == "" {
		field = "body"
	}
	return c.JSON(http.StatusUnprocessableEntity, map[string]any{
		"success": false,
		"errors": map[string][]string{
			field: {fmt.Sprintf("The %s must be a %s.", strings.ReplaceAll(field, "_", " "), jsonKind(ute.Type))},
		},
	})
}

// jsonKind names the JSON shape a Go type decodes from.
func jsonKind(t reflect.Type) string {
	if t == nil {
		return "valid value"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int8, reflect.Int16,
		reflect.Int32, reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16,
		reflect.Uint32, reflect.Uint64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Slice, reflect.Array:
		return "list"
	default:
		return "valid value"
	}
}

func badRequest(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"success": false,
		"message": "Invalid request",
	})
}

// failure maps validation errors to 422 and everything else to 500.
func failure(c echo.Context, msg string, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"errors":  verr.Fields,
		})
	}
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"success": false,
		"message": msg,
		"error":   err.Error(),
	})
}

// ABOUTME: HTTP tests for the health API against an in-memory primary store.
// ABOUTME: Covers auth, validation, degraded writes and reads, charts, history and reconciliation.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/healthhub/internal/dualwrite"
	"github.com/harperreed/healthhub/internal/fallback"
	"github.com/harperreed/healthhub/internal/readpath"
	"github.com/harperreed/healthhub/internal/reconcile"
	"github.com/harperreed/healthhub/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken  = "secret-token"
	otherToken = "other-token"
)

type testEnv struct {
	handler  http.Handler
	primary  *storage.MemoryStore
	fallback *fallback.JSONFile
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	primary := storage.NewMemoryStore()
	fb, err := fallback.NewJSONFile(filepath.Join(t.TempDir(), fallback.DefaultFileName))
	require.NoError(t, err)

	srv := New(Options{
		Writer:     dualwrite.New(primary, fb),
		Reader:     readpath.New(primary, fb),
		Reconciler: reconcile.New(primary, fb, reconcile.ClearConfirmed),
		Identity:   NewTokenResolver(map[string]int64{testToken: 1, otherToken: 2}),
		TestRoutes: true,
		Admins:     []int64{1},
	})
	return &testEnv{handler: srv.Handler(), primary: primary, fallback: fb}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testToken)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health/status", "/health/history", "/health/charts/weight"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"success":false,"message":"Unauthenticated."}`, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/health/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConcreteScenario(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/health/metrics/record",
		`{"metric_type":"bmi","value":22.3,"unit":"kg/m²","recorded_at":"2024-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "primary", body["stored"])

	code, body = env.do(t, http.MethodGet, "/health/metrics/status", "")
	require.Equal(t, http.StatusOK, code)
	statuses := body["metrics_status"].(map[string]any)
	assert.Equal(t, "normal", statuses["bmi"].(map[string]any)["status"])

	code, body = env.do(t, http.MethodPost, "/health/metrics/record",
		`{"metric_type":"blood_pressure","additional_data":{"systolic":145,"diastolic":95},"unit":"mmHg","recorded_at":"2024-01-02T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, code, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, 145.0, data["value"])

	code, body = env.do(t, http.MethodGet, "/health/status", "")
	require.Equal(t, http.StatusOK, code)
	statuses = body["metrics_status"].(map[string]any)
	bp := statuses["blood_pressure"].(map[string]any)
	assert.Equal(t, "high", bp["status"])
	assert.Equal(t, 145.0, bp["value"])
	assert.Equal(t, "2024-01-02T00:00:00Z", body["last_updated"])
}

func TestRecordMetricValidation(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/health/metrics/record", `{"metric_type":"mood","unit":"x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, false, body["success"])
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "metric_type")
	assert.Contains(t, errs, "recorded_at")

	assert.Empty(t, env.fallback.LoadAll(context.Background()))
}

func TestRecordMetricMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/health/metrics/record", `{"metric_type":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestRecordMistypedFieldsAreValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		path  string
		body  string
		field string
	}{
		{"/health/metrics/record", `{"metric_type":"weight","value":80,"unit":"kg","recorded_at":20240101}`, "recorded_at"},
		{"/health/metrics/record", `{"metric_type":"weight","value":80,"unit":5,"recorded_at":"2024-01-01"}`, "unit"},
		{"/health/metrics/record", `{"metric_type":"blood_pressure","additional_data":"120/80","unit":"mmHg","recorded_at":"2024-01-01"}`, "additional_data"},
		{"/health/symptoms/record", `{"symptom":"cough","description":12,"severity":"mild","recorded_at":"2024-01-01"}`, "description"},
	}
	for _, tc := range cases {
		code, body := env.do(t, http.MethodPost, tc.path, tc.body)
		require.Equal(t, http.StatusUnprocessableEntity, code, tc.body)
		assert.Equal(t, false, body["success"])
		errs, ok := body["errors"].(map[string]any)
		require.True(t, ok, tc.body)
		assert.Contains(t, errs, tc.field)
	}

	assert.Empty(t, env.fallback.LoadAll(context.Background()))
}

func TestRecordMetricFallback(t *testing.T) {
	env := newTestEnv(t)
	env.primary.SetAvailable(false)

	code, body := env.do(t, http.MethodPost, "/health/metrics/record",
		`{"metric_type":"heart_rate","value":"72","unit":"bpm","recorded_at":"2024-01-01 08:00"}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "fallback", body["stored"])
	assert.Len(t, env.fallback.LoadAll(context.Background()), 1)

	code, body = env.do(t, http.MethodGet, "/health/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fallback", body["source"])
	assert.Contains(t, body["metrics_status"], "heart_rate")
}

func TestRecordSymptom(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/health/symptoms/record",
		`{"symptom":"headache","description":"left side","severity":"moderate","recorded_at":"2024-01-01"}`)
	require.Equal(t, http.StatusCreated, code, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "headache", data["symptom"])

	code, body = env.do(t, http.MethodPost, "/health/symptoms/record", `{"symptom":"","severity":"awful"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "symptom")
	assert.Contains(t, errs, "severity")
}

func TestChartEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for _, payload := range []string{
		`{"metric_type":"blood_pressure","additional_data":{"systolic":120,"diastolic":80},"unit":"mmHg","recorded_at":"2099-01-01T00:00:00Z"}`,
		`{"metric_type":"blood_pressure","additional_data":{"systolic":130,"diastolic":85},"unit":"mmHg","recorded_at":"2099-01-02T00:00:00Z"}`,
	} {
		code, body := env.do(t, http.MethodPost, "/health/metrics/record", payload)
		require.Equal(t, http.StatusCreated, code, body)
	}

	code, body := env.do(t, http.MethodGet, "/health/charts/blood_pressure?days=0", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "blood_pressure", body["metric"])
	assert.Equal(t, "mmHg", body["unit"])
	series := body["series"].(map[string]any)
	assert.Len(t, series["systolic"], 2)
	assert.Len(t, series["diastolic"], 2)
	flat := body["flat"].([]any)
	require.Len(t, flat, 2)
	assert.Equal(t, 120.0, flat[0].(map[string]any)["systolic"])

	code, _ = env.do(t, http.MethodGet, "/health/charts/mood", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = env.do(t, http.MethodGet, "/health/charts/weight?days=abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/health/history", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["data"])

	env.do(t, http.MethodPost, "/health/metrics/record",
		`{"metric_type":"weight","value":80,"unit":"kg","recorded_at":"2024-01-01T00:00:00Z"}`)
	env.do(t, http.MethodPost, "/health/symptoms/record",
		`{"symptom":"cough","severity":"mild","recorded_at":"2024-01-02T00:00:00Z"}`)

	code, body = env.do(t, http.MethodGet, "/health/history?days=0", "")
	require.Equal(t, http.StatusOK, code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "symptom", data[0].(map[string]any)["type"])
	assert.Equal(t, "metric", data[1].(map[string]any)["type"])

	code, body = env.do(t, http.MethodGet, "/health/history?days=0&metric=weight", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 1)
}

func TestReconcileEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.primary.SetAvailable(false)

	env.do(t, http.MethodPost, "/health/metrics/record",
		`{"metric_type":"weight","value":80,"unit":"kg","recorded_at":"2024-01-01T00:00:00Z"}`)

	code, body := env.do(t, http.MethodGet, "/health/fallback/pending", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["pending"])

	code, _ = env.do(t, http.MethodPost, "/health/fallback/reconcile", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	env.primary.SetAvailable(true)
	code, body = env.do(t, http.MethodPost, "/health/fallback/reconcile", "")
	require.Equal(t, http.StatusOK, code, body)
	summary := body["data"].(map[string]any)
	assert.Equal(t, 1.0, summary["inserted"])
	assert.Empty(t, env.fallback.LoadAll(context.Background()))
}

func TestFallbackRoutesAreScoped(t *testing.T) {
	env := newTestEnv(t)
	env.primary.SetAvailable(false)

	env.do(t, http.MethodPost, "/health/metrics/record",
		`{"metric_type":"weight","value":80,"unit":"kg","recorded_at":"2024-01-01T00:00:00Z"}`)

	req := httptest.NewRequest(http.MethodPost, "/test/health/metrics/record",
		strings.NewReader(`{"metric_type":"weight","value":70,"unit":"kg","recorded_at":"2024-01-01T00:00:00Z"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderUserID, "9")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, env.fallback.LoadAll(context.Background()), 2)

	// Only the caller's own staged record counts.
	code, body := env.do(t, http.MethodGet, "/health/fallback/pending", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["pending"])

	// Header-trusting routes never reach the fallback store.
	for _, path := range []string{"/test/health/fallback/reconcile", "/test/health/fallback/pending"} {
		req = httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(HeaderUserID, "1")
		rec = httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code, path)
	}

	// Authenticated users outside admin_users cannot drain.
	req = httptest.NewRequest(http.MethodPost, "/health/fallback/reconcile", nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, env.fallback.LoadAll(context.Background()), 2)
}

func TestTestRoutesUseHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/test/health/symptoms/record",
		strings.NewReader(`{"symptom":"fatigue","severity":"severe","recorded_at":"2024-01-01"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderUserID, "7")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	symptoms, err := env.primary.ListSymptoms(context.Background(), storage.SymptomFilter{UserID: 7})
	require.NoError(t, err)
	assert.Len(t, symptoms, 1)

	req = httptest.NewRequest(http.MethodGet, "/test/health/status", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthhub_api_requests_total")
}

func TestResolvers(t *testing.T) {
	tokens := NewTokenResolver(map[string]int64{"abc": 5})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	uid, err := tokens.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, int64(5), uid)

	req.Header.Set("Authorization", "Basic abc")
	_, err = tokens.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	for _, v := range []string{"", "zero", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderUserID, v)
		_, err := HeaderResolver{}.Resolve(req)
		assert.ErrorIs(t, err, ErrUnauthenticated, v)
	}
}

// ABOUTME: Tests for status, chart and history reads across primary and fallback stores.
// ABOUTME: Uses the in-memory primary store and a JSON fallback file in a temp dir.
package readpath

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/healthhub/internal/classify"
	"github.com/harperreed/healthhub/internal/fallback"
	"github.com/harperreed/healthhub/internal/models"
	"github.com/harperreed/healthhub/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Reader, *storage.MemoryStore, *fallback.JSONFile) {
	t.Helper()
	primary := storage.NewMemoryStore()
	fb, err := fallback.NewJSONFile(filepath.Join(t.TempDir(), fallback.DefaultFileName))
	require.NoError(t, err)
	r := New(primary, fb)
	r.now = func() time.Time { return testNow }
	return r, primary, fb
}

func daysAgo(d int) time.Time {
	return testNow.Add(-time.Duration(d) * 24 * time.Hour)
}

func stage(t *testing.T, fb fallback.Store, m *models.Metric) {
	t.Helper()
	require.NoError(t, fb.Append(context.Background(), fallback.FromMetric(m, testNow)))
}

func TestLatestStatusPerTypePrimary(t *testing.T) {
	r, primary, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 80).WithRecordedAt(daysAgo(3))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 82).WithRecordedAt(daysAgo(1))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewBloodPressure(1, 145, 95).WithRecordedAt(daysAgo(2))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(2, models.MetricBMI, 40).WithRecordedAt(daysAgo(1))))

	report, err := r.LatestStatusPerType(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, SourcePrimary, report.Source)
	require.Len(t, report.MetricsStatus, 2)
	assert.Equal(t, 82.0, *report.MetricsStatus[models.MetricWeight].Value)
	assert.Equal(t, classify.Recorded, report.MetricsStatus[models.MetricWeight].Status)
	assert.Equal(t, classify.High, report.MetricsStatus[models.MetricBloodPressure].Status)
	assert.Equal(t, "mmHg", report.MetricsStatus[models.MetricBloodPressure].Unit)
	require.NotNil(t, report.LastUpdated)
	assert.True(t, report.LastUpdated.Equal(daysAgo(1)))
}

func TestLatestStatusPerTypeEmpty(t *testing.T) {
	r, _, _ := setup(t)

	report, err := r.LatestStatusPerType(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, report.MetricsStatus)
	assert.Nil(t, report.LastUpdated)
}

func TestLatestStatusPerTypeFallback(t *testing.T) {
	r, primary, fb := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricHeartRate, 70).WithRecordedAt(daysAgo(1))))
	stage(t, fb, models.NewMetric(1, models.MetricBloodSugar, 95).WithRecordedAt(daysAgo(2)))
	stage(t, fb, models.NewMetric(1, models.MetricBloodSugar, 150).WithRecordedAt(daysAgo(1)))
	stage(t, fb, models.NewMetric(9, models.MetricWeight, 70).WithRecordedAt(daysAgo(1)))
	primary.SetAvailable(false)

	report, err := r.LatestStatusPerType(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, report.Source)
	require.Len(t, report.MetricsStatus, 1)
	assert.Equal(t, 150.0, *report.MetricsStatus[models.MetricBloodSugar].Value)
	assert.Equal(t, classify.High, report.MetricsStatus[models.MetricBloodSugar].Status)
}

func TestLatestStatusPerTypeGenericErrorSurfaces(t *testing.T) {
	r, _, _ := setup(t)
	r.primary = brokenPrimary{MemoryStore: storage.NewMemoryStore()}

	_, err := r.LatestStatusPerType(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, storage.IsUnavailable(err))
}

type brokenPrimary struct{ *storage.MemoryStore }

var errBroken = errors.New("query planner exploded")

func (brokenPrimary) LatestMetricsPerType(context.Context, int64) ([]*models.Metric, error) {
	return nil, &storage.Error{Op: "latest metrics", Err: errBroken}
}

func (brokenPrimary) ListMetrics(context.Context, storage.MetricFilter) ([]*models.Metric, error) {
	return nil, &storage.Error{Op: "list metrics", Err: errBroken}
}

func TestBuildStatusReportTiesKeepFirst(t *testing.T) {
	at := daysAgo(1)
	first := models.NewMetric(1, models.MetricWeight, 80).WithRecordedAt(at)
	second := models.NewMetric(1, models.MetricWeight, 90).WithRecordedAt(at)

	report := buildStatusReport([]*models.Metric{first, second}, SourcePrimary)
	assert.Equal(t, 80.0, *report.MetricsStatus[models.MetricWeight].Value)
}

func TestChartSeriesAscendingWithinWindow(t *testing.T) {
	r, primary, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 81).WithRecordedAt(daysAgo(1))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 80).WithRecordedAt(daysAgo(5))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 70).WithRecordedAt(daysAgo(40))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricBMI, 22).WithRecordedAt(daysAgo(1))))

	chart, err := r.ChartSeries(ctx, 1, "weight", 30)
	require.NoError(t, err)

	assert.Equal(t, SourcePrimary, chart.Source)
	assert.Equal(t, "kg", chart.Unit)
	require.Len(t, chart.Series, 2)
	assert.Equal(t, 80.0, chart.Series[0].Value)
	assert.Equal(t, 81.0, chart.Series[1].Value)
	require.Len(t, chart.Flat, 2)
	assert.Equal(t, 80.0, *chart.Flat[0].Value)
	assert.False(t, chart.IsBloodPressure())
}

func TestChartSeriesAllTime(t *testing.T) {
	r, primary, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 70).WithRecordedAt(daysAgo(400))))

	chart, err := r.ChartSeries(ctx, 1, "weight", 0)
	require.NoError(t, err)
	assert.Len(t, chart.Series, 1)
}

func TestChartSeriesUnknownMetric(t *testing.T) {
	r, _, _ := setup(t)

	_, err := r.ChartSeries(context.Background(), 1, "mood", 30)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestChartSeriesBloodPressure(t *testing.T) {
	r, primary, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewBloodPressure(1, 120, 80).WithRecordedAt(daysAgo(2))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricBloodPressure, 130).WithRecordedAt(daysAgo(1))))

	chart, err := r.ChartSeries(ctx, 1, "blood_pressure", 30)
	require.NoError(t, err)

	assert.True(t, chart.IsBloodPressure())
	assert.Nil(t, chart.Series)
	require.Len(t, chart.Systolic, 2)
	require.Len(t, chart.Diastolic, 1)
	require.Len(t, chart.Flat, 2)

	assert.Equal(t, 120.0, *chart.Flat[0].Systolic)
	require.NotNil(t, chart.Flat[0].Diastolic)
	assert.Equal(t, 80.0, *chart.Flat[0].Diastolic)
	assert.Equal(t, 130.0, *chart.Flat[1].Systolic)
	assert.Nil(t, chart.Flat[1].Diastolic)
}

func TestChartSeriesBloodPressureSameSecond(t *testing.T) {
	r, primary, _ := setup(t)
	ctx := context.Background()

	base := daysAgo(1).Truncate(time.Second)
	require.NoError(t, primary.InsertMetric(ctx, models.NewBloodPressure(1, 120, 80).WithRecordedAt(base.Add(200*time.Millisecond))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewBloodPressure(1, 140, 95).WithRecordedAt(base.Add(800*time.Millisecond))))

	chart, err := r.ChartSeries(ctx, 1, "blood_pressure", 30)
	require.NoError(t, err)

	require.Len(t, chart.Flat, 2)
	assert.Equal(t, 120.0, *chart.Flat[0].Systolic)
	assert.Equal(t, 80.0, *chart.Flat[0].Diastolic)
	assert.Equal(t, 140.0, *chart.Flat[1].Systolic)
	assert.Equal(t, 95.0, *chart.Flat[1].Diastolic)
}

func TestChartSeriesFallbackWhenPrimaryEmpty(t *testing.T) {
	r, _, fb := setup(t)
	stage(t, fb, models.NewMetric(1, models.MetricTemperature, 38.2).WithRecordedAt(daysAgo(1)))

	chart, err := r.ChartSeries(context.Background(), 1, "temperature", 30)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, chart.Source)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, 38.2, chart.Series[0].Value)
}

func TestChartSeriesFallbackWhenPrimaryDown(t *testing.T) {
	r, primary, fb := setup(t)
	primary.SetAvailable(false)

	chart, err := r.ChartSeries(context.Background(), 1, "heart_rate", 30)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, chart.Source)
	assert.Empty(t, chart.Series)

	stage(t, fb, models.NewMetric(1, models.MetricHeartRate, 72).WithRecordedAt(daysAgo(1)))
	chart, err = r.ChartSeries(context.Background(), 1, "heart_rate", 30)
	require.NoError(t, err)
	assert.Len(t, chart.Series, 1)
}

func TestChartSeriesPrimaryWinsOverFallback(t *testing.T) {
	r, primary, fb := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 80).WithRecordedAt(daysAgo(1))))
	stage(t, fb, models.NewMetric(1, models.MetricWeight, 99).WithRecordedAt(daysAgo(2)))

	chart, err := r.ChartSeries(ctx, 1, "weight", 30)
	require.NoError(t, err)
	assert.Equal(t, SourcePrimary, chart.Source)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, 80.0, chart.Series[0].Value)
}

func TestHistoryMergesAndSorts(t *testing.T) {
	r, primary, fb := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 80).WithRecordedAt(daysAgo(3))))
	require.NoError(t, primary.InsertSymptom(ctx, models.NewSymptom(1, "headache", models.SeverityMild).WithRecordedAt(daysAgo(1))))
	stage(t, fb, models.NewMetric(1, models.MetricHeartRate, 110).WithRecordedAt(daysAgo(2)))
	require.NoError(t, fb.Append(ctx, fallback.FromSymptom(models.NewSymptom(1, "nausea", models.SeveritySevere).WithRecordedAt(daysAgo(4)), testNow)))

	entries, err := r.History(ctx, 1, "", 30)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, TypeSymptom, entries[0].Type)
	assert.Equal(t, "headache", entries[0].Symptom)
	assert.Equal(t, SourcePrimary, entries[0].Source)

	assert.Equal(t, models.MetricHeartRate, entries[1].MetricType)
	assert.Equal(t, SourceFallback, entries[1].Source)
	assert.Equal(t, classify.High, entries[1].Status)

	assert.Equal(t, models.MetricWeight, entries[2].MetricType)
	assert.Equal(t, "nausea", entries[3].Symptom)
	assert.Equal(t, SourceFallback, entries[3].Source)
}

func TestHistoryDedupesStagedCopies(t *testing.T) {
	r, primary, fb := setup(t)
	ctx := context.Background()

	m := models.NewMetric(1, models.MetricWeight, 80).WithRecordedAt(daysAgo(1))
	require.NoError(t, primary.InsertMetric(ctx, m))
	stage(t, fb, m)

	entries, err := r.History(ctx, 1, "", 30)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, SourcePrimary, entries[0].Source)
}

func TestHistoryFilters(t *testing.T) {
	r, primary, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 80).WithRecordedAt(daysAgo(1))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricBMI, 22).WithRecordedAt(daysAgo(1))))
	require.NoError(t, primary.InsertSymptom(ctx, models.NewSymptom(1, "cough", models.SeverityMild).WithRecordedAt(daysAgo(1))))

	symptoms, err := r.History(ctx, 1, FilterSymptom, 30)
	require.NoError(t, err)
	require.Len(t, symptoms, 1)
	assert.Equal(t, TypeSymptom, symptoms[0].Type)

	weights, err := r.History(ctx, 1, "weight", 30)
	require.NoError(t, err)
	require.Len(t, weights, 1)
	assert.Equal(t, models.MetricWeight, weights[0].MetricType)

	unknown, err := r.History(ctx, 1, "mood", 30)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestHistoryWindow(t *testing.T) {
	r, primary, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 80).WithRecordedAt(daysAgo(10))))
	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 81).WithRecordedAt(daysAgo(2))))

	entries, err := r.History(ctx, 1, "", 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 81.0, *entries[0].Value)
}

func TestHistoryPrimaryDown(t *testing.T) {
	r, primary, fb := setup(t)
	ctx := context.Background()

	require.NoError(t, primary.InsertMetric(ctx, models.NewMetric(1, models.MetricWeight, 80).WithRecordedAt(daysAgo(1))))
	stage(t, fb, models.NewMetric(1, models.MetricWeight, 79).WithRecordedAt(daysAgo(2)))
	primary.SetAvailable(false)

	entries, err := r.History(ctx, 1, "", 30)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 79.0, *entries[0].Value)
	assert.Equal(t, SourceFallback, entries[0].Source)
}

func TestHistoryGenericErrorSurfaces(t *testing.T) {
	r, _, _ := setup(t)
	r.primary = brokenPrimary{MemoryStore: storage.NewMemoryStore()}

	_, err := r.History(context.Background(), 1, "", 30)
	assert.ErrorIs(t, err, errBroken)
}

func TestFallbackSkipsEntriesWithoutTimestamp(t *testing.T) {
	r, _, fb := setup(t)
	v := fallback.Number(70)
	require.NoError(t, fb.Append(context.Background(), fallback.Entry{
		Kind: fallback.KindMetric, UserID: 1, MetricType: "heart_rate", Value: &v, Unit: "bpm",
	}))

	entries, err := r.History(context.Background(), 1, "", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

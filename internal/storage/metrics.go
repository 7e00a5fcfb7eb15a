// ABOUTME: Metric operations for SQLite storage.
// ABOUTME: Implements the PrimaryStore metric methods with classified errors.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/healthhub/internal/models"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = models.ParseTime(s)
	}
	return t.UTC()
}

const metricColumns = `id, user_id, metric_type, value, unit, additional_data, recorded_at, created_at`

// InsertMetric stores a new metric in the database.
func (d *DB) InsertMetric(ctx context.Context, m *models.Metric) error {
	var extra sql.NullString
	if len(m.AdditionalData) > 0 {
		b, err := json.Marshal(m.AdditionalData)
		if err != nil {
			return fmt.Errorf("encode additional data: %w", err)
		}
		extra = sql.NullString{String: string(b), Valid: true}
	}

	query := `INSERT INTO metrics (` + metricColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := d.db.ExecContext(ctx, query,
		m.ID.String(),
		m.UserID,
		string(m.MetricType),
		m.Value,
		m.Unit,
		extra,
		formatTime(m.RecordedAt),
		formatTime(m.CreatedAt),
	)
	return d.classify("create metric", err)
}

// LatestMetricsPerType returns the newest metric of each type for a user.
func (d *DB) LatestMetricsPerType(ctx context.Context, userID int64) ([]*models.Metric, error) {
	query := `
		SELECT ` + metricColumns + ` FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY metric_type ORDER BY recorded_at DESC, rowid ASC
			) AS rn
			FROM metrics
			WHERE user_id = ?
		)
		WHERE rn = 1
		ORDER BY recorded_at DESC
	`
	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, d.classify("latest metrics", err)
	}
	defer rows.Close()

	metrics, err := scanMetrics(rows)
	if err != nil {
		return nil, d.classify("latest metrics", err)
	}
	return metrics, nil
}

// ListMetrics retrieves metrics matching the filter.
// Results are sorted by RecordedAt descending (most recent first).
func (d *DB) ListMetrics(ctx context.Context, f MetricFilter) ([]*models.Metric, error) {
	var where []string
	var args []interface{}

	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.MetricType != nil {
		where = append(where, "metric_type = ?")
		args = append(args, string(*f.MetricType))
	}
	if f.Since != nil {
		where = append(where, "recorded_at >= ?")
		args = append(args, formatTime(*f.Since))
	}

	query := `SELECT ` + metricColumns + ` FROM metrics`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC, rowid ASC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, d.classify("list metrics", err)
	}
	defer rows.Close()

	metrics, err := scanMetrics(rows)
	if err != nil {
		return nil, d.classify("list metrics", err)
	}
	return metrics, nil
}

// scanMetrics scans multiple rows into a slice of Metrics.
func scanMetrics(rows *sql.Rows) ([]*models.Metric, error) {
	var metrics []*models.Metric

	for rows.Next() {
		var m models.Metric
		var idStr, metricType, recordedAt, createdAt string
		var value sql.NullFloat64
		var extra sql.NullString

		err := rows.Scan(&idStr, &m.UserID, &metricType, &value, &m.Unit, &extra, &recordedAt, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}

		m.ID, _ = uuid.Parse(idStr)
		m.MetricType = models.MetricType(metricType)
		if value.Valid {
			m.Value = models.Float(value.Float64)
		}
		if extra.Valid && extra.String != "" {
			if err := json.Unmarshal([]byte(extra.String), &m.AdditionalData); err != nil {
				return nil, fmt.Errorf("decode additional data for %s: %w", idStr, err)
			}
		}
		m.RecordedAt = parseTime(recordedAt)
		m.CreatedAt = parseTime(createdAt)

		metrics = append(metrics, &m)
	}

	return metrics, rows.Err()
}

// ABOUTME: Symptom operations for SQLite storage.
// ABOUTME: Implements the PrimaryStore symptom methods with classified errors.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/healthhub/internal/models"
)

// InsertSymptom stores a new symptom in the database.
func (d *DB) InsertSymptom(ctx context.Context, s *models.Symptom) error {
	query := `
		INSERT INTO symptoms (id, user_id, symptom, description, severity, recorded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.ExecContext(ctx, query,
		s.ID.String(),
		s.UserID,
		s.Symptom,
		s.Description,
		string(s.Severity),
		formatTime(s.RecordedAt),
		formatTime(s.CreatedAt),
	)
	return d.classify("create symptom", err)
}

// ListSymptoms retrieves symptoms matching the filter, newest first.
func (d *DB) ListSymptoms(ctx context.Context, f SymptomFilter) ([]*models.Symptom, error) {
	var where []string
	var args []interface{}

	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Since != nil {
		where = append(where, "recorded_at >= ?")
		args = append(args, formatTime(*f.Since))
	}

	query := `SELECT id, user_id, symptom, description, severity, recorded_at, created_at FROM symptoms`
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
		return nil, d.classify("list symptoms", err)
	}
	defer rows.Close()

	var symptoms []*models.Symptom
	for rows.Next() {
		var s models.Symptom
		var idStr, severity, recordedAt, createdAt string
		var desc sql.NullString

		if err := rows.Scan(&idStr, &s.UserID, &s.Symptom, &desc, &severity, &recordedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan symptom: %w", err)
		}
		s.ID, _ = uuid.Parse(idStr)
		s.Severity = models.Severity(severity)
		if desc.Valid {
			s.Description = &desc.String
		}
		s.RecordedAt = parseTime(recordedAt)
		s.CreatedAt = parseTime(createdAt)
		symptoms = append(symptoms, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, d.classify("list symptoms", err)
	}
	return symptoms, nil
}

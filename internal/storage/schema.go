// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Defines tables for metrics and symptoms.
package storage

// initSchema creates the schema if it does not exist yet.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metrics (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		metric_type TEXT NOT NULL,
		value REAL,
		unit TEXT NOT NULL,
		additional_data TEXT,
		recorded_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS symptoms (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		symptom TEXT NOT NULL,
		description TEXT,
		severity TEXT NOT NULL,
		recorded_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_metrics_user_recorded ON metrics(user_id, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_metrics_user_type_recorded ON metrics(user_id, metric_type, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_symptoms_user_recorded ON symptoms(user_id, recorded_at DESC);
	`

	_, err := d.db.Exec(schema)
	return err
}

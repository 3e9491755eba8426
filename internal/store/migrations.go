package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Analyses table - one row per completed pipeline run
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			file_size_bytes INTEGER NOT NULL DEFAULT 0,
			interval_seconds REAL NOT NULL,
			total_frames INTEGER NOT NULL,
			total_detections INTEGER NOT NULL,
			avg_per_frame REAL NOT NULL,
			max_in_frame INTEGER NOT NULL,
			min_in_frame INTEGER NOT NULL,
			detection_rate REAL NOT NULL DEFAULT 0,
			degraded_frames INTEGER NOT NULL DEFAULT 0,
			results TEXT NOT NULL,
			processing_time_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Frame detections table - one row per sampled frame for tabular queries
		`CREATE TABLE IF NOT EXISTS frame_detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			frame_number INTEGER NOT NULL,
			timestamp_seconds REAL NOT NULL,
			object_count INTEGER NOT NULL,
			degraded INTEGER NOT NULL DEFAULT 0,
			confidence_scores TEXT NOT NULL,
			bounding_boxes TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_frame_detections_analysis_id ON frame_detections(analysis_id)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

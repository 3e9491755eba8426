package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/stockvision/internal/analysis"
)

// RunRepository provides CRUD operations for analysis runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// FrameDetectionRow is one frame's detections flattened for tabular queries.
type FrameDetectionRow struct {
	ID               int64     `json:"id"`
	AnalysisID       string    `json:"analysis_id"`
	FrameNumber      int       `json:"frame_number"`
	TimestampSeconds float64   `json:"timestamp_seconds"`
	ObjectCount      int       `json:"object_count"`
	Degraded         bool      `json:"degraded"`
	Scores           []float64 `json:"confidence_scores"`
	Boxes            [][4]int  `json:"bounding_boxes"`
}

// Save persists a completed run and its per-frame rows in one transaction.
// Either the full run is written or nothing is.
func (r *RunRepository) Save(run *analysis.Run) error {
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO analyses (id, filename, file_size_bytes, interval_seconds,
			total_frames, total_detections, avg_per_frame, max_in_frame, min_in_frame,
			detection_rate, degraded_frames, results, processing_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceName, run.FileSizeBytes, run.IntervalSeconds,
		run.Summary.TotalFrames, run.Summary.TotalDetections, run.Summary.AvgPerFrame,
		run.Summary.MaxInFrame, run.Summary.MinInFrame,
		run.Summary.DetectionRate, run.Summary.DegradedFrames,
		string(resultsJSON), run.ProcessingTime.Milliseconds(), run.CreatedAt,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO frame_detections (analysis_id, frame_number, timestamp_seconds,
			object_count, degraded, confidence_scores, bounding_boxes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, fr := range run.Results {
		scores := make([]float64, 0, len(fr.Detections))
		boxes := make([][4]int, 0, len(fr.Detections))
		for _, d := range fr.Detections {
			scores = append(scores, d.Score)
			boxes = append(boxes, [4]int{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2})
		}

		scoresJSON, err := json.Marshal(scores)
		if err != nil {
			return fmt.Errorf("marshal scores: %w", err)
		}
		boxesJSON, err := json.Marshal(boxes)
		if err != nil {
			return fmt.Errorf("marshal boxes: %w", err)
		}

		degraded := 0
		if fr.Degraded {
			degraded = 1
		}

		if _, err := stmt.Exec(run.ID, fr.FrameIndex, fr.Timestamp,
			fr.Count, degraded, string(scoresJSON), string(boxesJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a run by its ID, including the full frame results.
func (r *RunRepository) GetByID(id string) (*analysis.Run, error) {
	row := r.db.QueryRow(
		`SELECT id, filename, file_size_bytes, interval_seconds,
			total_frames, total_detections, avg_per_frame, max_in_frame, min_in_frame,
			detection_rate, degraded_frames, results, processing_time_ms, created_at
		 FROM analyses WHERE id = ?`,
		id,
	)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return run, nil
}

// List retrieves the most recent runs, newest first.
func (r *RunRepository) List(limit int) ([]*analysis.Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(
		`SELECT id, filename, file_size_bytes, interval_seconds,
			total_frames, total_detections, avg_per_frame, max_in_frame, min_in_frame,
			detection_rate, degraded_frames, results, processing_time_ms, created_at
		 FROM analyses ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*analysis.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// Delete removes a run and its frame rows. It reports whether a run was
// deleted: a missing id yields (false, nil), so deleting twice is safe.
func (r *RunRepository) Delete(id string) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// Child rows go first; the FK cascade covers engines where it is
	// enabled, the explicit delete covers the rest.
	if _, err := tx.Exec(`DELETE FROM frame_detections WHERE analysis_id = ?`, id); err != nil {
		return false, err
	}

	result, err := tx.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// GetFrameDetections retrieves the flattened per-frame rows for a run,
// ordered by frame number.
func (r *RunRepository) GetFrameDetections(analysisID string) ([]FrameDetectionRow, error) {
	rows, err := r.db.Query(
		`SELECT id, analysis_id, frame_number, timestamp_seconds,
			object_count, degraded, confidence_scores, bounding_boxes
		 FROM frame_detections
		 WHERE analysis_id = ?
		 ORDER BY frame_number`,
		analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []FrameDetectionRow
	for rows.Next() {
		var fd FrameDetectionRow
		var degraded int
		var scoresJSON, boxesJSON string

		if err := rows.Scan(&fd.ID, &fd.AnalysisID, &fd.FrameNumber, &fd.TimestampSeconds,
			&fd.ObjectCount, &degraded, &scoresJSON, &boxesJSON); err != nil {
			return nil, err
		}

		fd.Degraded = degraded != 0
		if err := json.Unmarshal([]byte(scoresJSON), &fd.Scores); err != nil {
			return nil, fmt.Errorf("unmarshal scores: %w", err)
		}
		if err := json.Unmarshal([]byte(boxesJSON), &fd.Boxes); err != nil {
			return nil, fmt.Errorf("unmarshal boxes: %w", err)
		}

		detections = append(detections, fd)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return detections, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*analysis.Run, error) {
	run := &analysis.Run{}
	var resultsJSON string
	var processingMs int64
	var createdAt time.Time

	err := sc.Scan(&run.ID, &run.SourceName, &run.FileSizeBytes, &run.IntervalSeconds,
		&run.Summary.TotalFrames, &run.Summary.TotalDetections, &run.Summary.AvgPerFrame,
		&run.Summary.MaxInFrame, &run.Summary.MinInFrame,
		&run.Summary.DetectionRate, &run.Summary.DegradedFrames,
		&resultsJSON, &processingMs, &createdAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(resultsJSON), &run.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}

	run.ProcessingTime = time.Duration(processingMs) * time.Millisecond
	run.CreatedAt = createdAt.UTC()

	return run, nil
}

package sqlite

import (
	"context"
	"fmt"
	"time"

	"sorter/internal/model"
	"sorter/internal/repository"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db  *DB
	now func() time.Time
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db, now: time.Now}
}

// Insert appends a record. The timestamp is assigned here, not by the caller.
func (r *DetectionRepository) Insert(ctx context.Context, det *model.Detection) error {
	r.db.Lock()
	defer r.db.Unlock()

	ts := r.now().UTC()
	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO detections (timestamp, detected_text, servo_id, confidence, bbox)
		VALUES (?, ?, ?, ?, ?)
	`, ts, det.Text, det.ActuatorID, det.Confidence, det.Box.String())
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read detection id: %w", err)
	}

	det.ID = id
	det.Timestamp = ts
	return nil
}

// Recent returns up to limit records ordered by id, newest first.
func (r *DetectionRepository) Recent(ctx context.Context, limit int) ([]model.Detection, error) {
	limit = repository.ClampLimit(limit)

	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, timestamp, detected_text, servo_id, confidence, bbox
		FROM detections ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := make([]model.Detection, 0, limit)
	for rows.Next() {
		var det model.Detection
		var bbox string
		if err := rows.Scan(&det.ID, &det.Timestamp, &det.Text, &det.ActuatorID, &det.Confidence, &bbox); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		if det.Box, err = model.ParseBoundingBox(bbox); err != nil {
			return nil, fmt.Errorf("failed to parse bbox of detection %d: %w", det.ID, err)
		}
		detections = append(detections, det)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detections: %w", err)
	}

	return detections, nil
}

// Close closes the underlying database.
func (r *DetectionRepository) Close() error {
	return r.db.Close()
}

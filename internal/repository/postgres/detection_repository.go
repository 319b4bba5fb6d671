package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"sorter/internal/model"
	"sorter/internal/repository"
)

// DetectionRepository implements repository.DetectionRepository on PostgreSQL.
type DetectionRepository struct {
	pool *pgxpool.Pool
}

// New connects to connString and creates the schema if needed.
func New(ctx context.Context, connString string) (*DetectionRepository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &DetectionRepository{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS detections (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			detected_text TEXT NOT NULL,
			servo_id INTEGER NOT NULL,
			confidence DOUBLE PRECISION DEFAULT 0,
			bbox TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections(timestamp);
	`)
	return err
}

func (r *DetectionRepository) Insert(ctx context.Context, det *model.Detection) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO detections (detected_text, servo_id, confidence, bbox)
		VALUES ($1, $2, $3, $4)
		RETURNING id, timestamp
	`, det.Text, det.ActuatorID, det.Confidence, det.Box.String()).Scan(&det.ID, &det.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}
	return nil
}

func (r *DetectionRepository) Recent(ctx context.Context, limit int) ([]model.Detection, error) {
	limit = repository.ClampLimit(limit)

	rows, err := r.pool.Query(ctx, `
		SELECT id, timestamp, detected_text, servo_id, confidence, bbox
		FROM detections ORDER BY id DESC LIMIT $1
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

func (r *DetectionRepository) Close() error {
	r.pool.Close()
	return nil
}

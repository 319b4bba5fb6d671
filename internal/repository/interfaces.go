package repository

import (
	"context"

	"sorter/internal/model"
)

// DefaultRecentLimit is the number of records returned when no limit is given.
const DefaultRecentLimit = 50

// MaxRecentLimit is the most records a single Recent call returns.
const MaxRecentLimit = 1000

// ClampLimit maps a requested limit into 1..MaxRecentLimit. Non-positive values
// mean DefaultRecentLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	}
	return limit
}

// DetectionRepository is the append-only actuation log.
type DetectionRepository interface {
	// Insert stores det and fills in its ID and Timestamp. The record is durable when Insert returns.
	Insert(ctx context.Context, det *model.Detection) error

	// Recent returns up to ClampLimit(limit) records, most recent first.
	Recent(ctx context.Context, limit int) ([]model.Detection, error)

	Close() error
}

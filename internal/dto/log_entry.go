package dto

import (
	"encoding/json"
	"time"

	"sorter/internal/model"
)

// LogEntry is one detection log row as served by /api/logs. Field names follow the
// database columns so dashboards can read them unchanged.
type LogEntry struct {
	ID           int64             `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	DetectedText string            `json:"detected_text"`
	ServoID      int               `json:"servo_id"`
	Confidence   float64           `json:"confidence"`
	BBox         model.BoundingBox `json:"bbox"`
}

// MarshalJSON formats the timestamp the way the log table stores it.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	type Alias LogEntry
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		Alias
	}{
		Timestamp: e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		Alias:     (Alias)(e),
	})
}

// NewLogEntries converts log records, keeping their order.
func NewLogEntries(records []model.Detection) []LogEntry {
	entries := make([]LogEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, LogEntry{
			ID:           r.ID,
			Timestamp:    r.Timestamp,
			DetectedText: r.Text,
			ServoID:      r.ActuatorID,
			Confidence:   r.Confidence,
			BBox:         r.Box,
		})
	}
	return entries
}

package dto

import "sorter/internal/model"

// UploadResult is returned by POST /upload.
type UploadResult struct {
	Status     string                 `json:"status"`
	Detections []model.DetectionEvent `json:"detections"`
	Count      int                    `json:"count"`
}

// UploadWebRequest is the body of POST /upload_web.
type UploadWebRequest struct {
	Image string `json:"image"`
}

// UploadWebResult carries the annotated frame back to the browser as base64 JPEG.
type UploadWebResult struct {
	Status          string                 `json:"status"`
	Detections      []model.DetectionEvent `json:"detections"`
	DetectionsImage string                 `json:"detections_image"`
}

// StatusMessage is the generic {"status", "message"} reply.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ManualServoResult is returned by GET /api/manual_servo/{id}.
type ManualServoResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Servo   int    `json:"servo"`
	Angle   int    `json:"angle"`
}

// MappingResult is returned after a mapping update.
type MappingResult struct {
	Status  string         `json:"status"`
	Mapping map[string]int `json:"mapping"`
}

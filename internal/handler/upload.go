package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"sorter/internal/dto"
	"sorter/internal/frame"
	"sorter/internal/logger"
	"sorter/internal/model"
	"sorter/internal/service/pipeline"
)

// MaxUploadSize bounds request bodies carrying a frame.
const MaxUploadSize = frame.MaxEncodedSize

// FrameProcessor is the part of the pipeline the camera endpoints drive.
type FrameProcessor interface {
	ProcessBytes(ctx context.Context, data []byte) (*pipeline.Result, error)
	ProcessDataURI(ctx context.Context, uri string) (*pipeline.Result, error)
	Passthrough(data []byte) error
}

// UploadHandler runs the full pipeline on a raw image posted by a camera.
func UploadHandler(proc FrameProcessor, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadSize))
		if err != nil || len(data) == 0 {
			writeError(w, http.StatusBadRequest, "Invalid image")
			return
		}

		// A camera dropping the connection must not abort a dispatch halfway.
		result, err := proc.ProcessBytes(context.WithoutCancel(r.Context()), data)
		if err != nil {
			logger.Warning("Upload from %s rejected: %v", r.RemoteAddr, err)
			writeAppError(w, err)
			return
		}

		events := eventsOf(result)
		writeJSON(w, http.StatusOK, dto.UploadResult{
			Status:     statusSuccess,
			Detections: events,
			Count:      len(events),
		})
	}
}

// UploadWebHandler accepts a browser capture as a base64 data URI and returns the
// annotated frame along with the detections.
func UploadWebHandler(proc FrameProcessor, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.UploadWebRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadSize)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "No JSON received")
			return
		}
		if !strings.HasPrefix(req.Image, "data:image") {
			writeError(w, http.StatusBadRequest, "Invalid image data")
			return
		}

		result, err := proc.ProcessDataURI(context.WithoutCancel(r.Context()), req.Image)
		if err != nil {
			logger.Warning("Web upload from %s rejected: %v", r.RemoteAddr, err)
			writeAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, dto.UploadWebResult{
			Status:          statusOK,
			Detections:      eventsOf(result),
			DetectionsImage: base64.StdEncoding.EncodeToString(result.JPEG),
		})
	}
}

// StreamHandler publishes a raw frame to the live view without running detection.
func StreamHandler(proc FrameProcessor, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadSize))
		if err != nil || len(data) == 0 {
			writeError(w, http.StatusBadRequest, "Invalid image")
			return
		}

		if err := proc.Passthrough(data); err != nil {
			logger.Warning("Stream frame from %s rejected: %v", r.RemoteAddr, err)
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.StatusMessage{Status: statusOK})
	}
}

func eventsOf(result *pipeline.Result) []model.DetectionEvent {
	if result == nil || result.Events == nil {
		return []model.DetectionEvent{}
	}
	return result.Events
}

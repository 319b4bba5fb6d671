package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"sorter/internal/apperror"
	"sorter/internal/dto"
	"sorter/internal/logger"
	"sorter/internal/model"
	"sorter/internal/service/actuator"
)

// ManualActuator moves one actuator on request.
type ManualActuator interface {
	Manual(ctx context.Context, id int, angle *int) (model.ActuatorCommand, error)
}

// StatusReader exposes the latest controller status.
type StatusReader interface {
	Read() (actuator.Snapshot, bool)
}

// ServoStatusHandler asks the controller for a fresh status and answers with the last
// one received. The reply to this request usually arrives for a later call.
func ServoStatusHandler(requester actuator.StatusRequester, state StatusReader, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requester.RequestStatus(r.Context()); err != nil {
			logger.Warning("Status request failed: %v", err)
		}

		snapshot, ok := state.Read()
		if !ok {
			writeJSON(w, http.StatusAccepted, dto.StatusMessage{Status: "pending", Message: "Waiting status..."})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(snapshot.Payload)
	}
}

// ManualServoHandler sends a set-angle command to /api/manual_servo/{id}?angle=N.
func ManualServoHandler(svc ManualActuator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid servo ID")
			return
		}

		var angle *int
		if raw := r.URL.Query().Get("angle"); raw != "" {
			a, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid angle")
				return
			}
			angle = &a
		}

		cmd, err := svc.Manual(r.Context(), id, angle)
		if err != nil {
			if errors.Is(err, apperror.ErrConfig) {
				writeError(w, http.StatusBadRequest, "Invalid servo ID")
				return
			}
			logger.Error("Manual command to servo %d failed: %v", id, err)
			writeError(w, apperror.HTTPStatus(err), err.Error())
			return
		}

		applied := 0
		if cmd.Angle != nil {
			applied = *cmd.Angle
		}
		writeJSON(w, http.StatusOK, dto.ManualServoResult{
			Status:  statusSuccess,
			Message: fmt.Sprintf("Sent to servo %d: angle %d", id, applied),
			Servo:   id,
			Angle:   applied,
		})
	}
}

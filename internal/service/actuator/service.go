package actuator

import (
	"context"
	"fmt"

	"sorter/internal/apperror"
	"sorter/internal/logger"
	"sorter/internal/metrics"
	"sorter/internal/model"
)

// Service validates actuator commands and hands them to the configured transport.
type Service struct {
	dispatcher   Dispatcher
	maxID        int
	defaultAngle int
	logger       *logger.Logger
}

// NewService creates a Service accepting actuator ids 1..maxID.
func NewService(dispatcher Dispatcher, maxID, defaultAngle int, log *logger.Logger) *Service {
	return &Service{
		dispatcher:   dispatcher,
		maxID:        maxID,
		defaultAngle: defaultAngle,
		logger:       log,
	}
}

// Dispatch validates cmd and sends it once. There are no retries.
func (s *Service) Dispatch(ctx context.Context, cmd model.ActuatorCommand) error {
	if err := s.validate(cmd.ActuatorID); err != nil {
		return err
	}

	if err := s.dispatcher.Dispatch(ctx, cmd); err != nil {
		metrics.Dispatches.WithLabelValues(metrics.ResultError).Inc()
		s.logger.Error("Dispatch to servo %d failed: %v", cmd.ActuatorID, err)
		return err
	}

	metrics.Dispatches.WithLabelValues(metrics.ResultOK).Inc()
	s.logger.Info("Servo %d activated", cmd.ActuatorID)
	return nil
}

// Manual moves an actuator to angle. A nil angle uses the default angle.
func (s *Service) Manual(ctx context.Context, id int, angle *int) (model.ActuatorCommand, error) {
	a := s.defaultAngle
	if angle != nil {
		a = *angle
	}
	cmd := model.SetAngle(id, a)
	return cmd, s.Dispatch(ctx, cmd)
}

func (s *Service) validate(id int) error {
	if id < 1 || id > s.maxID {
		return fmt.Errorf("%w: servo id %d outside 1..%d", apperror.ErrConfig, id, s.maxID)
	}
	return nil
}

package model

// ActionActivate is the action sent for pipeline-triggered actuations.
const ActionActivate = "activate"

// ActuatorCommand is a single command for the actuator controller.
// Angle is nil for plain activations triggered by a detection.
type ActuatorCommand struct {
	ActuatorID int
	Action     string
	Angle      *int
}

// Activate returns the command sent when a detection matches an actuator.
func Activate(actuatorID int) ActuatorCommand {
	return ActuatorCommand{ActuatorID: actuatorID, Action: ActionActivate}
}

// SetAngle returns a manual command moving the actuator to the given angle.
func SetAngle(actuatorID, angle int) ActuatorCommand {
	return ActuatorCommand{ActuatorID: actuatorID, Angle: &angle}
}

package dto

// Zero values mean "use the server default".
type ValidationRequest struct {
	MaxSteps            int     `json:"max_steps"`
	StallStepThreshold  int     `json:"stall_step_threshold"`
	StallSpeedThreshold float64 `json:"stall_speed_threshold"`
}

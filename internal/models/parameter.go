package models

// Parameter names with special handling.
const (
	ParamVelocity     = "Vel, Rms (RMS)"
	ParamDisplacement = "Disp, Rms (RMS)"
	ParamAcceleration = "Acc, Rms (RMS)"
	ParamRPM          = "RPM1"
	ParamAmpere       = "ALT_1"
)

// Status values derived from parameter thresholds.
const (
	StatusGood     = "good"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// ParameterMetadata describes the unit and alarm thresholds of a parameter.
type ParameterMetadata struct {
	Unit              string   `json:"unit"`
	ThresholdWarning  *float64 `json:"thresholdWarning,omitempty"`
	ThresholdCritical *float64 `json:"thresholdCritical,omitempty"`
}

// Status classifies value against the thresholds.
func (m ParameterMetadata) Status(value float64) string {
	if m.ThresholdCritical != nil && value >= *m.ThresholdCritical {
		return StatusCritical
	}
	if m.ThresholdWarning != nil && value >= *m.ThresholdWarning {
		return StatusWarning
	}
	return StatusGood
}

func threshold(v float64) *float64 { return &v }

// BuiltinParameters returns a fresh copy of the built-in parameter table.
func BuiltinParameters() map[string]ParameterMetadata {
	return map[string]ParameterMetadata{
		ParamVelocity:     {Unit: "mm/s", ThresholdWarning: threshold(4.5), ThresholdCritical: threshold(7.1)},
		ParamDisplacement: {Unit: "µm", ThresholdWarning: threshold(50), ThresholdCritical: threshold(100)},
		ParamAcceleration: {Unit: "g", ThresholdWarning: threshold(1.5), ThresholdCritical: threshold(3.0)},
		ParamRPM:          {Unit: "rpm"},
		ParamAmpere:       {Unit: "A"},
	}
}

// BuiltinOrder is the extraction order for built-in parameters.
var BuiltinOrder = []string{ParamVelocity, ParamDisplacement, ParamAcceleration, ParamRPM, ParamAmpere}

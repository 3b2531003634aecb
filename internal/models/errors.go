package models

// The pipeline distinguishes three failure categories. All of them abort the
// run immediately; there is no local recovery or retry anywhere.

// ConfigurationError reports a bad or missing flag value, a missing required
// input file, a missing sidecar, or a wrong count of config files.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ValidationError reports input data that fails a runtime check, such as an
// unrecognized phase-encoding code or an unexpected volume dimensionality.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Reason
}

// ComputationError reports a called external stage returning a failure
// status, or a derived quantity that is undefined (an empty segmentation
// mask has no mean).
type ComputationError struct {
	Stage  string
	Reason string
}

func (e *ComputationError) Error() string {
	if e.Stage == "" {
		return "computation error: " + e.Reason
	}
	return "computation error in " + e.Stage + ": " + e.Reason
}

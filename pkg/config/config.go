// Package config resolves a run's configuration: scanning the argument
// list into an immutable RunConfiguration, overlaying optional YAML
// settings on defaults, and validating that every required input exists
// before any imaging computation starts.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"boldprep/internal/models"
)

// RunConfiguration is the immutable record of one run's flags. It is built
// once from defaults plus overrides and never mutated afterwards.
type RunConfiguration struct {
	// TopupEnabled controls the susceptibility-distortion correction stage
	TopupEnabled bool

	// MotionCorrected asserts the BOLD series is already realigned
	MotionCorrected bool

	// SkullStripped asserts the T1 volume is already skull-stripped
	SkullStripped bool

	// CustomConfig selects a user-supplied distortion-model config file
	// over the built-in presets
	CustomConfig bool

	// SmoothingEnabled controls the conditioning of the synthesized volume
	SmoothingEnabled bool

	// BiasCorrectionEnabled controls structural bias-field correction
	BiasCorrectionEnabled bool

	// TotalReadoutTime is the configured readout time in seconds for the
	// distorted acquisition row
	TotalReadoutTime float64

	// T1Name is the structural volume filename within the input directory
	T1Name string

	// BOLDName is the functional volume filename within the input directory
	BOLDName string

	// InputDir holds the subject's input files
	InputDir string

	// OutputDir receives every artifact of the run
	OutputDir string

	// SettingsPath is the optional deployment settings file
	SettingsPath string

	// Help short-circuits the run with a usage message
	Help bool
}

// DefaultRunConfiguration returns the flag defaults: correction stages on,
// every user assertion off.
func DefaultRunConfiguration() *RunConfiguration {
	return &RunConfiguration{
		TopupEnabled:          true,
		BiasCorrectionEnabled: true,
		SmoothingEnabled:      true,
		TotalReadoutTime:      0.05,
		T1Name:                "T1.nii.gz",
		BOLDName:              "BOLD_d.nii.gz",
		InputDir:              "/INPUTS",
		OutputDir:             "/OUTPUTS",
		SettingsPath:          "/opt/boldprep/settings.yaml",
	}
}

// Usage is the help text printed for -h/--help.
const Usage = `boldprep: distortion correction of functional volumes by synthesized field maps

usage: boldprep [options]

options:
  -nt, --no_topup          skip susceptibility-distortion correction
  -mc, --motion_corrected  input BOLD series is already motion corrected
  -ss, --skull_stripped    input T1 volume is already skull-stripped
  --custom_cnf             use the config file from the input directory for
                           the distortion model (exactly one *.cnf required)
  --no_smoothing           skip smoothing of the synthesized volume
  --no_bias_correction     skip structural bias-field correction
  --total_readout_time <f> total readout time in seconds (default 0.05)
  --T1 <filename>          structural volume filename (default T1.nii.gz)
  --BOLD <filename>        functional volume filename (default BOLD_d.nii.gz)
  --input_dir <dir>        input directory (default /INPUTS)
  --output_dir <dir>       output directory (default /OUTPUTS)
  --settings <file>        deployment settings file
                           (default /opt/boldprep/settings.yaml)
  -h, --help               show this message and exit
`

// ParseArgs scans an ordered argument list into a RunConfiguration.
// Unrecognized tokens are ignored silently; only the documented flags are
// interpreted. -h/--help anywhere wins over everything else. Options that
// take a value fail when they appear as the last token.
func ParseArgs(args []string) (*RunConfiguration, error) {
	cfg := DefaultRunConfiguration()

	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			cfg.Help = true
			return cfg, nil
		}
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-nt", "--no_topup":
			cfg.TopupEnabled = false
		case "-mc", "--motion_corrected":
			cfg.MotionCorrected = true
		case "-ss", "--skull_stripped":
			cfg.SkullStripped = true
		case "--custom_cnf":
			cfg.CustomConfig = true
		case "--no_smoothing":
			cfg.SmoothingEnabled = false
		case "--no_bias_correction":
			cfg.BiasCorrectionEnabled = false
		case "--total_readout_time":
			val, err := takeValue(args, i)
			if err != nil {
				return nil, err
			}
			trt, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, &models.ConfigurationError{
					Reason: fmt.Sprintf("--total_readout_time: %q is not a number", val),
				}
			}
			cfg.TotalReadoutTime = trt
			i++
		case "--T1":
			val, err := takeValue(args, i)
			if err != nil {
				return nil, err
			}
			cfg.T1Name = val
			i++
		case "--BOLD":
			val, err := takeValue(args, i)
			if err != nil {
				return nil, err
			}
			cfg.BOLDName = val
			i++
		case "--input_dir":
			val, err := takeValue(args, i)
			if err != nil {
				return nil, err
			}
			cfg.InputDir = val
			i++
		case "--output_dir":
			val, err := takeValue(args, i)
			if err != nil {
				return nil, err
			}
			cfg.OutputDir = val
			i++
		case "--settings":
			val, err := takeValue(args, i)
			if err != nil {
				return nil, err
			}
			cfg.SettingsPath = val
			i++
		default:
			// unknown tokens are not an error
		}
	}

	return cfg, nil
}

// takeValue returns the value following an option, failing when the option
// is the last token.
func takeValue(args []string, i int) (string, error) {
	if i+1 >= len(args) {
		return "", &models.ConfigurationError{
			Reason: fmt.Sprintf("option %s requires a value", args[i]),
		}
	}
	return args[i+1], nil
}

// SidecarName derives the JSON sidecar filename paired with a BOLD volume.
func SidecarName(boldName string) string {
	name := boldName
	for _, suf := range []string{".nii.gz", ".nii"} {
		if strings.HasSuffix(name, suf) {
			name = strings.TrimSuffix(name, suf)
			break
		}
	}
	return name + ".json"
}

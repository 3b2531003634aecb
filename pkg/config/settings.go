package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"boldprep/pkg/tools"
)

// Settings is the deployment-level configuration loaded from YAML: where
// the atlas volumes and fold weights live, which inference command to run,
// and the compute bounds. Flag-level run options live in RunConfiguration
// instead.
type Settings struct {
	// Atlas holds the two reference volume alternatives. Which one a run
	// registers to is decided by the skull-stripped flag alone.
	Atlas struct {
		// FullHead is the reference for runs on unstripped input
		FullHead string `yaml:"fullHead"`

		// Masked is the reference for runs on pre-stripped input
		Masked string `yaml:"masked"`
	} `yaml:"atlas"`

	// Model configures the ensemble inference
	Model struct {
		// Command is the external inference entry point
		Command string `yaml:"command"`

		// WeightsDir contains one weights file per fold, fold_<k>.pt
		WeightsDir string `yaml:"weightsDir"`

		// Folds is the ensemble size
		Folds int `yaml:"folds"`
	} `yaml:"model"`

	// Processing bounds the run's compute
	Processing struct {
		// Workers bounds concurrent fold evaluations
		Workers int `yaml:"workers"`

		// Threads is handed to each external tool that accepts a
		// thread count
		Threads int `yaml:"threads"`

		// SmoothingSigma is the Gaussian sigma in mm for conditioning
		// the synthesized volume
		SmoothingSigma float64 `yaml:"smoothingSigma"`
	} `yaml:"processing"`

	// Registration is the multi-resolution schedule of the atlas aligner
	Registration tools.RegistrationSchedule `yaml:"registration"`
}

// DefaultSettings returns the built-in deployment defaults.
func DefaultSettings() *Settings {
	s := &Settings{}

	s.Atlas.FullHead = "/opt/boldprep/atlas/T1_fullhead.nii.gz"
	s.Atlas.Masked = "/opt/boldprep/atlas/T1_masked.nii.gz"

	s.Model.Command = "boldprep-infer"
	s.Model.WeightsDir = "/opt/boldprep/weights"
	s.Model.Folds = 5

	s.Processing.Workers = runtime.NumCPU()
	s.Processing.Threads = runtime.NumCPU()
	s.Processing.SmoothingSigma = 1.15

	s.Registration = tools.DefaultRegistrationSchedule()

	return s
}

// LoadSettings loads settings from a YAML file, overlaying the defaults.
// A missing file is not an error; the defaults already describe a working
// deployment.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("error parsing settings file: %w", err)
	}

	return s, nil
}

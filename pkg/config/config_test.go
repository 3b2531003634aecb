package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"boldprep/internal/models"
)

// TestDefaults verifies the documented flag defaults.
func TestDefaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs(nil) failed: %v", err)
	}

	if !cfg.TopupEnabled {
		t.Error("TopupEnabled default = false, want true")
	}
	if !cfg.BiasCorrectionEnabled {
		t.Error("BiasCorrectionEnabled default = false, want true")
	}
	if !cfg.SmoothingEnabled {
		t.Error("SmoothingEnabled default = false, want true")
	}
	if cfg.MotionCorrected || cfg.SkullStripped || cfg.CustomConfig {
		t.Error("user-assertion flags must default to false")
	}
	if cfg.TotalReadoutTime != 0.05 {
		t.Errorf("TotalReadoutTime default = %f, want 0.05", cfg.TotalReadoutTime)
	}
	if cfg.T1Name != "T1.nii.gz" || cfg.BOLDName != "BOLD_d.nii.gz" {
		t.Errorf("default filenames = %q, %q", cfg.T1Name, cfg.BOLDName)
	}
	if cfg.InputDir != "/INPUTS" || cfg.OutputDir != "/OUTPUTS" {
		t.Errorf("default directories = %q, %q", cfg.InputDir, cfg.OutputDir)
	}
}

// TestFlags verifies each documented flag, long and short forms.
func TestFlags(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"-nt", "-mc", "-ss", "--custom_cnf", "--no_smoothing", "--no_bias_correction",
		"--total_readout_time", "0.0319", "--T1", "anat.nii.gz", "--BOLD", "func.nii.gz",
		"--input_dir", "/data/in", "--output_dir", "/data/out", "--settings", "/etc/boldprep.yaml",
	})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}

	if cfg.TopupEnabled {
		t.Error("-nt did not disable topup")
	}
	if !cfg.MotionCorrected || !cfg.SkullStripped || !cfg.CustomConfig {
		t.Error("assertion flags not set")
	}
	if cfg.SmoothingEnabled {
		t.Error("--no_smoothing did not disable smoothing")
	}
	if cfg.BiasCorrectionEnabled {
		t.Error("--no_bias_correction did not disable bias correction")
	}
	if cfg.TotalReadoutTime != 0.0319 {
		t.Errorf("TotalReadoutTime = %f, want 0.0319", cfg.TotalReadoutTime)
	}
	if cfg.T1Name != "anat.nii.gz" || cfg.BOLDName != "func.nii.gz" {
		t.Errorf("filenames = %q, %q", cfg.T1Name, cfg.BOLDName)
	}
	if cfg.InputDir != "/data/in" || cfg.OutputDir != "/data/out" {
		t.Errorf("directories = %q, %q", cfg.InputDir, cfg.OutputDir)
	}
	if cfg.SettingsPath != "/etc/boldprep.yaml" {
		t.Errorf("settings path = %q", cfg.SettingsPath)
	}
}

// TestUnknownTokensIgnored verifies stray tokens are not an error and do
// not disturb recognized flags.
func TestUnknownTokensIgnored(t *testing.T) {
	cfg, err := ParseArgs([]string{"subject01", "-mc", "--frobnicate", "-x"})
	if err != nil {
		t.Fatalf("ParseArgs with unknown tokens failed: %v", err)
	}
	if !cfg.MotionCorrected {
		t.Error("-mc lost among unknown tokens")
	}
}

// TestHelpShortCircuits verifies -h/--help anywhere wins, even when the
// remaining arguments would be invalid.
func TestHelpShortCircuits(t *testing.T) {
	for _, args := range [][]string{
		{"--help"},
		{"-h"},
		{"--total_readout_time", "-h"},
		{"-mc", "--T1", "x.nii.gz", "--help", "--BOLD"},
	} {
		cfg, err := ParseArgs(args)
		if err != nil {
			t.Errorf("ParseArgs(%v) failed: %v", args, err)
			continue
		}
		if !cfg.Help {
			t.Errorf("ParseArgs(%v): Help not set", args)
		}
	}
}

// TestValueOptionAsLastArgument verifies the explicit error when a value
// option has nothing following it.
func TestValueOptionAsLastArgument(t *testing.T) {
	for _, args := range [][]string{
		{"--total_readout_time"},
		{"-mc", "--T1"},
		{"--BOLD"},
		{"--input_dir"},
		{"--output_dir"},
		{"--settings"},
	} {
		_, err := ParseArgs(args)
		if err == nil {
			t.Errorf("ParseArgs(%v) succeeded, want missing-value error", args)
			continue
		}
		var cerr *models.ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("ParseArgs(%v) returned %T, want *ConfigurationError", args, err)
		}
	}
}

// TestBadReadoutTime verifies a non-numeric readout time is rejected.
func TestBadReadoutTime(t *testing.T) {
	if _, err := ParseArgs([]string{"--total_readout_time", "fast"}); err == nil {
		t.Error("non-numeric readout time accepted")
	}
}

// TestSidecarName verifies sidecar derivation for both volume suffixes.
func TestSidecarName(t *testing.T) {
	cases := map[string]string{
		"BOLD_d.nii.gz": "BOLD_d.json",
		"func.nii":      "func.json",
		"weird":         "weird.json",
	}
	for in, want := range cases {
		if got := SidecarName(in); got != want {
			t.Errorf("SidecarName(%q) = %q, want %q", in, got, want)
		}
	}
}

// writeInputs populates a directory with the named empty files.
func writeInputs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// TestResolveInputs verifies the presence checks and resolved paths.
func TestResolveInputs(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir, "T1.nii.gz", "BOLD_d.nii.gz", "BOLD_d.json")

	cfg := DefaultRunConfiguration()
	in, err := ResolveInputs(cfg, dir)
	if err != nil {
		t.Fatalf("ResolveInputs failed: %v", err)
	}

	if in.T1Path != filepath.Join(dir, "T1.nii.gz") {
		t.Errorf("T1Path = %q", in.T1Path)
	}
	if in.SidecarPath != filepath.Join(dir, "BOLD_d.json") {
		t.Errorf("SidecarPath = %q", in.SidecarPath)
	}
	if in.ConfigPath != "" {
		t.Errorf("ConfigPath = %q without custom_cnf", in.ConfigPath)
	}
}

// TestResolveInputsMissingFiles verifies each absent input is a
// ConfigurationError.
func TestResolveInputsMissingFiles(t *testing.T) {
	cases := []struct {
		name  string
		files []string
	}{
		{"missing T1", []string{"BOLD_d.nii.gz", "BOLD_d.json"}},
		{"missing BOLD", []string{"T1.nii.gz", "BOLD_d.json"}},
		{"missing sidecar", []string{"T1.nii.gz", "BOLD_d.nii.gz"}},
	}

	for _, c := range cases {
		dir := t.TempDir()
		writeInputs(t, dir, c.files...)

		_, err := ResolveInputs(DefaultRunConfiguration(), dir)
		if err == nil {
			t.Errorf("%s: ResolveInputs succeeded, want error", c.name)
			continue
		}
		var cerr *models.ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: got %T, want *ConfigurationError", c.name, err)
		}
	}
}

// TestResolveInputsConfigCount verifies the exactly-one-config rule under
// custom_cnf: zero or two files abort before any imaging computation.
func TestResolveInputsConfigCount(t *testing.T) {
	base := []string{"T1.nii.gz", "BOLD_d.nii.gz", "BOLD_d.json"}

	cfg := DefaultRunConfiguration()
	cfg.CustomConfig = true

	// zero config files
	dir := t.TempDir()
	writeInputs(t, dir, base...)
	if _, err := ResolveInputs(cfg, dir); err == nil {
		t.Error("zero config files accepted under custom_cnf")
	}

	// exactly one
	dir = t.TempDir()
	writeInputs(t, dir, append([]string{"model.cnf"}, base...)...)
	in, err := ResolveInputs(cfg, dir)
	if err != nil {
		t.Fatalf("one config file rejected: %v", err)
	}
	if in.ConfigPath != filepath.Join(dir, "model.cnf") {
		t.Errorf("ConfigPath = %q", in.ConfigPath)
	}

	// two
	dir = t.TempDir()
	writeInputs(t, dir, append([]string{"a.cnf", "b.cnf"}, base...)...)
	if _, err := ResolveInputs(cfg, dir); err == nil {
		t.Error("two config files accepted under custom_cnf")
	}

	// without the flag, stray config files are never checked
	cfg.CustomConfig = false
	if _, err := ResolveInputs(cfg, dir); err != nil {
		t.Errorf("stray config files rejected without custom_cnf: %v", err)
	}
}

// TestLoadSettings verifies YAML overlay over defaults and the
// missing-file fallback.
func TestLoadSettings(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings of absent file failed: %v", err)
	}
	if s.Model.Folds != 5 {
		t.Errorf("default folds = %d, want 5", s.Model.Folds)
	}
	if s.Processing.SmoothingSigma != 1.15 {
		t.Errorf("default smoothing sigma = %f, want 1.15", s.Processing.SmoothingSigma)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	content := "model:\n  folds: 3\n  weightsDir: /data/weights\nprocessing:\n  workers: 2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err = LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.Model.Folds != 3 {
		t.Errorf("folds = %d, want 3", s.Model.Folds)
	}
	if s.Model.WeightsDir != "/data/weights" {
		t.Errorf("weightsDir = %q", s.Model.WeightsDir)
	}
	if s.Processing.Workers != 2 {
		t.Errorf("workers = %d, want 2", s.Processing.Workers)
	}
	// untouched keys keep their defaults
	if s.Model.Command != "boldprep-infer" {
		t.Errorf("command = %q, want default", s.Model.Command)
	}
	if len(s.Registration.ShrinkFactors) != 4 || s.Registration.ShrinkFactors[0] != 8 {
		t.Errorf("registration schedule lost: %v", s.Registration.ShrinkFactors)
	}
}

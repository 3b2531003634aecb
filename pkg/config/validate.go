package config

import (
	"fmt"
	"os"
	"path/filepath"

	"boldprep/internal/models"
)

// Inputs holds the resolved absolute paths of a validated run.
type Inputs struct {
	// T1Path is the structural volume
	T1Path string

	// BOLDPath is the functional volume
	BOLDPath string

	// SidecarPath is the BOLD-paired JSON metadata file
	SidecarPath string

	// ConfigPath is the user-supplied distortion-model config file;
	// empty unless the custom_cnf flag is set
	ConfigPath string
}

// ResolveInputs validates the presence of every required input file and
// returns their absolute paths. Everything here runs before any imaging
// computation, so a misconfigured run aborts without creating artifacts.
func ResolveInputs(cfg *RunConfiguration, inputDir string) (*Inputs, error) {
	absDir, err := filepath.Abs(inputDir)
	if err != nil {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("resolving input directory: %v", err)}
	}

	in := &Inputs{
		T1Path:      filepath.Join(absDir, cfg.T1Name),
		BOLDPath:    filepath.Join(absDir, cfg.BOLDName),
		SidecarPath: filepath.Join(absDir, SidecarName(cfg.BOLDName)),
	}

	for _, f := range []struct{ label, path string }{
		{"T1 volume", in.T1Path},
		{"BOLD volume", in.BOLDPath},
		{"BOLD sidecar", in.SidecarPath},
	} {
		if _, err := os.Stat(f.path); err != nil {
			return nil, &models.ConfigurationError{
				Reason: fmt.Sprintf("%s not found at %s", f.label, f.path),
			}
		}
	}

	if cfg.CustomConfig {
		matches, err := filepath.Glob(filepath.Join(absDir, "*.cnf"))
		if err != nil {
			return nil, &models.ConfigurationError{Reason: fmt.Sprintf("scanning for config files: %v", err)}
		}
		if len(matches) != 1 {
			return nil, &models.ConfigurationError{
				Reason: fmt.Sprintf("custom_cnf requires exactly one *.cnf file in %s, found %d", absDir, len(matches)),
			}
		}
		in.ConfigPath = matches[0]
	}

	return in, nil
}

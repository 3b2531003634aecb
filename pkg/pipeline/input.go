package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"boldprep/internal/models"
	"boldprep/pkg/nifti"
	"boldprep/pkg/voxel"
)

// sidecar is the subset of the BOLD JSON metadata the pipeline reads.
type sidecar struct {
	PhaseEncodingDirection *string `json:"PhaseEncodingDirection"`
}

// readPhaseEncoding parses the sidecar and validates its phase-encoding
// code against the six canonical values.
func readPhaseEncoding(path string) (models.PhaseEncoding, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", &models.ConfigurationError{Reason: fmt.Sprintf("reading sidecar %s: %v", path, err)}
	}

	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return "", &models.ValidationError{Reason: fmt.Sprintf("sidecar %s is not valid JSON: %v", path, err)}
	}
	if sc.PhaseEncodingDirection == nil {
		return "", &models.ValidationError{Reason: fmt.Sprintf("sidecar %s has no PhaseEncodingDirection field", path)}
	}

	return models.ParsePhaseEncoding(*sc.PhaseEncodingDirection)
}

// normalizeInput stages the inputs into the output directory, resolves the
// phase encoding, repairs redundant orientation records, and reduces the
// functional input to its canonical motion-corrected and 3D-mean forms.
// Exactly one dimensionality path executes.
func (p *Pipeline) normalizeInput(ctx context.Context) error {
	phase, err := readPhaseEncoding(p.params.Inputs.SidecarPath)
	if err != nil {
		return err
	}
	p.phase = phase
	v := phase.Vector()
	p.log.Infof("phase encoding %s -> vector %d %d %d", phase, v[0], v[1], v[2])

	// work on copies; the raw inputs are never touched
	p.boldPath = p.out(artBOLDWork)
	p.t1Path = p.out(artT1Work)
	if err := copyFile(p.params.Inputs.BOLDPath, p.boldPath); err != nil {
		return fmt.Errorf("staging BOLD volume: %w", err)
	}
	if err := copyFile(p.params.Inputs.T1Path, p.t1Path); err != nil {
		return fmt.Errorf("staging T1 volume: %w", err)
	}

	hdr, err := nifti.ReadHeader(p.boldPath)
	if err != nil {
		return &models.ValidationError{Reason: fmt.Sprintf("reading BOLD header: %v", err)}
	}

	// Two aligned orientation records are redundant and possibly in
	// conflict; clear the qform so downstream tools cannot prefer it.
	if hdr.SFormCode == 1 && hdr.QFormCode == 1 {
		p.log.Info("sform and qform both aligned, clearing qform")
		if err := nifti.ClearQForm(p.boldPath); err != nil {
			return fmt.Errorf("clearing qform: %w", err)
		}
		hdr.QFormCode = 0
	}

	p.origEven = hdr.AllSpatialEven()
	p.mcPath = p.out(artBOLDMC)
	p.meanPath = p.out(artBOLDMean)

	switch ndim := hdr.NDim(); {
	case ndim == 3:
		// a single frame is its own realignment and its own mean
		p.log.Info("3D functional input, skipping motion correction and temporal mean")
		if err := copyFile(p.boldPath, p.mcPath); err != nil {
			return err
		}
		return copyFile(p.boldPath, p.meanPath)

	case ndim == 4 && p.params.Config.MotionCorrected:
		p.log.Info("4D input asserted motion corrected, computing temporal mean only")
		if err := copyFile(p.boldPath, p.mcPath); err != nil {
			return err
		}
		img, err := nifti.Load(p.boldPath)
		if err != nil {
			return fmt.Errorf("loading BOLD series: %w", err)
		}
		mean, err := voxel.TemporalMean(img)
		if err != nil {
			return err
		}
		return mean.Save(p.meanPath)

	case ndim == 4:
		p.log.Info("4D input, running motion correction")
		meanOut, err := p.tools.Motion.Correct(ctx, p.boldPath, p.mcPath)
		if err != nil {
			return err
		}
		return copyFile(meanOut, p.meanPath)

	default:
		return &models.ValidationError{
			Reason: fmt.Sprintf("functional input is %dD, expected 3D or 4D", ndim),
		}
	}
}

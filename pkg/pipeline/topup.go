package pipeline

import (
	"context"
	"fmt"
	"os"

	"boldprep/pkg/nifti"
	"boldprep/pkg/voxel"
)

// conditionOutput optionally smooths the synthesized volume. The smoothed
// form is what the distortion corrector pairs against the distorted mean.
func (p *Pipeline) conditionOutput(ctx context.Context) error {
	if !p.params.Config.SmoothingEnabled {
		p.log.Info("smoothing disabled, using raw synthesized volume")
		return nil
	}

	sigma := p.params.Settings.Processing.SmoothingSigma
	smoothed := p.out(artSynthSmoothed)
	if err := p.tools.Smooth.Smooth(ctx, p.synthPath, smoothed, sigma); err != nil {
		return err
	}
	p.synthPath = smoothed
	return nil
}

// writeAcqParams writes the acquisition-parameters record: two rows of the
// phase-encoding vector, the first carrying the configured readout time and
// the second zero for the synthesized, undistorted acquisition.
func (p *Pipeline) writeAcqParams(path string) error {
	v := p.phase.Vector()
	content := fmt.Sprintf("%d %d %d %g\n%d %d %d 0\n",
		v[0], v[1], v[2], p.params.Config.TotalReadoutTime,
		v[0], v[1], v[2])
	return os.WriteFile(path, []byte(content), 0644)
}

// selectModelConfig resolves the distortion-model configuration: the
// user-supplied file when custom_cnf is set, otherwise a built-in preset
// picked by the grid parity of the original functional volume.
func (p *Pipeline) selectModelConfig() (string, error) {
	if p.params.Config.CustomConfig {
		p.log.Infof("using custom distortion-model config: %s", p.params.Inputs.ConfigPath)
		return p.params.Inputs.ConfigPath, nil
	}

	name, content := "preset_odd.cnf", presetOdd
	if p.origEven {
		name, content = "preset_even.cnf", presetEven
	}
	p.log.Infof("using built-in distortion-model config: %s", name)

	path := p.out(name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// correctDistortion estimates the susceptibility field from the
// distorted/synthesized pair and applies it to the motion-corrected series.
func (p *Pipeline) correctDistortion(ctx context.Context) error {
	distorted, err := nifti.Load(p.meanPath)
	if err != nil {
		return fmt.Errorf("loading functional mean: %w", err)
	}
	synth, err := nifti.Load(p.synthPath)
	if err != nil {
		return fmt.Errorf("loading synthesized volume: %w", err)
	}

	pair, err := voxel.ConcatFrames(distorted, synth)
	if err != nil {
		return err
	}
	pairPath := p.out(artPair)
	if err := pair.Save(pairPath); err != nil {
		return fmt.Errorf("saving distortion pair: %w", err)
	}

	acqPath := p.out(artAcqParams)
	if err := p.writeAcqParams(acqPath); err != nil {
		return fmt.Errorf("writing acquisition parameters: %w", err)
	}

	cnfPath, err := p.selectModelConfig()
	if err != nil {
		return err
	}

	fieldPrefix := p.out(artTopupPrefix)
	if err := p.tools.Distortion.Estimate(ctx, pairPath, acqPath, cnfPath, fieldPrefix); err != nil {
		return err
	}

	corrected := p.out(artCorrected)
	if err := p.tools.Distortion.Apply(ctx, p.mcPath, acqPath, fieldPrefix, 1, corrected); err != nil {
		return err
	}

	hdr, err := nifti.ReadHeader(corrected)
	if err != nil {
		return fmt.Errorf("reading corrected series header: %w", err)
	}

	switch hdr.NDim() {
	case 4:
		img, err := nifti.Load(corrected)
		if err != nil {
			return fmt.Errorf("loading corrected series: %w", err)
		}
		mean, err := voxel.TemporalMean(img)
		if err != nil {
			return err
		}
		return mean.Save(p.out(artCorrectedMean))

	case 3:
		return copyFile(corrected, p.out(artCorrectedMean))

	default:
		// Deliberately not fatal: the corrected series is kept as-is.
		// Every other dimensionality check in the pipeline aborts;
		// promoting this one is a pending behavior change under review.
		p.log.Warnf("corrected series is %dD, expected 3D or 4D", hdr.NDim())
		return nil
	}
}

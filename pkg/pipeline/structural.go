package pipeline

import (
	"context"
	"fmt"

	"boldprep/internal/models"
	"boldprep/pkg/nifti"
	"boldprep/pkg/voxel"
)

// wmThreshold is the white-matter probability cutoff for the intensity
// reference mask. Deliberately conservative: partial-volume voxels must not
// bias the reference mean, so recall is traded for precision.
const wmThreshold = 0.99

// normTarget is the atlas-intensity convention the masked white-matter mean
// is rescaled to.
const normTarget = 110.0

// normalizeStructural bias-corrects the T1 volume and rescales it so the
// mean intensity inside a high-purity white-matter mask lands on the atlas
// convention value.
func (p *Pipeline) normalizeStructural(ctx context.Context) error {
	p.biasPath = p.out(artT1Bias)
	if p.params.Config.BiasCorrectionEnabled {
		if err := p.tools.Bias.Correct(ctx, p.t1Path, p.biasPath); err != nil {
			return err
		}
	} else {
		p.log.Info("bias correction disabled, passing volume through")
		if err := copyFile(p.t1Path, p.biasPath); err != nil {
			return err
		}
	}

	wmProb, err := p.tools.Segment.Segment(ctx, p.biasPath, p.out(artSegPrefix))
	if err != nil {
		return err
	}

	prob, err := nifti.Load(wmProb)
	if err != nil {
		return fmt.Errorf("loading white-matter probability map: %w", err)
	}

	mask := voxel.ThresholdMask(prob, wmThreshold)
	p.wmMaskPath = p.out(artWMMask)
	if err := mask.Save(p.wmMaskPath); err != nil {
		return fmt.Errorf("saving white-matter mask: %w", err)
	}

	corrected, err := nifti.Load(p.biasPath)
	if err != nil {
		return fmt.Errorf("loading bias-corrected volume: %w", err)
	}

	mean, err := voxel.MeanWithin(corrected, mask)
	if err != nil {
		// empty mask: the mean is undefined and must be surfaced, not
		// propagated as a NaN scale factor
		return err
	}
	p.log.Infof("white-matter reference mean: %.4f, rescaling to %g", mean, normTarget)

	norm := voxel.Scale(corrected, normTarget/mean)
	p.normPath = p.out(artT1Norm)
	return norm.Save(p.normPath)
}

// provideMask produces the structural brain mask. When the user asserts the
// input is already skull-stripped the mask is just the volume's nonzero
// support; the claim is trusted, no extraction runs. Atlas selection later
// keys off the same flag, not off anything in the mask itself.
func (p *Pipeline) provideMask(ctx context.Context) error {
	p.maskPath = p.out(artT1Mask)

	if p.params.Config.SkullStripped {
		p.log.Info("input asserted skull-stripped, using nonzero support as mask")
		img, err := nifti.Load(p.t1Path)
		if err != nil {
			return fmt.Errorf("loading structural volume: %w", err)
		}
		if img.Hdr.NDim() != 3 {
			return &models.ValidationError{
				Reason: fmt.Sprintf("structural input is %dD, expected 3D", img.Hdr.NDim()),
			}
		}
		return voxel.NonzeroMask(img).Save(p.maskPath)
	}

	// extraction runs on the bias-corrected, not yet intensity-normalized
	// volume
	mask, err := p.tools.Extract.Extract(ctx, p.biasPath, p.out("T1_brain"))
	if err != nil {
		return err
	}
	return copyFile(mask, p.maskPath)
}

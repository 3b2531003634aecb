package pipeline

import (
	"context"
	"fmt"

	"boldprep/internal/models"
	"boldprep/pkg/nifti"
	"boldprep/pkg/xfm"
)

// alignCrossModal estimates the functional-to-structural transform using
// the white-matter mask as a registration prior, then reconciles the matrix
// into the convention the atlas aligner and resampler consume. The argument
// order of the conversion is mandatory: reference, moving, transform,
// direction flag.
func (p *Pipeline) alignCrossModal(ctx context.Context) error {
	matPath := p.out(artFuncToStructMat)
	if err := p.tools.Register.Register(ctx, p.meanPath, p.normPath, p.wmMaskPath, matPath); err != nil {
		return err
	}

	fslMat, err := xfm.ReadFSLMat(matPath)
	if err != nil {
		return fmt.Errorf("reading registration matrix: %w", err)
	}

	refHdr, err := nifti.ReadHeader(p.normPath)
	if err != nil {
		return fmt.Errorf("reading structural header: %w", err)
	}
	movHdr, err := nifti.ReadHeader(p.meanPath)
	if err != nil {
		return fmt.Errorf("reading functional mean header: %w", err)
	}

	itk, err := xfm.ConvertFSLToITK(xfm.GeometryOf(refHdr), xfm.GeometryOf(movHdr), fslMat, true)
	if err != nil {
		return fmt.Errorf("reconciling transform convention: %w", err)
	}

	itkPath := p.out(artFuncToStructITK)
	if err := xfm.WriteITK(itkPath, itk); err != nil {
		return fmt.Errorf("writing reconciled transform: %w", err)
	}

	p.composer = &xfm.Composer{
		FuncToStruct: models.TransformHandle{
			Path: itkPath,
			From: models.SpaceFunctional,
			To:   models.SpaceStructural,
		},
	}
	return nil
}

// alignAtlas registers the normalized structural volume to the reference
// atlas. Which reference is used follows the skull-stripped flag alone, a
// static policy set when the mask was chosen, never a data-driven check.
func (p *Pipeline) alignAtlas(ctx context.Context) error {
	p.atlasRefPath = p.params.Settings.Atlas.FullHead
	if p.params.Config.SkullStripped {
		p.atlasRefPath = p.params.Settings.Atlas.Masked
	}
	p.log.Infof("atlas reference: %s", p.atlasRefPath)

	xfmPath := p.out(artStructToAtlas)
	if err := p.tools.AtlasRegister.Register(ctx, p.normPath, p.atlasRefPath, xfmPath); err != nil {
		return err
	}

	p.composer.StructToAtlas = models.TransformHandle{
		Path: xfmPath,
		From: models.SpaceStructural,
		To:   models.SpaceAtlas,
	}
	return nil
}

// resampleToAtlas moves the normalized structural volume and the functional
// mean into atlas space, each through a single composed resampling.
func (p *Pipeline) resampleToAtlas(ctx context.Context) error {
	p.t1AtlasPath = p.out(artT1NormAtlas)
	chain, err := p.composer.Forward(models.SpaceStructural, models.SpaceAtlas)
	if err != nil {
		return err
	}
	if err := p.tools.Resample.Resample(ctx, p.normPath, p.atlasRefPath, p.t1AtlasPath, chain); err != nil {
		return err
	}

	p.boldAtlasPath = p.out(artBOLDMeanAtlas)
	chain, err = p.composer.Forward(models.SpaceFunctional, models.SpaceAtlas)
	if err != nil {
		return err
	}
	return p.tools.Resample.Resample(ctx, p.meanPath, p.atlasRefPath, p.boldAtlasPath, chain)
}

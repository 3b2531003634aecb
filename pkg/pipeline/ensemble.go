package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"boldprep/internal/models"
	"boldprep/pkg/nifti"
	"boldprep/pkg/voxel"
)

// runEnsemble evaluates the trained model across all folds and reduces the
// predictions to their voxelwise mean. The folds share read-only inputs and
// write disjoint artifacts, so they run concurrently under a worker bound;
// the reduction waits for all of them.
func (p *Pipeline) runEnsemble(ctx context.Context) error {
	folds := p.params.Settings.Model.Folds
	workers := p.params.Settings.Processing.Workers
	if workers < 1 {
		workers = 1
	}
	p.log.Infof("running %d folds on %d workers", folds, workers)

	results := make([]models.FoldResult, folds)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for k := 1; k <= folds; k++ {
		k := k
		g.Go(func() error {
			weights := filepath.Join(p.params.Settings.Model.WeightsDir, fmt.Sprintf("fold_%d.pt", k))
			out := p.out(foldArtifact(k))

			p.log.Infof("fold %d: %s", k, filepath.Base(out))
			if err := p.tools.Predict.Predict(gctx, p.t1AtlasPath, p.boldAtlasPath, weights, out); err != nil {
				return fmt.Errorf("fold %d: %w", k, err)
			}

			results[k-1] = models.FoldResult{
				Fold:   k,
				Volume: models.VolumeHandle{Path: out, Space: models.SpaceAtlas},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	preds := make([]voxel.Fold, folds)
	for i, res := range results {
		img, err := nifti.Load(res.Volume.Path)
		if err != nil {
			return fmt.Errorf("loading fold %d prediction: %w", res.Fold, err)
		}
		preds[i] = voxel.Fold{Index: res.Fold, Img: img}
	}

	ensembled, err := voxel.MeanAcross(preds)
	if err != nil {
		return err
	}
	synthAtlas := p.out(artSynthAtlas)
	if err := ensembled.Save(synthAtlas); err != nil {
		return fmt.Errorf("saving ensemble mean: %w", err)
	}

	// back into native functional space through the same transforms,
	// inverted, in one resampling
	chain, err := p.composer.Inverse(models.SpaceAtlas, models.SpaceFunctional)
	if err != nil {
		return err
	}
	p.synthPath = p.out(artSynthNative)
	return p.tools.Resample.Resample(ctx, synthAtlas, p.meanPath, p.synthPath, chain)
}

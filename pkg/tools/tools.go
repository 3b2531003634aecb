// Package tools defines the narrow capability interfaces for every external
// imaging collaborator the pipeline invokes, plus implementations that shell
// out to the real binaries. The pipeline never depends on a concrete tool
// suite, only on these interfaces, so tests substitute deterministic fakes.
package tools

import (
	"context"

	"boldprep/pkg/xfm"
)

// BiasCorrector removes smooth multiplicative intensity inhomogeneity from
// a volume.
type BiasCorrector interface {
	Correct(ctx context.Context, in, out string) error
}

// Segmenter runs a 3-class tissue segmentation and returns the path of the
// white-matter probability map.
type Segmenter interface {
	Segment(ctx context.Context, in, outPrefix string) (wmProbMap string, err error)
}

// MotionCorrector realigns a 4D series, writing the aligned series to out,
// and returns the path of its mean volume.
type MotionCorrector interface {
	Correct(ctx context.Context, in, out string) (mean string, err error)
}

// BrainExtractor estimates a brain mask from a structural volume and
// returns the mask path.
type BrainExtractor interface {
	Extract(ctx context.Context, in, outPrefix string) (mask string, err error)
}

// Registrar estimates the rigid/affine transform from a functional mean
// into structural space, driven by a white-matter segmentation prior, and
// writes the matrix to outMat.
type Registrar interface {
	Register(ctx context.Context, moving, reference, wmSeg, outMat string) error
}

// AtlasRegistrar estimates the composed linear transform from structural
// space into the reference atlas.
type AtlasRegistrar interface {
	Register(ctx context.Context, moving, reference, outTransform string) error
}

// Resampler moves a volume through a transform chain onto a reference grid
// in a single interpolation.
type Resampler interface {
	Resample(ctx context.Context, in, reference, out string, chain []xfm.Step) error
}

// Smoother applies Gaussian smoothing with the given sigma in millimeters.
type Smoother interface {
	Smooth(ctx context.Context, in, out string, sigma float64) error
}

// Predictor invokes the trained model of one ensemble fold.
type Predictor interface {
	Predict(ctx context.Context, structural, functional, weights, out string) error
}

// DistortionEstimator estimates a susceptibility field from a
// distorted/undistorted pair and applies it to a series.
type DistortionEstimator interface {
	Estimate(ctx context.Context, pair, acqParams, configFile, fieldPrefix string) error
	Apply(ctx context.Context, series, acqParams, fieldPrefix string, index int, out string) error
}

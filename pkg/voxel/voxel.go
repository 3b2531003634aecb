// Package voxel provides the in-process voxelwise reductions the pipeline's
// control logic needs: temporal means, threshold masks, masked intensity
// statistics, rescaling, and ensemble averaging. Everything operates on flat
// float64 volumes loaded through pkg/nifti.
package voxel

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"boldprep/internal/models"
	"boldprep/pkg/nifti"
)

// TemporalMean reduces a 4D series to the voxelwise mean across frames.
// A 3D input is returned as an identical copy, which makes the operator
// idempotent: the mean of a mean is itself.
func TemporalMean(img *nifti.Image) (*nifti.Image, error) {
	switch img.Hdr.NDim() {
	case 3:
		return img.Clone(), nil
	case 4:
		// fall through
	default:
		return nil, &models.ValidationError{
			Reason: fmt.Sprintf("temporal mean requires a 3D or 4D volume, got %dD", img.Hdr.NDim()),
		}
	}

	frames := img.Hdr.Frames()
	size := img.FrameSize()

	out := img.SpatialClone()
	for i := 0; i < size; i++ {
		sum := 0.0
		for t := 0; t < frames; t++ {
			sum += img.Data[t*size+i]
		}
		out.Data[i] = sum / float64(frames)
	}
	return out, nil
}

// ThresholdMask returns a binary mask of the voxels with value >= thr.
// The comparison is inclusive: a voxel exactly at the threshold is in.
func ThresholdMask(img *nifti.Image, thr float64) *nifti.Image {
	out := img.SpatialClone()
	for i, v := range img.Data[:len(out.Data)] {
		if v >= thr {
			out.Data[i] = 1
		}
	}
	return out
}

// NonzeroMask returns the binarized nonzero support of a volume. Used when
// the structural input is trusted to be already skull-stripped.
func NonzeroMask(img *nifti.Image) *nifti.Image {
	out := img.SpatialClone()
	for i, v := range img.Data[:len(out.Data)] {
		if v != 0 {
			out.Data[i] = 1
		}
	}
	return out
}

// MeanWithin computes the mean intensity of img over the nonzero voxels of
// mask. An empty mask leaves the mean undefined and is surfaced as a
// ComputationError rather than a NaN that would poison later scaling.
func MeanWithin(img, mask *nifti.Image) (float64, error) {
	if img.FrameSize() != mask.FrameSize() {
		return 0, &models.ComputationError{
			Reason: fmt.Sprintf("mask grid %v does not match volume grid %v",
				mask.Hdr.SpatialDims(), img.Hdr.SpatialDims()),
		}
	}

	var vals []float64
	for i := 0; i < mask.FrameSize(); i++ {
		if mask.Data[i] != 0 {
			vals = append(vals, img.Data[i])
		}
	}

	if len(vals) == 0 {
		return 0, &models.ComputationError{Reason: "mask is empty, masked mean is undefined"}
	}

	return stat.Mean(vals, nil), nil
}

// Scale multiplies every voxel by factor, returning a new volume.
func Scale(img *nifti.Image, factor float64) *nifti.Image {
	out := img.Clone()
	floats.Scale(factor, out.Data)
	return out
}

// Fold pairs an ensemble fold index with its loaded prediction volume.
type Fold struct {
	Index int
	Img   *nifti.Image
}

// MeanAcross reduces the fold predictions to their voxelwise arithmetic
// mean. Accumulation always walks ascending fold index, so permuting the
// input slice cannot move the floating-point rounding and the result is
// bit-identical for any ordering of the same folds.
func MeanAcross(folds []Fold) (*nifti.Image, error) {
	if len(folds) == 0 {
		return nil, &models.ComputationError{Reason: "no volumes to average"}
	}

	sorted := make([]Fold, len(folds))
	copy(sorted, folds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	n := len(sorted[0].Img.Data)
	for _, f := range sorted {
		if f.Img.Hdr.NDim() != 3 {
			return nil, &models.ValidationError{
				Reason: fmt.Sprintf("fold %d prediction is %dD, expected 3D", f.Index, f.Img.Hdr.NDim()),
			}
		}
		if len(f.Img.Data) != n {
			return nil, &models.ComputationError{
				Reason: fmt.Sprintf("fold %d volume size differs: %d vs %d voxels", f.Index, len(f.Img.Data), n),
			}
		}
	}

	out := sorted[0].Img.SpatialClone()
	for _, f := range sorted {
		floats.Add(out.Data, f.Img.Data)
	}
	floats.Scale(1/float64(len(sorted)), out.Data)
	return out, nil
}

// ConcatFrames stacks two 3D volumes into a two-frame 4D series on the
// first volume's grid. This builds the distorted/undistorted pair the
// susceptibility-field estimator consumes.
func ConcatFrames(a, b *nifti.Image) (*nifti.Image, error) {
	if a.Hdr.NDim() != 3 || b.Hdr.NDim() != 3 {
		return nil, &models.ValidationError{
			Reason: fmt.Sprintf("frame concat requires two 3D volumes, got %dD and %dD", a.Hdr.NDim(), b.Hdr.NDim()),
		}
	}
	if a.FrameSize() != b.FrameSize() {
		return nil, &models.ValidationError{
			Reason: fmt.Sprintf("frame grids differ: %v vs %v", a.Hdr.SpatialDims(), b.Hdr.SpatialDims()),
		}
	}

	out := &nifti.Image{Hdr: a.Hdr, ByteOrder: a.ByteOrder}
	out.Hdr.Dim[0] = 4
	out.Hdr.Dim[4] = 2
	out.Data = make([]float64, 2*a.FrameSize())
	copy(out.Data, a.Data)
	copy(out.Data[a.FrameSize():], b.Data)
	return out, nil
}

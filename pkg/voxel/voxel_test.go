package voxel

import (
	"math"
	"math/rand"
	"testing"

	"boldprep/pkg/nifti"
)

// make3D builds a 3D image with the given voxel values.
func make3D(nx, ny, nz int, fill func(i int) float64) *nifti.Image {
	img := &nifti.Image{}
	img.Hdr.Dim[0] = 3
	img.Hdr.Dim[1] = int16(nx)
	img.Hdr.Dim[2] = int16(ny)
	img.Hdr.Dim[3] = int16(nz)
	img.Hdr.Dim[4] = 1
	img.Data = make([]float64, nx*ny*nz)
	for i := range img.Data {
		img.Data[i] = fill(i)
	}
	return img
}

// make4D builds a 4D series where frame t is fill(i, t).
func make4D(nx, ny, nz, nt int, fill func(i, t int) float64) *nifti.Image {
	img := &nifti.Image{}
	img.Hdr.Dim[0] = 4
	img.Hdr.Dim[1] = int16(nx)
	img.Hdr.Dim[2] = int16(ny)
	img.Hdr.Dim[3] = int16(nz)
	img.Hdr.Dim[4] = int16(nt)
	size := nx * ny * nz
	img.Data = make([]float64, size*nt)
	for t := 0; t < nt; t++ {
		for i := 0; i < size; i++ {
			img.Data[t*size+i] = fill(i, t)
		}
	}
	return img
}

// TestTemporalMean verifies the voxelwise mean across frames.
func TestTemporalMean(t *testing.T) {
	img := make4D(2, 2, 2, 4, func(i, t int) float64 {
		return float64(i) + float64(t)
	})

	mean, err := TemporalMean(img)
	if err != nil {
		t.Fatalf("TemporalMean failed: %v", err)
	}

	if mean.Hdr.NDim() != 3 {
		t.Errorf("mean NDim = %d, want 3", mean.Hdr.NDim())
	}

	// frames are i, i+1, i+2, i+3 so the mean is i+1.5
	for i, v := range mean.Data {
		want := float64(i) + 1.5
		if math.Abs(v-want) > 1e-12 {
			t.Errorf("mean voxel %d = %f, want %f", i, v, want)
		}
	}
}

// TestTemporalMeanIdempotent verifies that re-averaging a mean yields
// itself: a 3D input passes through as an identical copy.
func TestTemporalMeanIdempotent(t *testing.T) {
	img := make4D(3, 3, 2, 5, func(i, t int) float64 {
		return rand.New(rand.NewSource(int64(i*7 + t))).Float64()
	})

	once, err := TemporalMean(img)
	if err != nil {
		t.Fatalf("first TemporalMean failed: %v", err)
	}
	twice, err := TemporalMean(once)
	if err != nil {
		t.Fatalf("second TemporalMean failed: %v", err)
	}

	for i := range once.Data {
		if once.Data[i] != twice.Data[i] {
			t.Fatalf("voxel %d differs after re-averaging: %f != %f", i, once.Data[i], twice.Data[i])
		}
	}
}

// TestTemporalMeanRejectsBadDim verifies dimensionality is validated.
func TestTemporalMeanRejectsBadDim(t *testing.T) {
	img := make3D(2, 2, 2, func(i int) float64 { return 0 })
	img.Hdr.Dim[0] = 5

	if _, err := TemporalMean(img); err == nil {
		t.Error("TemporalMean of 5D volume succeeded, want error")
	}
}

// TestThresholdMaskInclusive verifies the boundary behavior at the
// white-matter cutoff: exactly 0.99 is in, 0.989999 is out.
func TestThresholdMaskInclusive(t *testing.T) {
	vals := []float64{0.0, 0.5, 0.989999, 0.99, 0.995, 1.0}
	img := make3D(len(vals), 1, 1, func(i int) float64 { return vals[i] })

	mask := ThresholdMask(img, 0.99)

	want := []float64{0, 0, 0, 1, 1, 1}
	for i := range want {
		if mask.Data[i] != want[i] {
			t.Errorf("mask[%d] = %v for value %v, want %v", i, mask.Data[i], vals[i], want[i])
		}
	}
}

// TestNonzeroMask verifies the binarized support used on skull-stripped
// input.
func TestNonzeroMask(t *testing.T) {
	vals := []float64{0, -3, 0.001, 0, 42}
	img := make3D(len(vals), 1, 1, func(i int) float64 { return vals[i] })

	mask := NonzeroMask(img)

	want := []float64{0, 1, 1, 0, 1}
	for i := range want {
		if mask.Data[i] != want[i] {
			t.Errorf("mask[%d] = %v for value %v, want %v", i, mask.Data[i], vals[i], want[i])
		}
	}
}

// TestMaskedMeanRescaleRoundTrip verifies the intensity-normalization
// property: after rescaling so the masked mean maps to 110, recomputing the
// masked mean on the output yields 110.
func TestMaskedMeanRescaleRoundTrip(t *testing.T) {
	img := make3D(4, 4, 4, func(i int) float64 { return float64(i%13) + 1 })
	mask := ThresholdMask(img, 7)

	mean, err := MeanWithin(img, mask)
	if err != nil {
		t.Fatalf("MeanWithin failed: %v", err)
	}

	scaled := Scale(img, 110/mean)

	got, err := MeanWithin(scaled, mask)
	if err != nil {
		t.Fatalf("MeanWithin on rescaled volume failed: %v", err)
	}
	if math.Abs(got-110) > 1e-9 {
		t.Errorf("masked mean after rescale = %f, want 110", got)
	}
}

// TestMeanWithinEmptyMask verifies an empty mask is surfaced as an error,
// never a NaN scaling factor.
func TestMeanWithinEmptyMask(t *testing.T) {
	img := make3D(2, 2, 2, func(i int) float64 { return 1 })
	mask := make3D(2, 2, 2, func(i int) float64 { return 0 })

	if _, err := MeanWithin(img, mask); err == nil {
		t.Error("MeanWithin with empty mask succeeded, want error")
	}
}

// TestMeanAcrossOrderIndependent verifies permuting the fold inputs yields
// a bit-identical ensemble mean: the reduction is keyed by fold index, so
// the accumulation order never follows the slice order.
func TestMeanAcrossOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var folds []Fold
	for k := 1; k <= 5; k++ {
		folds = append(folds, Fold{
			Index: k,
			Img:   make3D(3, 3, 3, func(i int) float64 { return rng.Float64() }),
		})
	}

	forward, err := MeanAcross(folds)
	if err != nil {
		t.Fatalf("MeanAcross failed: %v", err)
	}

	perm := []Fold{folds[3], folds[0], folds[4], folds[2], folds[1]}
	permuted, err := MeanAcross(perm)
	if err != nil {
		t.Fatalf("MeanAcross of permuted folds failed: %v", err)
	}

	for i := range forward.Data {
		if forward.Data[i] != permuted.Data[i] {
			t.Fatalf("ensemble mean voxel %d depends on fold order: %v != %v",
				i, forward.Data[i], permuted.Data[i])
		}
	}

	// the input slice itself must not be reordered
	for i, want := range []int{1, 2, 3, 4, 5} {
		if folds[i].Index != want {
			t.Fatalf("input slice mutated: fold %d at position %d", folds[i].Index, i)
		}
	}
}

// TestMeanAcrossRejectsNonSpatialFold verifies a malformed 4D fold output
// is surfaced as an error rather than a length-mismatch panic.
func TestMeanAcrossRejectsNonSpatialFold(t *testing.T) {
	folds := []Fold{
		{Index: 1, Img: make3D(2, 2, 2, func(i int) float64 { return 1 })},
		{Index: 2, Img: make4D(2, 2, 2, 3, func(i, t int) float64 { return 1 })},
	}

	if _, err := MeanAcross(folds); err == nil {
		t.Error("MeanAcross with a 4D fold succeeded, want error")
	}
}

// TestConcatFrames verifies the distorted/undistorted pair layout.
func TestConcatFrames(t *testing.T) {
	a := make3D(2, 2, 1, func(i int) float64 { return float64(i) })
	b := make3D(2, 2, 1, func(i int) float64 { return float64(i) + 100 })

	pair, err := ConcatFrames(a, b)
	if err != nil {
		t.Fatalf("ConcatFrames failed: %v", err)
	}

	if pair.Hdr.NDim() != 4 || pair.Hdr.Frames() != 2 {
		t.Fatalf("pair is %dD with %d frames, want 4D with 2", pair.Hdr.NDim(), pair.Hdr.Frames())
	}

	for i := 0; i < 4; i++ {
		if pair.Data[i] != a.Data[i] {
			t.Errorf("frame 0 voxel %d = %f, want %f", i, pair.Data[i], a.Data[i])
		}
		if pair.Data[4+i] != b.Data[i] {
			t.Errorf("frame 1 voxel %d = %f, want %f", i, pair.Data[4+i], b.Data[i])
		}
	}

	mismatched := make3D(3, 2, 1, func(i int) float64 { return 0 })
	if _, err := ConcatFrames(a, mismatched); err == nil {
		t.Error("ConcatFrames of mismatched grids succeeded, want error")
	}
}

package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"boldprep/pkg/xfm"
)

// RegistrationSchedule is the multi-resolution schedule for the linear
// atlas registration: coarse-to-fine shrink factors, matched smoothing
// scales in voxels, and a per-level iteration budget with an early-stopping
// tolerance.
type RegistrationSchedule struct {
	ShrinkFactors   []int   `yaml:"shrinkFactors"`
	SmoothingSigmas []int   `yaml:"smoothingSigmas"`
	Iterations      []int   `yaml:"iterations"`
	Tolerance       float64 `yaml:"tolerance"`
}

// DefaultRegistrationSchedule returns the pipeline's fixed schedule.
func DefaultRegistrationSchedule() RegistrationSchedule {
	return RegistrationSchedule{
		ShrinkFactors:   []int{8, 4, 2, 1},
		SmoothingSigmas: []int{3, 2, 1, 0},
		Iterations:      []int{1000, 500, 250, 100},
		Tolerance:       1e-6,
	}
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "x")
}

// ANTs shells out to the ANTs suite for bias-field correction, the
// two-stage linear atlas registration, and chained resampling.
type ANTs struct {
	Runner *Runner

	N4           string // bias-field correction
	Registration string // staged registration
	ApplyXfm     string // chained resampling

	Schedule RegistrationSchedule
	Threads  int
}

// NewANTs returns an ANTs suite bound to the default binary names on PATH.
func NewANTs(runner *Runner, threads int) *ANTs {
	return &ANTs{
		Runner:       runner,
		N4:           "N4BiasFieldCorrection",
		Registration: "antsRegistration",
		ApplyXfm:     "antsApplyTransforms",
		Schedule:     DefaultRegistrationSchedule(),
		Threads:      threads,
	}
}

// env carries the thread bound into every ANTs invocation. The suite has no
// thread flag; it reads the ITK variable instead.
func (a *ANTs) env() []string {
	return []string{fmt.Sprintf("ITK_GLOBAL_DEFAULT_NUMBER_OF_THREADS=%d", a.Threads)}
}

// Correct removes the bias field from a structural volume.
func (a *ANTs) Correct(ctx context.Context, in, out string) error {
	return a.Runner.RunEnv(ctx, "bias correction", a.env(), a.N4,
		"-d", "3", "-i", in, "-o", out)
}

// Register runs the two-stage linear registration into the atlas: rigid
// alignment initialized from image moments, then affine refinement, both
// under a mutual-information metric on the multi-resolution schedule. No
// deformable stage follows; downstream inference expects a normalized but
// unwarped space.
func (a *ANTs) Register(ctx context.Context, moving, reference, outTransform string) error {
	s := a.Schedule
	iters := fmt.Sprintf("[%s,%g]", joinInts(s.Iterations), s.Tolerance)
	shrink := joinInts(s.ShrinkFactors)
	smooth := joinInts(s.SmoothingSigmas) + "vox"
	metric := fmt.Sprintf("MI[%s,%s,1,32,Regular,0.25]", reference, moving)

	args := []string{
		"--dimensionality", "3",
		"--output", outTransform,
		"--write-composite-transform", "1",
		"--initial-moving-transform", fmt.Sprintf("[%s,%s,1]", reference, moving),

		"--transform", "Rigid[0.1]",
		"--metric", metric,
		"--convergence", iters,
		"--shrink-factors", shrink,
		"--smoothing-sigmas", smooth,

		"--transform", "Affine[0.1]",
		"--metric", metric,
		"--convergence", iters,
		"--shrink-factors", shrink,
		"--smoothing-sigmas", smooth,
	}

	return a.Runner.RunEnv(ctx, "atlas registration", a.env(), a.Registration, args...)
}

// Resample moves a volume through a transform chain onto the reference grid
// in one interpolation. The kernel is the same cubic B-spline for every
// resampling in the pipeline; mixing kernels between the forward and
// inverse directions would reintroduce interpolation artifacts
// asymmetrically.
func (a *ANTs) Resample(ctx context.Context, in, reference, out string, chain []xfm.Step) error {
	args := []string{
		"-d", "3",
		"-i", in,
		"-r", reference,
		"-o", out,
		"-n", "BSpline[3]",
	}
	for _, step := range chain {
		if step.Invert {
			args = append(args, "-t", fmt.Sprintf("[%s,1]", step.Path))
		} else {
			args = append(args, "-t", step.Path)
		}
	}

	return a.Runner.RunEnv(ctx, "resampling", a.env(), a.ApplyXfm, args...)
}

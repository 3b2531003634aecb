package tools

import (
	"context"
	"fmt"
)

// FSL shells out to the FSL suite for motion correction, segmentation,
// brain extraction, boundary-based registration, susceptibility-field
// estimation, and smoothing. Binary names are configurable so a run can
// pin a specific installation.
type FSL struct {
	Runner *Runner

	Fast      string // tissue segmentation
	MCFlirt   string // motion correction
	Bet       string // brain extraction
	Flirt     string // linear registration
	Topup     string // field estimation
	ApplyTopp string // field application
	FSLMaths  string // voxelwise maths
}

// NewFSL returns an FSL suite bound to the default binary names on PATH.
func NewFSL(runner *Runner) *FSL {
	return &FSL{
		Runner:    runner,
		Fast:      "fast",
		MCFlirt:   "mcflirt",
		Bet:       "bet",
		Flirt:     "flirt",
		Topup:     "topup",
		ApplyTopp: "applytopup",
		FSLMaths:  "fslmaths",
	}
}

// Segment runs the 3-class segmentation. fast names its partial volume maps
// pve_0..pve_2 ordered CSF, GM, WM.
func (f *FSL) Segment(ctx context.Context, in, outPrefix string) (string, error) {
	err := f.Runner.Run(ctx, "segmentation", f.Fast,
		"-t", "1", "-n", "3", "-o", outPrefix, in)
	if err != nil {
		return "", err
	}
	return outPrefix + "_pve_2.nii.gz", nil
}

// Correct realigns a 4D series and produces its registered mean alongside.
func (f *FSL) Correct(ctx context.Context, in, out string) (string, error) {
	err := f.Runner.Run(ctx, "motion correction", f.MCFlirt,
		"-in", in, "-out", out, "-meanvol")
	if err != nil {
		return "", err
	}
	return trimNII(out) + "_mean_reg.nii.gz", nil
}

// Extract estimates a brain mask from a structural volume.
func (f *FSL) Extract(ctx context.Context, in, outPrefix string) (string, error) {
	err := f.Runner.Run(ctx, "brain extraction", f.Bet, in, outPrefix, "-m", "-R")
	if err != nil {
		return "", err
	}
	return outPrefix + "_mask.nii.gz", nil
}

// Register estimates the functional-to-structural transform with the
// boundary-based cost, driven by the white-matter segmentation.
func (f *FSL) Register(ctx context.Context, moving, reference, wmSeg, outMat string) error {
	return f.Runner.Run(ctx, "cross-modal registration", f.Flirt,
		"-in", moving,
		"-ref", reference,
		"-wmseg", wmSeg,
		"-cost", "bbr",
		"-dof", "6",
		"-omat", outMat)
}

// Estimate fits the susceptibility field from the two-frame pair.
func (f *FSL) Estimate(ctx context.Context, pair, acqParams, configFile, fieldPrefix string) error {
	return f.Runner.Run(ctx, "field estimation", f.Topup,
		"--imain="+pair,
		"--datain="+acqParams,
		"--config="+configFile,
		"--out="+fieldPrefix,
		"--fout="+fieldPrefix+"_field",
		"--iout="+fieldPrefix+"_unwarped")
}

// Apply resamples a series through the estimated field with Jacobian
// intensity modulation, using the given acquisition row as reference.
func (f *FSL) Apply(ctx context.Context, series, acqParams, fieldPrefix string, index int, out string) error {
	return f.Runner.Run(ctx, "field application", f.ApplyTopp,
		"--imain="+series,
		"--datain="+acqParams,
		fmt.Sprintf("--inindex=%d", index),
		"--topup="+fieldPrefix,
		"--method=jac",
		"--out="+out)
}

// Smooth applies Gaussian smoothing with sigma in millimeters.
func (f *FSL) Smooth(ctx context.Context, in, out string, sigma float64) error {
	return f.Runner.Run(ctx, "smoothing", f.FSLMaths,
		in, "-s", fmt.Sprintf("%g", sigma), out)
}

// trimNII strips a .nii/.nii.gz suffix so derived names can be attached.
func trimNII(path string) string {
	for _, suf := range []string{".nii.gz", ".nii"} {
		if len(path) > len(suf) && path[len(path)-len(suf):] == suf {
			return path[:len(path)-len(suf)]
		}
	}
	return path
}

package pipeline

import "fmt"

// Fixed artifact names under the run's output directory. Every stage writes
// new artifacts and never rewrites another stage's output, so the names
// double as the run's dataflow record.
const (
	artBOLDWork = "BOLD_d.nii.gz" // working copy of the functional input
	artT1Work   = "T1.nii.gz"     // working copy of the structural input

	artBOLDMC   = "BOLD_mc.nii.gz" // motion-corrected functional series
	artBOLDMean = "BOLD_3D.nii.gz" // functional 3D mean

	artT1Bias    = "T1_bias.nii.gz"    // bias-corrected structural volume
	artSegPrefix = "T1_seg"            // tissue segmentation output prefix
	artWMMask    = "T1_wm_mask.nii.gz" // high-purity white-matter mask
	artT1Norm    = "T1_norm.nii.gz"    // intensity-normalized structural volume
	artT1Mask    = "T1_mask.nii.gz"    // brain mask

	artFuncToStructMat = "func2struct.mat"     // registration matrix, FSL convention
	artFuncToStructITK = "func2struct_itk.txt" // same transform, reconciled
	artStructToAtlas   = "struct2atlas.txt"    // composed linear atlas transform

	artT1NormAtlas   = "T1_norm_atlas.nii.gz" // normalized structural in atlas space
	artBOLDMeanAtlas = "BOLD_3D_atlas.nii.gz" // functional mean in atlas space

	artSynthAtlas    = "BOLD_s_atlas.nii.gz"  // ensemble prediction in atlas space
	artSynthNative   = "BOLD_s.nii.gz"        // ensemble prediction in native functional space
	artSynthSmoothed = "BOLD_s_smooth.nii.gz" // conditioned synthesized volume

	artPair          = "BOLD_pair.nii.gz" // distorted/undistorted two-frame pair
	artAcqParams     = "acqparams.txt"    // acquisition-parameters record
	artTopupPrefix   = "topup"            // field-estimation output prefix
	artCorrected     = "BOLD_u.nii.gz"    // distortion-corrected series
	artCorrectedMean = "BOLD_u_3D.nii.gz" // corrected 3D mean

	// LogFileName is the combined run log within the output directory.
	LogFileName = "pipeline.log"
)

// foldArtifact names the prediction of one ensemble fold.
func foldArtifact(k int) string {
	return fmt.Sprintf("BOLD_s_fold_%d.nii.gz", k)
}

// Package pipeline orchestrates the processing of one subject: input
// normalization, structural normalization, masking, cross-modal and atlas
// alignment, ensemble inference, and optional susceptibility-distortion
// correction. The imaging algorithms themselves live behind the pkg/tools
// interfaces; this package owns the control flow that decides which of them
// run, in what order, on what.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"boldprep/internal/models"
	"boldprep/pkg/config"
	"boldprep/pkg/tools"
	"boldprep/pkg/xfm"
)

// Params holds everything a run needs: the resolved configuration, the
// deployment settings, the validated input paths, and the output directory.
type Params struct {
	Config   *config.RunConfiguration
	Settings *config.Settings
	Inputs   *config.Inputs
	OutDir   string
	Log      *logrus.Logger
}

// Toolset bundles the external collaborators. Production runs wire the real
// suites via NewToolset; tests substitute deterministic fakes.
type Toolset struct {
	Bias          tools.BiasCorrector
	Segment       tools.Segmenter
	Motion        tools.MotionCorrector
	Extract       tools.BrainExtractor
	Register      tools.Registrar
	AtlasRegister tools.AtlasRegistrar
	Resample      tools.Resampler
	Smooth        tools.Smoother
	Predict       tools.Predictor
	Distortion    tools.DistortionEstimator
}

// NewToolset wires the default external suites using the deployment
// settings. The thread bound is threaded in explicitly here rather than
// read from the environment inside any stage.
func NewToolset(runner *tools.Runner, settings *config.Settings) *Toolset {
	fsl := tools.NewFSL(runner)
	ants := tools.NewANTs(runner, settings.Processing.Threads)
	ants.Schedule = settings.Registration

	return &Toolset{
		Bias:          ants,
		Segment:       fsl,
		Motion:        fsl,
		Extract:       fsl,
		Register:      fsl,
		AtlasRegister: ants,
		Resample:      ants,
		Smooth:        fsl,
		Predict: &tools.ModelRunner{
			Runner:  runner,
			Command: settings.Model.Command,
			Threads: settings.Processing.Threads,
		},
		Distortion: fsl,
	}
}

// Pipeline runs the stages for one subject. Derived volumes and transforms
// are created once, never mutated, and persist in the output directory as
// inputs to later stages.
type Pipeline struct {
	params *Params
	tools  *Toolset
	log    *logrus.Logger

	// discovered during input normalization
	phase    models.PhaseEncoding
	origEven bool

	// working copies and derived artifacts
	boldPath string
	t1Path   string
	mcPath   string
	meanPath string

	biasPath   string
	normPath   string
	wmMaskPath string
	maskPath   string

	composer      *xfm.Composer
	atlasRefPath  string
	t1AtlasPath   string
	boldAtlasPath string

	synthPath string
}

// New creates a pipeline for one subject.
func New(params *Params, toolset *Toolset) *Pipeline {
	return &Pipeline{params: params, tools: toolset, log: params.Log}
}

// Run executes the full pipeline. The first error aborts the run; every
// stage's success is a hard precondition for the next.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := os.MkdirAll(p.params.OutDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	p.logConfiguration()

	p.log.Info("Step 1: Normalizing functional input...")
	if err := p.normalizeInput(ctx); err != nil {
		return fmt.Errorf("input normalization failed: %w", err)
	}

	p.log.Info("Step 2: Normalizing structural volume...")
	if err := p.normalizeStructural(ctx); err != nil {
		return fmt.Errorf("structural normalization failed: %w", err)
	}

	p.log.Info("Step 3: Producing brain mask...")
	if err := p.provideMask(ctx); err != nil {
		return fmt.Errorf("mask provider failed: %w", err)
	}

	p.log.Info("Step 4: Aligning functional to structural space...")
	if err := p.alignCrossModal(ctx); err != nil {
		return fmt.Errorf("cross-modal alignment failed: %w", err)
	}

	p.log.Info("Step 5: Aligning structural to atlas space...")
	if err := p.alignAtlas(ctx); err != nil {
		return fmt.Errorf("atlas alignment failed: %w", err)
	}

	p.log.Info("Step 6: Resampling volumes into atlas space...")
	if err := p.resampleToAtlas(ctx); err != nil {
		return fmt.Errorf("atlas resampling failed: %w", err)
	}

	p.log.Info("Step 7: Running ensemble inference...")
	if err := p.runEnsemble(ctx); err != nil {
		return fmt.Errorf("ensemble inference failed: %w", err)
	}

	p.log.Info("Step 8: Conditioning synthesized volume...")
	if err := p.conditionOutput(ctx); err != nil {
		return fmt.Errorf("output conditioning failed: %w", err)
	}

	if p.params.Config.TopupEnabled {
		p.log.Info("Step 9: Correcting susceptibility distortion...")
		if err := p.correctDistortion(ctx); err != nil {
			return fmt.Errorf("distortion correction failed: %w", err)
		}
	} else {
		p.log.Info("Step 9: Distortion correction disabled, skipping")
	}

	p.log.Info("Pipeline completed successfully")
	return nil
}

// logConfiguration records every resolved configuration value in the run
// log before any processing starts.
func (p *Pipeline) logConfiguration() {
	cfg := p.params.Config
	p.log.Infof("topup enabled: %v", cfg.TopupEnabled)
	p.log.Infof("motion corrected: %v", cfg.MotionCorrected)
	p.log.Infof("skull stripped: %v", cfg.SkullStripped)
	p.log.Infof("custom config: %v", cfg.CustomConfig)
	p.log.Infof("smoothing enabled: %v", cfg.SmoothingEnabled)
	p.log.Infof("bias correction enabled: %v", cfg.BiasCorrectionEnabled)
	p.log.Infof("total readout time: %g", cfg.TotalReadoutTime)
	p.log.Infof("T1 volume: %s", p.params.Inputs.T1Path)
	p.log.Infof("BOLD volume: %s", p.params.Inputs.BOLDPath)
	p.log.Infof("output directory: %s", p.params.OutDir)
}

// out returns the path of a named artifact in the output directory.
func (p *Pipeline) out(name string) string {
	return filepath.Join(p.params.OutDir, name)
}

// copyFile duplicates a file byte for byte.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// NewLogger builds the combined run logger writing to stdout and the log
// file in the output directory. Progress, diagnostics, and errors all go
// through this one channel.
func NewLogger(outDir string) (*logrus.Logger, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(outDir, LogFileName))
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}

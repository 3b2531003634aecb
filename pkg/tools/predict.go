package tools

import (
	"context"
	"strconv"
)

// ModelRunner invokes the trained predictive model of one ensemble fold as
// an external inference command. Each fold differs only in its weights
// file; the command is otherwise identical and stateless, so folds can run
// concurrently.
type ModelRunner struct {
	Runner *Runner

	// Command is the inference entry point
	Command string

	// Threads bounds the intra-fold compute; passed explicitly rather
	// than read from the environment inside the tool
	Threads int
}

// Predict runs one fold: normalized structural and distorted functional
// volumes in atlas space plus fold weights in, one predicted volume out.
func (m *ModelRunner) Predict(ctx context.Context, structural, functional, weights, out string) error {
	return m.Runner.Run(ctx, "inference", m.Command,
		"--t1", structural,
		"--bold", functional,
		"--weights", weights,
		"--threads", strconv.Itoa(m.Threads),
		"--out", out)
}

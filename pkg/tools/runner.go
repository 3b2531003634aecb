package tools

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"boldprep/internal/models"
)

// Runner executes external commands, mirroring every command line and its
// combined output into the run log. A nonzero exit becomes a
// ComputationError carrying the failing stage name.
type Runner struct {
	Log *logrus.Logger
}

// Run executes one blocking external command.
func (r *Runner) Run(ctx context.Context, stage, name string, args ...string) error {
	return r.RunEnv(ctx, stage, nil, name, args...)
}

// RunEnv executes one blocking external command with extra environment
// variables appended to the inherited environment.
func (r *Runner) RunEnv(ctx context.Context, stage string, env []string, name string, args ...string) error {
	r.Log.WithField("stage", stage).Infof("exec: %s %s", name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		r.Log.WithField("stage", stage).Info(strings.TrimRight(string(out), "\n"))
	}
	if err != nil {
		return &models.ComputationError{
			Stage:  stage,
			Reason: name + " failed: " + err.Error(),
		}
	}
	return nil
}

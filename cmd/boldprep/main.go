package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"boldprep/pkg/config"
	"boldprep/pkg/pipeline"
	"boldprep/pkg/tools"
)

func main() {
	cfg, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Help {
		fmt.Print(config.Usage)
		return
	}

	// Validate inputs before the output directory exists, so a misconfigured
	// run leaves no artifacts behind.
	inputs, err := config.ResolveInputs(cfg, cfg.InputDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := pipeline.NewLogger(cfg.OutputDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("================================")
	fmt.Println("BOLDPREP: DISTORTION CORRECTION OF FUNCTIONAL VOLUMES BY SYNTHESIZED FIELD MAPS")
	fmt.Println("================================")

	runner := &tools.Runner{Log: log}
	toolset := pipeline.NewToolset(runner, settings)
	p := pipeline.New(&pipeline.Params{
		Config:   cfg,
		Settings: settings,
		Inputs:   inputs,
		OutDir:   cfg.OutputDir,
		Log:      log,
	}, toolset)

	startTime := time.Now()
	if err := p.Run(context.Background()); err != nil {
		log.Errorf("Pipeline failed: %v", err)
		os.Exit(1)
	}

	log.Infof("Pipeline completed in %.2f seconds", time.Since(startTime).Seconds())
}

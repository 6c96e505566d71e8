// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/winforge/winforge/internal/build"
	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/config"
	"github.com/winforge/winforge/internal/platform"
	"github.com/winforge/winforge/internal/secret"
	"github.com/winforge/winforge/internal/vm"
)

// defaultConfigPath is used when no --config flag is given.
const defaultConfigPath = "winforge.yaml"

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from file.
	loadConfigFile = config.LoadFile

	// newProvider constructs the virtualization backend.
	newProvider = platform.NewProvider

	// runPipeline executes the build pipeline.
	runPipeline = build.Run
)

// Build runs the full image build pipeline for the configured image.
//
// The workflow:
//  1. Loads and validates the build configuration
//  2. Constructs the configured virtualization backend
//  3. Runs the pipeline: validation, provision, install, capture, teardown
//  4. On failure, invokes the registered cleanup actions so no orphaned
//     VMs or mounts survive
func Build(ctx context.Context, configPath string, showConsole bool) error {
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if showConsole {
		cfg.ShowConsole = true
	}

	registry := cleanup.NewRegistry(nil)
	timeouts := config.LoadTimeouts()
	provider, err := newProvider(cfg.Backend, platform.ProviderOptions{
		Registry:         registry,
		VMRoot:           cfg.WorkDir,
		StartPollTimeout: timeouts.StartPoll,
		StopPollTimeout:  timeouts.StopPoll,
		GuestRunTimeout:  timeouts.GuestRun,
		RetryMaxAttempts: timeouts.RetryMaxAttempts,
		RetryDelay:       timeouts.RetryDelay,
	})
	if err != nil {
		return err
	}

	log.Printf("[Build] Building image %s on %s", cfg.ImageName, cfg.Backend)
	bctx := build.NewContext(cfg, provider, registry, nil)
	bctx.Timeouts = timeouts
	bctx.Password = &secret.RandomSource{}
	if err := runPipeline(ctx, bctx); err != nil {
		if vm.IsConfigurationError(err) {
			return fmt.Errorf("configuration rejected: %w", err)
		}
		return err
	}

	log.Printf("[Build] Image %s built: %s", cfg.ImageName, bctx.State.DiskPath)
	return nil
}

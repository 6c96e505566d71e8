package build

import (
	"context"
	"fmt"
	"time"
)

// Phase is one stage of an image build. Phases run in order; the first
// failure aborts the pipeline.
type Phase interface {
	Name() string
	Run(ctx context.Context, bctx *Context) error
}

// RunPhases executes the given phases in order against the shared build
// context, logging the duration of each. On failure the remaining phases are
// skipped and the error is returned wrapped with the failing phase's name.
func RunPhases(ctx context.Context, bctx *Context, phases ...Phase) error {
	start := time.Now()
	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline canceled before phase %q: %w", phase.Name(), err)
		}
		printf(bctx.Observer, "[Build] Phase %d/%d: %s", i+1, len(phases), phase.Name())
		phaseStart := time.Now()
		if err := phase.Run(ctx, bctx); err != nil {
			printf(bctx.Observer, "[Build] Phase %s failed after %s: %v", phase.Name(), time.Since(phaseStart).Round(time.Second), err)
			return fmt.Errorf("phase %s: %w", phase.Name(), err)
		}
		printf(bctx.Observer, "[Build] Phase %s completed in %s", phase.Name(), time.Since(phaseStart).Round(time.Second))
	}
	printf(bctx.Observer, "[Build] All phases completed in %s", time.Since(start).Round(time.Second))
	return nil
}

// DefaultPhases returns the standard build pipeline: validate the
// environment, provision the build machine, run installation, capture the
// image, and tear the machine down.
func DefaultPhases() []Phase {
	return []Phase{
		&ValidationPhase{},
		&ProvisionPhase{},
		&InstallPhase{},
		&CapturePhase{},
		&TeardownPhase{},
	}
}

// Run executes the default pipeline. If any phase fails, registered cleanup
// actions are invoked before the error is returned so no orphaned machines
// or mounts survive a failed build.
func Run(ctx context.Context, bctx *Context) error {
	err := RunPhases(ctx, bctx, DefaultPhases()...)
	if err != nil && bctx.Registry != nil && bctx.Registry.Len() > 0 {
		printf(bctx.Observer, "[Build] Build failed, cleaning up %d tracked resource(s)", bctx.Registry.Len())
		summary := bctx.Registry.InvokeAll(context.WithoutCancel(ctx), "build failed")
		printf(bctx.Observer, "[Build] Cleanup finished: %d succeeded, %d failed", summary.Succeeded, summary.Failed)
	}
	return err
}

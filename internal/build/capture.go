package build

import (
	"context"
	"fmt"

	"github.com/winforge/winforge/internal/vm"
)

// CapturePhase boots the installed machine from the capture media and waits
// for the capture tooling in the guest to finish and power off. The phase is
// a no-op when no capture media is configured.
type CapturePhase struct{}

// Name implements Phase.
func (p *CapturePhase) Name() string { return "Capture" }

// Run implements Phase.
func (p *CapturePhase) Run(ctx context.Context, bctx *Context) error {
	if bctx.Config.CaptureISO == "" {
		printf(bctx.Observer, "[Capture] No capture media configured, skipping")
		return nil
	}
	info := bctx.State.VM
	if info == nil {
		return fmt.Errorf("no build VM provisioned")
	}

	// The machine must be off before media can be swapped; the install
	// phase guarantees that, but a forced stop covers a restarted guest.
	if state, err := bctx.Provider.GetVMState(ctx, info); err == nil && state == vm.StateRunning {
		printf(bctx.Observer, "[Capture] VM still running, stopping before media swap")
		if err := bctx.Provider.StopVM(ctx, info, false); err != nil {
			return fmt.Errorf("stopping VM before capture: %w", err)
		}
	}

	printf(bctx.Observer, "[Capture] Attaching capture media %s", bctx.Config.CaptureISO)
	if err := bctx.Provider.AttachISO(ctx, info, bctx.Config.CaptureISO); err != nil {
		return fmt.Errorf("attaching capture media: %w", err)
	}

	result, err := bctx.Provider.StartVM(ctx, info, bctx.Config.ShowConsole)
	if err != nil {
		return fmt.Errorf("starting capture run: %w", err)
	}
	bctx.State.CaptureResult = result

	if result != vm.StartResultCompleted {
		printf(bctx.Observer, "[Capture] Capture running, waiting up to %s for guest shutdown", bctx.Timeouts.GuestRun)
		if err := waitForShutdown(ctx, bctx, bctx.Timeouts.GuestRun); err != nil {
			return fmt.Errorf("waiting for capture to finish: %w", err)
		}
	}

	if err := bctx.Provider.DetachISO(ctx, info); err != nil {
		printf(bctx.Observer, "[Capture] Warning: failed to detach capture media: %v", err)
	}

	bctx.State.Captured = true
	printf(bctx.Observer, "[Capture] Image captured from %s", info.Name)
	return nil
}

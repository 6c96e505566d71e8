package vmware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/winforge/winforge/internal/platform/run"
	"github.com/winforge/winforge/internal/vm"
)

// canceledSignature is the failure text Workstation emits when a headless
// start trips over an incompatible guest feature (3D acceleration, virtual
// TPM via encryption). The remedy is a windowed retry.
const canceledSignature = "operation was canceled"

// StartVM implements vm.Provider.
//
// The default mode is headless. A windowed start is used when the caller
// asks for a visible console, or as a fallback after a headless failure with
// the "operation was canceled" signature.
//
// The two modes have fundamentally different return semantics. Headless
// start returns immediately, so success is confirmed by polling for the VM
// process; absence after the poll window is a genuine failure. Windowed
// start blocks until the guest shuts itself down, so success with no VM
// process afterwards means the guest started, ran to completion and shut
// down during the wait — reported as StartResultCompleted, never as a
// startup failure.
func (p *Provider) StartVM(ctx context.Context, info *vm.Info, showConsole bool) (vm.StartResult, error) {
	if showConsole {
		return p.startWindowed(ctx, info)
	}

	err := p.startHeadless(ctx, info)
	if err == nil {
		return vm.StartResultRunning, nil
	}

	if strings.Contains(strings.ToLower(err.Error()), canceledSignature) {
		p.logf("[VMware] Headless start of %q was canceled by the backend, retrying windowed", info.Name)
		return p.startWindowed(ctx, info)
	}
	return "", err
}

// startHeadless issues a non-blocking start and confirms it by polling the
// process table.
func (p *Provider) startHeadless(ctx context.Context, info *vm.Info) error {
	p.logf("[VMware] Starting %q headless", info.Name)
	if _, err := p.runner.Run(ctx, p.vmrun("start", info.ConfigPath, "nogui")); err != nil {
		return fmt.Errorf("headless start of %q failed: %w", info.Name, err)
	}

	deadline := time.Now().Add(p.startPollTimeout)
	for {
		found, err := p.isProcessRunning(ctx, info.ConfigPath)
		if err == nil && found {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("vm %q reported started but its process never appeared within %v", info.Name, p.startPollTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
}

// startWindowed issues a blocking start with a visible console. The command
// does not return until the guest shuts down (or the early-return case where
// the session detaches while the VM keeps running).
func (p *Provider) startWindowed(ctx context.Context, info *vm.Info) (vm.StartResult, error) {
	p.logf("[VMware] Starting %q windowed (blocks until guest shutdown)", info.Name)

	cmd := p.vmrun("start", info.ConfigPath, "gui")
	cmd.Timeout = p.guestRunTimeout
	if _, err := p.runner.Run(ctx, cmd); err != nil {
		return "", fmt.Errorf("windowed start of %q failed: %w", info.Name, err)
	}

	found, err := p.isProcessRunning(ctx, info.ConfigPath)
	if err != nil {
		p.logf("[VMware] Could not confirm process state after windowed start of %q: %v", info.Name, err)
		found = false
	}
	if found {
		// Rare early return: the start command came back while the VM
		// kept running.
		return vm.StartResultRunning, nil
	}

	p.logf("[VMware] Windowed start of %q returned with no VM process: guest ran to completion", info.Name)
	return vm.StartResultCompleted, nil
}

// StopVM implements vm.Provider. force means immediate power-off; otherwise
// a graceful guest shutdown is requested.
func (p *Provider) StopVM(ctx context.Context, info *vm.Info, force bool) error {
	mode := "soft"
	if force {
		mode = "hard"
	}

	p.logf("[VMware] Stopping %q (%s)", info.Name, mode)
	if _, err := p.runner.Run(ctx, p.vmrun("stop", info.ConfigPath, mode)); err != nil {
		// Stopping an already stopped VM is not a failure.
		state, stateErr := p.GetVMState(ctx, info)
		if stateErr == nil && state == vm.StateOff {
			return nil
		}
		return fmt.Errorf("failed to stop %q: %w", info.Name, err)
	}

	if err := p.waitForState(ctx, info, vm.StateOff, p.stopPollTimeout); err != nil {
		return fmt.Errorf("stop of %q did not settle: %w", info.Name, err)
	}
	return nil
}

// RemoveVM implements vm.Provider.
func (p *Provider) RemoveVM(ctx context.Context, info *vm.Info, removeDisks bool) error {
	state, err := p.GetVMState(ctx, info)
	if err == nil && state == vm.StateRunning {
		if err := p.StopVM(ctx, info, true); err != nil {
			return fmt.Errorf("failed to stop %q before removal: %w", info.Name, err)
		}
	}

	p.logf("[VMware] Deleting %q", info.Name)
	if _, err := p.runner.Run(ctx, p.vmrun("deleteVM", info.ConfigPath)); err != nil {
		// deleteVM fails when the descriptor is already gone; removal by
		// artifact deletion below still applies.
		p.logf("[VMware] deleteVM for %q failed, falling back to artifact removal: %v", info.Name, err)
		if removeErr := os.Remove(info.ConfigPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %q: %w", info.Name, err)
		}
	}

	if removeDisks {
		if err := os.RemoveAll(p.vmDir(info.Name)); err != nil {
			return fmt.Errorf("failed to remove vm directory for %q: %w", info.Name, err)
		}
	}
	return nil
}

// GetVMIPAddress implements vm.Provider. An address the guest has not
// reported yet is returned as empty, not as an error.
func (p *Provider) GetVMIPAddress(ctx context.Context, info *vm.Info) (string, error) {
	result, err := p.runner.Run(ctx, p.vmrun("getGuestIPAddress", info.ConfigPath))
	if err != nil {
		var cmdErr *run.CommandError
		if errors.As(err, &cmdErr) {
			// vmrun reports "unable to get the IP address" through a
			// tool error, which just means no address yet.
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}

package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/winforge/winforge/internal/vm"
)

// InstallPhase boots the machine from the installer media and waits for the
// unattended installation to shut the guest down.
type InstallPhase struct{}

// Name implements Phase.
func (p *InstallPhase) Name() string { return "Install" }

// Run implements Phase.
func (p *InstallPhase) Run(ctx context.Context, bctx *Context) error {
	info := bctx.State.VM
	if info == nil {
		return fmt.Errorf("no build VM provisioned")
	}

	result, err := bctx.Provider.StartVM(ctx, info, bctx.Config.ShowConsole)
	if err != nil {
		return fmt.Errorf("starting installation: %w", err)
	}
	bctx.State.InstallResult = result

	if result == vm.StartResultCompleted {
		// A console-visible run blocks until guest shutdown, so the
		// installation already finished during StartVM.
		printf(bctx.Observer, "[Install] Installation ran to completion in the console session")
		return nil
	}

	printf(bctx.Observer, "[Install] Installation running, waiting up to %s for guest shutdown", bctx.Timeouts.GuestRun)
	if err := waitForShutdown(ctx, bctx, bctx.Timeouts.GuestRun); err != nil {
		return fmt.Errorf("waiting for installation to finish: %w", err)
	}
	printf(bctx.Observer, "[Install] Guest shut down, installation finished")
	return nil
}

// waitForShutdown polls the machine state until it is observed Off. An
// indeterminate observation is logged and polling continues; the machine
// never being observed Off within the timeout is a failure.
// pollInterval paces the shutdown polls; shortened in tests.
var pollInterval = vm.PollInterval

func waitForShutdown(ctx context.Context, bctx *Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastLogged := time.Now()
	for {
		state, err := bctx.Provider.GetVMState(ctx, bctx.State.VM)
		switch {
		case err != nil && errors.Is(err, vm.ErrStateIndeterminate):
			printf(bctx.Observer, "[Build] VM state indeterminate, continuing to poll")
		case err != nil:
			return fmt.Errorf("checking VM state: %w", err)
		case state == vm.StateOff:
			return nil
		}

		if time.Since(lastLogged) >= time.Minute {
			printf(bctx.Observer, "[Build] Still waiting for guest shutdown (state %s, %s left)",
				state, time.Until(deadline).Round(time.Second))
			lastLogged = time.Now()
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("guest did not shut down within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

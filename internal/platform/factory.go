// Package platform selects and constructs virtualization backends.
package platform

import (
	"fmt"
	"time"

	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/platform/hyperv"
	"github.com/winforge/winforge/internal/platform/run"
	"github.com/winforge/winforge/internal/platform/vmware"
	"github.com/winforge/winforge/internal/vm"
)

// ProviderOptions carries the dependencies every backend shares.
type ProviderOptions struct {
	Runner   run.Runner
	Registry *cleanup.Registry
	Log      func(format string, v ...any)

	// VMRoot is the base directory for VM artifacts.
	VMRoot string

	// InstallPath overrides backend install-path discovery where the
	// backend has one (VMware Workstation).
	InstallPath string

	// Poll windows and retry schedule, usually from config.LoadTimeouts.
	// Zero values fall back to backend defaults.
	StartPollTimeout time.Duration
	StopPollTimeout  time.Duration
	GuestRunTimeout  time.Duration
	RetryMaxAttempts int
	RetryDelay       time.Duration
}

// NewProvider constructs the provider for a backend-name configuration
// value. There is no type hierarchy beyond the vm.Provider boundary.
func NewProvider(backend string, opts ProviderOptions) (vm.Provider, error) {
	switch vm.Kind(backend) {
	case vm.KindHyperV:
		return hyperv.New(hyperv.Options{
			Runner:           opts.Runner,
			Registry:         opts.Registry,
			Log:              opts.Log,
			VMRoot:           opts.VMRoot,
			StartPollTimeout: opts.StartPollTimeout,
			StopPollTimeout:  opts.StopPollTimeout,
			RetryMaxAttempts: opts.RetryMaxAttempts,
			RetryDelay:       opts.RetryDelay,
		}), nil
	case vm.KindVMware:
		return vmware.New(vmware.Options{
			Runner:           opts.Runner,
			Registry:         opts.Registry,
			Log:              opts.Log,
			VMRoot:           opts.VMRoot,
			InstallPath:      opts.InstallPath,
			StartPollTimeout: opts.StartPollTimeout,
			StopPollTimeout:  opts.StopPollTimeout,
			GuestRunTimeout:  opts.GuestRunTimeout,
			RetryMaxAttempts: opts.RetryMaxAttempts,
			RetryDelay:       opts.RetryDelay,
		}), nil
	default:
		return nil, fmt.Errorf("unknown virtualization backend %q (expected %q or %q)", backend, vm.KindHyperV, vm.KindVMware)
	}
}

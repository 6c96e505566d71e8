// Package hyperv implements the build-VM provider backed by Hyper-V, the
// natively integrated hypervisor with a reliable first-party management
// surface. Management goes through PowerShell cmdlets with JSON output; the
// registration held by the Virtual Machine Management Service is treated as
// authoritative, unlike the desktop backend where artifacts on disk are the
// only identity.
package hyperv

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/platform/run"
	"github.com/winforge/winforge/internal/vm"
)

const (
	defaultStopPollTimeout  = 2 * time.Minute
	defaultStartPollTimeout = 90 * time.Second
	defaultRetryAttempts    = 3
	defaultRetryDelay       = 5 * time.Second
)

// Options configures the provider.
type Options struct {
	// Runner executes powershell invocations. Nil means a real subprocess
	// runner.
	Runner run.Runner

	// Registry receives cleanup obligations for resources this provider
	// acquires. Nil disables registration.
	Registry *cleanup.Registry

	// Log is the message sink. Nil falls back to the standard logger.
	Log func(format string, v ...any)

	// VMRoot is the base directory for VM artifact paths.
	VMRoot string

	StartPollTimeout time.Duration
	StopPollTimeout  time.Duration

	// RetryMaxAttempts and RetryDelay tune the executor wrapped around
	// best-effort operations such as TPM enablement.
	RetryMaxAttempts int
	RetryDelay       time.Duration
}

// Provider drives Hyper-V through its management cmdlets.
type Provider struct {
	sh       *shell
	registry *cleanup.Registry
	logf     func(format string, v ...any)
	vmroot   string

	startPollTimeout time.Duration
	stopPollTimeout  time.Duration
	pollInterval     time.Duration
	retryAttempts    int
	retryDelay       time.Duration
}

// New constructs a Provider.
func New(opts Options) *Provider {
	logf := opts.Log
	if logf == nil {
		logf = log.Printf
	}
	runner := opts.Runner
	if runner == nil {
		runner = run.NewExecRunner()
	}

	p := &Provider{
		sh:               &shell{runner: runner, logf: logf},
		registry:         opts.Registry,
		logf:             logf,
		vmroot:           opts.VMRoot,
		startPollTimeout: opts.StartPollTimeout,
		stopPollTimeout:  opts.StopPollTimeout,
		pollInterval:     vm.PollInterval,
		retryAttempts:    opts.RetryMaxAttempts,
		retryDelay:       opts.RetryDelay,
	}
	if p.startPollTimeout <= 0 {
		p.startPollTimeout = defaultStartPollTimeout
	}
	if p.stopPollTimeout <= 0 {
		p.stopPollTimeout = defaultStopPollTimeout
	}
	if p.retryAttempts <= 0 {
		p.retryAttempts = defaultRetryAttempts
	}
	if p.retryDelay <= 0 {
		p.retryDelay = defaultRetryDelay
	}
	return p
}

// Name implements vm.Provider.
func (p *Provider) Name() vm.Kind { return vm.KindHyperV }

// Capabilities implements vm.Provider.
func (p *Provider) Capabilities() vm.Capabilities {
	return vm.Capabilities{
		SupportsTPM:           true,
		SupportsSecureBoot:    true,
		SupportsDynamicMemory: true,
		SupportsSnapshots:     true,
		DiskFormats:           map[vm.DiskFormat]bool{vm.DiskFormatVHDX: true},
		MaxMemoryBytes:        1 << 40,
		MaxProcessors:         64,
	}
}

// ValidateConfiguration implements vm.Provider.
func (p *Provider) ValidateConfiguration(cfg *vm.Configuration) vm.ValidationResult {
	return vm.Validate(cfg, p.Capabilities())
}

// TestAvailable implements vm.Provider.
func (p *Provider) TestAvailable(ctx context.Context) bool {
	return p.GetAvailabilityDetails(ctx).IsAvailable
}

// GetAvailabilityDetails implements vm.Provider. The probe checks that the
// Virtual Machine Management Service is present and running; it never
// attempts a VM operation.
func (p *Provider) GetAvailabilityDetails(ctx context.Context) vm.AvailabilityDetails {
	details := vm.AvailabilityDetails{}

	var service struct {
		Status string `json:"Status"`
	}
	err := p.sh.runJSON(ctx, `Get-Service vmms | Select-Object @{Name='Status';Expression={$_.Status.ToString()}}`, &service)
	switch {
	case errors.Is(err, errEmptyResult) || err != nil:
		details.Issues = append(details.Issues, "Hyper-V management service (vmms) not found; is the Hyper-V feature enabled?")
	case service.Status != "Running":
		details.Issues = append(details.Issues, fmt.Sprintf("Hyper-V management service is %s, not Running", service.Status))
	default:
		details.IsAvailable = true
	}

	details.Details = "Hyper-V via vmms service probe"
	return details
}

// psVM mirrors the JSON shape of a Get-VM query.
type psVM struct {
	Name  string `json:"Name"`
	ID    string `json:"Id"`
	State string `json:"State"`
	Path  string `json:"Path"`
}

// GetVM implements vm.Provider. Hyper-V holds a real registration, so lookup
// is a management query rather than an artifact scan.
func (p *Provider) GetVM(ctx context.Context, name string) (*vm.Info, error) {
	var result psVM
	script := fmt.Sprintf(
		`Get-VM -Name %s -ErrorAction SilentlyContinue | Select-Object Name, @{Name='Id';Expression={$_.Id.ToString()}}, @{Name='State';Expression={$_.State.ToString()}}, Path`,
		psQuote(name))
	if err := p.sh.runJSON(ctx, script, &result); err != nil {
		if errors.Is(err, errEmptyResult) {
			return nil, fmt.Errorf("vm %q: %w", name, vm.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query vm %q: %w", name, err)
	}
	if result.Name == "" {
		return nil, fmt.Errorf("vm %q: %w", name, vm.ErrNotFound)
	}

	info := &vm.Info{
		Name:       result.Name,
		ID:         result.ID,
		Hypervisor: vm.KindHyperV,
		State:      mapState(result.State),
		ConfigPath: result.Path,
	}

	var disk struct {
		Path string `json:"Path"`
	}
	diskScript := fmt.Sprintf(`Get-VMHardDiskDrive -VMName %s | Select-Object -First 1 Path`, psQuote(name))
	if err := p.sh.runJSON(ctx, diskScript, &disk); err == nil {
		info.DiskPath = disk.Path
	}
	return info, nil
}

// GetVMState implements vm.Provider.
func (p *Provider) GetVMState(ctx context.Context, info *vm.Info) (vm.State, error) {
	var result struct {
		State string `json:"State"`
	}
	script := fmt.Sprintf(
		`Get-VM -Name %s -ErrorAction SilentlyContinue | Select-Object @{Name='State';Expression={$_.State.ToString()}}`,
		psQuote(info.Name))
	if err := p.sh.runJSON(ctx, script, &result); err != nil {
		if errors.Is(err, errEmptyResult) {
			return vm.StateUnknown, fmt.Errorf("vm %q: %w", info.Name, vm.ErrNotFound)
		}
		return vm.StateUnknown, fmt.Errorf("failed to query state of %q: %w", info.Name, err)
	}
	return mapState(result.State), nil
}

// mapState converts a Hyper-V state name to the closed enum.
func mapState(state string) vm.State {
	switch strings.ToLower(state) {
	case "off":
		return vm.StateOff
	case "running":
		return vm.StateRunning
	case "paused":
		return vm.StatePaused
	case "saved":
		return vm.StateSaved
	default:
		return vm.StateUnknown
	}
}

// GetVMIPAddress implements vm.Provider. Returns the first IPv4 address the
// guest has reported, or "" when there is none yet.
func (p *Provider) GetVMIPAddress(ctx context.Context, info *vm.Info) (string, error) {
	var result struct {
		IPAddresses []string `json:"IPAddresses"`
	}
	script := fmt.Sprintf(
		`Get-VMNetworkAdapter -VMName %s | Select-Object -First 1 IPAddresses`,
		psQuote(info.Name))
	if err := p.sh.runJSON(ctx, script, &result); err != nil {
		if errors.Is(err, errEmptyResult) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query addresses of %q: %w", info.Name, err)
	}

	for _, addr := range result.IPAddresses {
		if !strings.Contains(addr, ":") {
			return addr, nil
		}
	}
	return "", nil
}

// waitForState polls until the VM settles into want or the window elapses.
func (p *Provider) waitForState(ctx context.Context, info *vm.Info, want vm.State, window time.Duration) error {
	deadline := time.Now().Add(window)
	for {
		state, err := p.GetVMState(ctx, info)
		if err == nil && state == want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("vm %q did not reach state %s within %v", info.Name, want, window)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
}

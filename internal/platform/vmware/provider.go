// Package vmware implements the build-VM provider backed by VMware
// Workstation.
//
// Workstation has no reliable VM registration and its own query tooling can
// be broken by version skew, so the provider never trusts a single source of
// truth: identity is the .vmx descriptor path, lookups scan for matching
// artifacts, and state detection layers three independent signals (process
// table, `vmrun list`, runtime-file lock probe).
package vmware

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/platform/run"
	"github.com/winforge/winforge/internal/util/retry"
	"github.com/winforge/winforge/internal/vm"
)

const (
	defaultStartPollTimeout = 90 * time.Second
	defaultStopPollTimeout  = 2 * time.Minute

	// defaultGuestRunTimeout bounds a windowed start, which blocks for as
	// long as the guest OS runs.
	defaultGuestRunTimeout = 12 * time.Hour

	// Drive-letter assignment races other mounts for the shared letter
	// pool, so it gets a few attempts with growing delays.
	defaultMountAttempts = 3
	defaultMountDelay    = 2 * time.Second
	defaultMountDelayCap = 10 * time.Second
	defaultMountBackoff  = 2.0
)

// installPathCandidates are the default Workstation install locations probed
// when no explicit install path is configured.
var installPathCandidates = []string{
	`C:\Program Files (x86)\VMware\VMware Workstation`,
	`C:\Program Files\VMware\VMware Workstation`,
}

// vmProcess is one row of the process-table scan.
type vmProcess struct {
	PID         int
	CommandLine string
}

// Options configures the provider.
type Options struct {
	// Runner executes backend command lines. Nil means a real subprocess
	// runner.
	Runner run.Runner

	// Registry receives cleanup obligations for resources this provider
	// acquires. Nil disables registration.
	Registry *cleanup.Registry

	// Log is the message sink. Nil falls back to the standard logger.
	Log func(format string, v ...any)

	// InstallPath overrides Workstation install-path discovery.
	InstallPath string

	// VMRoot is the directory under which VM artifact directories are
	// resolved by name.
	VMRoot string

	StartPollTimeout time.Duration
	StopPollTimeout  time.Duration
	GuestRunTimeout  time.Duration

	// RetryMaxAttempts and RetryDelay tune the drive-letter assignment
	// backoff during virtual disk mounts.
	RetryMaxAttempts int
	RetryDelay       time.Duration
}

// Provider drives VMware Workstation through vmrun, vmware-vdiskmanager,
// diskpart and direct .vmx manipulation.
type Provider struct {
	runner   run.Runner
	registry *cleanup.Registry
	logf     func(format string, v ...any)

	// Probed once at construction and cached for the provider's lifetime.
	installPath      string
	vmrunPath        string
	vdiskManagerPath string
	hasVIX           bool

	vmroot string

	startPollTimeout time.Duration
	stopPollTimeout  time.Duration
	guestRunTimeout  time.Duration
	pollInterval     time.Duration

	// mountRetry is the backoff schedule for drive-letter assignment.
	mountRetry []retry.Option

	// State-detection signals, applied in strict order. Injectable so
	// tests can assert that later signals are not consulted once an
	// earlier one is conclusive.
	scanProcesses func(ctx context.Context) ([]vmProcess, error)
	listRunning   func(ctx context.Context) ([]string, error)
	probeLock     func(path string) lockState
}

// New constructs a Provider, probing tool paths and the optional VIX toolkit
// exactly once. A missing installation is not an error here; it surfaces
// through TestAvailable and GetAvailabilityDetails.
func New(opts Options) *Provider {
	p := &Provider{
		runner:           opts.Runner,
		registry:         opts.Registry,
		logf:             opts.Log,
		vmroot:           opts.VMRoot,
		startPollTimeout: opts.StartPollTimeout,
		stopPollTimeout:  opts.StopPollTimeout,
		guestRunTimeout:  opts.GuestRunTimeout,
		pollInterval:     vm.PollInterval,
	}
	if p.runner == nil {
		p.runner = run.NewExecRunner()
	}
	if p.logf == nil {
		p.logf = log.Printf
	}
	if p.startPollTimeout <= 0 {
		p.startPollTimeout = defaultStartPollTimeout
	}
	if p.stopPollTimeout <= 0 {
		p.stopPollTimeout = defaultStopPollTimeout
	}
	if p.guestRunTimeout <= 0 {
		p.guestRunTimeout = defaultGuestRunTimeout
	}

	mountAttempts := opts.RetryMaxAttempts
	if mountAttempts <= 0 {
		mountAttempts = defaultMountAttempts
	}
	mountDelay := opts.RetryDelay
	if mountDelay <= 0 {
		mountDelay = defaultMountDelay
	}
	p.mountRetry = []retry.Option{
		retry.WithMaxRetries(mountAttempts),
		retry.WithInitialDelay(mountDelay),
		retry.WithMaxDelay(defaultMountDelayCap),
		retry.WithMultiplier(defaultMountBackoff),
	}

	p.discoverInstall(opts.InstallPath)

	p.scanProcesses = p.scanProcessTable
	p.listRunning = p.vmrunList
	p.probeLock = probeLockFile

	return p
}

// discoverInstall locates the Workstation install path and its control
// tools. The supplementary VIX toolkit is probed but never required; the
// provider degrades silently to the plain command-line path when absent.
func (p *Provider) discoverInstall(override string) {
	candidates := installPathCandidates
	if override != "" {
		candidates = []string{override}
	}

	for _, dir := range candidates {
		vmrun := filepath.Join(dir, "vmrun.exe")
		if _, err := os.Stat(vmrun); err == nil {
			p.installPath = dir
			p.vmrunPath = vmrun
			break
		}
	}

	if p.vmrunPath == "" {
		if path, err := exec.LookPath("vmrun"); err == nil {
			p.vmrunPath = path
			p.installPath = filepath.Dir(path)
		}
	}

	if p.installPath != "" {
		vdisk := filepath.Join(p.installPath, "vmware-vdiskmanager.exe")
		if _, err := os.Stat(vdisk); err == nil {
			p.vdiskManagerPath = vdisk
		}
		if _, err := os.Stat(filepath.Join(p.installPath, "vmrest.exe")); err == nil {
			p.hasVIX = true
		}
	}
	if p.vdiskManagerPath == "" {
		if path, err := exec.LookPath("vmware-vdiskmanager"); err == nil {
			p.vdiskManagerPath = path
		}
	}
}

// Name implements vm.Provider.
func (p *Provider) Name() vm.Kind { return vm.KindVMware }

// Capabilities implements vm.Provider. Workstation has no virtual TPM
// without guest encryption and no secure boot on BIOS firmware; the boot
// disk must be a VMDK.
func (p *Provider) Capabilities() vm.Capabilities {
	return vm.Capabilities{
		SupportsTPM:           false,
		SupportsSecureBoot:    true,
		SupportsDynamicMemory: false,
		SupportsSnapshots:     true,
		DiskFormats:           map[vm.DiskFormat]bool{vm.DiskFormatVMDK: true},
		MaxMemoryBytes:        64 << 30,
		MaxProcessors:         16,
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

// GetAvailabilityDetails implements vm.Provider. The probe is passive: it
// checks install-path and control-tool presence only, and is distinct from
// "the first real operation failed".
func (p *Provider) GetAvailabilityDetails(_ context.Context) vm.AvailabilityDetails {
	details := vm.AvailabilityDetails{IsAvailable: true}

	if p.installPath == "" {
		details.IsAvailable = false
		details.Issues = append(details.Issues, "VMware Workstation installation not found")
	}
	if p.vmrunPath == "" {
		details.IsAvailable = false
		details.Issues = append(details.Issues, "vmrun control tool not found")
	}
	if p.vdiskManagerPath == "" {
		details.Issues = append(details.Issues, "vmware-vdiskmanager not found; VMDK provisioning unavailable")
	}

	toolkit := "absent"
	if p.hasVIX {
		toolkit = "present"
	}
	details.Details = fmt.Sprintf("install path %q, VIX toolkit %s", p.installPath, toolkit)
	return details
}

// vmDir returns the artifact directory for a VM name.
func (p *Provider) vmDir(name string) string {
	return filepath.Join(p.vmroot, name)
}

// vmxPath returns the descriptor path for a VM name.
func (p *Provider) vmxPath(name string) string {
	return filepath.Join(p.vmDir(name), name+".vmx")
}

// nvramPath returns the firmware/boot-order cache file for a VM name.
// Workstation remembers the first successfully used boot device here,
// independent of later .vmx edits.
func (p *Provider) nvramPath(name string) string {
	return filepath.Join(p.vmDir(name), name+".nvram")
}

// runtimeFilePath returns the lock/runtime-state file probed by the third
// state-detection signal.
func (p *Provider) runtimeFilePath(name string) string {
	return p.vmxPath(name) + ".lck"
}

// GetVM implements vm.Provider. Workstation offers no registration, so
// lookup scans for matching artifacts under the VM root.
func (p *Provider) GetVM(ctx context.Context, name string) (*vm.Info, error) {
	vmxPath := p.vmxPath(name)
	if _, err := os.Stat(vmxPath); err != nil {
		return nil, fmt.Errorf("vm %q: %w", name, vm.ErrNotFound)
	}

	info := &vm.Info{
		Name:       name,
		ID:         name,
		Hypervisor: vm.KindVMware,
		ConfigPath: vmxPath,
	}

	if entries, err := readVMX(vmxPath); err == nil {
		if disk, ok := vmxGet(entries, "scsi0:0.fileName"); ok {
			if !filepath.IsAbs(disk) {
				disk = filepath.Join(p.vmDir(name), disk)
			}
			info.DiskPath = disk
		}
	}

	state, err := p.GetVMState(ctx, info)
	if err != nil {
		state = vm.StateUnknown
	}
	info.State = state
	return info, nil
}

// vmrun builds a vmrun invocation with the Workstation host type.
func (p *Provider) vmrun(args ...string) run.Command {
	return run.Command{
		Path: p.vmrunPath,
		Args: append([]string{"-T", "ws"}, args...),
	}
}

// normalizePath canonicalizes a path for comparison: lower-cased,
// forward-slashed.
func normalizePath(path string) string {
	return strings.ToLower(filepath.ToSlash(strings.TrimSpace(path)))
}

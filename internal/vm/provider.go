package vm

import "context"

// Provider is the lifecycle contract every virtualization backend satisfies.
//
// All operations are synchronous and blocking. The one call with externally
// unbounded duration is StartVM with showConsole on the desktop backend,
// which blocks for as long as the guest OS runs. Every other call is a short,
// bounded wait with explicit subprocess timeouts.
type Provider interface {
	// Name returns the backend kind.
	Name() Kind

	// Capabilities returns the static capability descriptor for the
	// backend. It is used only for configuration validation.
	Capabilities() Capabilities

	// ValidateConfiguration checks cfg against the backend capability
	// descriptor. It is a pure function of cfg and the descriptor and
	// never touches the host.
	ValidateConfiguration(cfg *Configuration) ValidationResult

	// CreateVM validates cfg, provisions the disk if absent, registers
	// the VM, attaches boot media, sets boot order and applies
	// TPM/secure-boot where supported. TPM failure is non-fatal. On any
	// failure after partial creation it rolls back exactly the steps it
	// completed, then returns the error.
	CreateVM(ctx context.Context, cfg *Configuration) (*Info, error)

	// StartVM starts the VM. showConsole selects a visible session over a
	// headless one. A windowed start may legitimately return
	// StartResultCompleted when the guest ran to completion during the
	// blocking wait.
	StartVM(ctx context.Context, info *Info, showConsole bool) (StartResult, error)

	// StopVM stops the VM. force requests immediate power-off, otherwise
	// a graceful guest shutdown.
	StopVM(ctx context.Context, info *Info, force bool) error

	// RemoveVM stops the VM if running and deletes its registration and
	// artifacts. removeDisks additionally deletes the disk and the VM
	// directory.
	RemoveVM(ctx context.Context, info *Info, removeDisks bool) error

	// GetVM resolves a VM by name. Returns an error wrapping ErrNotFound
	// when no matching VM exists.
	GetVM(ctx context.Context, name string) (*Info, error)

	// GetVMState reports the observed power state. StateUnknown means no
	// detection signal was conclusive.
	GetVMState(ctx context.Context, info *Info) (State, error)

	// GetVMIPAddress returns the guest IPv4 address, or "" when the guest
	// has not reported one yet.
	GetVMIPAddress(ctx context.Context, info *Info) (string, error)

	// AttachISO attaches boot media and reorders boot devices so the VM
	// boots from it (capture/deploy boot).
	AttachISO(ctx context.Context, info *Info, isoPath string) error

	// DetachISO removes attached boot media and restores disk-first boot.
	DetachISO(ctx context.Context, info *Info) error

	// NewVirtualDisk creates a virtual disk independent of any VM.
	NewVirtualDisk(ctx context.Context, path string, format DiskFormat, sizeBytes int64) error

	// MountVirtualDisk mounts a virtual disk on the host and returns the
	// mount point (a drive letter root such as `W:\`).
	MountVirtualDisk(ctx context.Context, path string) (string, error)

	// DismountVirtualDisk detaches a previously mounted virtual disk.
	DismountVirtualDisk(ctx context.Context, path string) error

	// TestAvailable is a passive probe for backend presence (services,
	// tools, features). Callers should probe before attempting operations
	// rather than interpreting the first failed call.
	TestAvailable(ctx context.Context) bool

	// GetAvailabilityDetails reports the probe outcome with the issues
	// found.
	GetAvailabilityDetails(ctx context.Context) AvailabilityDetails
}

// Package vm defines the data model and the provider contract for build VMs.
//
// A build VM is a throwaway machine driven through an install/customize/capture
// cycle. The package is backend-agnostic: Hyper-V and VMware Workstation
// implementations live under internal/platform and satisfy [Provider].
package vm

import "time"

// Kind identifies a virtualization backend.
type Kind string

const (
	// KindHyperV is the native Hyper-V backend.
	KindHyperV Kind = "hyperv"
	// KindVMware is the VMware Workstation desktop backend.
	KindVMware Kind = "vmware"
)

// State is the observed power state of a VM.
type State string

const (
	StateOff     State = "Off"
	StateRunning State = "Running"
	StatePaused  State = "Paused"
	StateSaved   State = "Saved"
	// StateUnknown means no detection signal was conclusive. It is never
	// used as a stand-in for Off.
	StateUnknown State = "Unknown"
)

// DiskFormat is a virtual disk container format.
type DiskFormat string

const (
	DiskFormatVHDX DiskFormat = "vhdx"
	DiskFormatVMDK DiskFormat = "vmdk"
)

// Configuration fully describes a desired build VM. It is treated as
// immutable once passed to CreateVM.
type Configuration struct {
	// Name must be unique per build. For backends without a registration
	// concept it doubles as the VM identity.
	Name string

	// Path is the directory holding the VM's artifacts (descriptor files,
	// disks, NVRAM).
	Path string

	MemoryBytes   int64
	Processors    int
	DynamicMemory bool

	DiskPath      string
	DiskFormat    DiskFormat
	DiskSizeBytes int64

	// ISOPath is the boot media attached at creation, empty for none.
	ISOPath string

	// NetworkMode selects the network attachment ("nat", "bridged", or a
	// named switch via SwitchName).
	NetworkMode string
	SwitchName  string

	EnableTPM        bool
	EnableSecureBoot bool

	// Generation selects the firmware kind (1 = BIOS, 2 = UEFI).
	Generation int
}

// Capabilities are the static facts about a backend used exclusively by
// configuration validation. They are never mutated at runtime.
type Capabilities struct {
	SupportsTPM           bool
	SupportsSecureBoot    bool
	SupportsDynamicMemory bool
	SupportsSnapshots     bool
	DiskFormats           map[DiskFormat]bool
	MaxMemoryBytes        int64
	MaxProcessors         int
}

// Info is the observed handle to a created VM.
type Info struct {
	Name string

	// ID is the backend identifier. Backends without independent identity
	// (VMware Workstation) set ID equal to Name and resolve lookups by
	// scanning for matching artifacts.
	ID string

	Hypervisor Kind
	State      State

	// ConfigPath is the backend descriptor file (.vmx for VMware, empty
	// for Hyper-V where the registration is authoritative).
	ConfigPath string
	DiskPath   string
}

// StartResult reports the outcome of StartVM.
type StartResult string

const (
	// StartResultRunning means the VM was started and is running.
	StartResultRunning StartResult = "Running"

	// StartResultCompleted means a windowed (console-visible) start blocked
	// until the guest shut itself down: the VM started, ran to completion
	// and powered off during the wait. It is a success, not a failure.
	StartResultCompleted StartResult = "Completed"
)

// AvailabilityDetails is the result of the passive backend probe.
type AvailabilityDetails struct {
	IsAvailable bool
	Issues      []string
	Details     string
}

// ValidationIssue is a single configuration validation finding.
type ValidationIssue struct {
	Field    string
	Message  string
	Severity string // "error" or "warning"
}

// ValidationResult aggregates validation findings for a configuration.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// PollInterval is the default interval for state-settling polls after
// start/stop operations.
const PollInterval = 2 * time.Second

// Package config loads and validates the build configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/winforge/winforge/internal/vm"
)

// DefaultFileName is the configuration file looked up when none is given.
const DefaultFileName = "winforge.yaml"

// Config holds the application configuration.
type Config struct {
	// ImageName names the image being built; it doubles as the build VM
	// name prefix.
	ImageName string `mapstructure:"image_name" yaml:"image_name"`

	// Backend selects the virtualization backend ("hyperv" or "vmware").
	Backend string `mapstructure:"backend" yaml:"backend"`

	// WorkDir is the directory for build artifacts (VM directories,
	// disks, captured images).
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`

	// InstallerISO is the OS installation media the build VM boots first.
	InstallerISO string `mapstructure:"installer_iso" yaml:"installer_iso"`

	// CaptureISO is the boot media used for the capture boot, empty to
	// skip the capture phase.
	CaptureISO string `mapstructure:"capture_iso" yaml:"capture_iso"`

	// ShowConsole requests a visible console session for VM starts.
	ShowConsole bool `mapstructure:"show_console" yaml:"show_console"`

	VM VMConfig `mapstructure:"vm" yaml:"vm"`
}

// VMConfig holds the build VM sizing.
type VMConfig struct {
	MemoryMB      int64  `mapstructure:"memory_mb" yaml:"memory_mb"`
	Processors    int    `mapstructure:"processors" yaml:"processors"`
	DiskSizeGB    int64  `mapstructure:"disk_size_gb" yaml:"disk_size_gb"`
	DiskFormat    string `mapstructure:"disk_format" yaml:"disk_format"`
	NetworkMode   string `mapstructure:"network_mode" yaml:"network_mode"`
	SwitchName    string `mapstructure:"switch_name" yaml:"switch_name"`
	Generation    int    `mapstructure:"generation" yaml:"generation"`
	EnableTPM     bool   `mapstructure:"enable_tpm" yaml:"enable_tpm"`
	SecureBoot    bool   `mapstructure:"secure_boot" yaml:"secure_boot"`
	DynamicMemory bool   `mapstructure:"dynamic_memory" yaml:"dynamic_memory"`
}

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.VM.MemoryMB == 0 {
		c.VM.MemoryMB = 4096
	}
	if c.VM.Processors == 0 {
		c.VM.Processors = 2
	}
	if c.VM.DiskSizeGB == 0 {
		c.VM.DiskSizeGB = 64
	}
	if c.VM.DiskFormat == "" {
		if c.Backend == string(vm.KindVMware) {
			c.VM.DiskFormat = string(vm.DiskFormatVMDK)
		} else {
			c.VM.DiskFormat = string(vm.DiskFormatVHDX)
		}
	}
	if c.VM.Generation == 0 {
		c.VM.Generation = 2
	}
	if c.WorkDir == "" {
		c.WorkDir = "winforge-build"
	}
}

// Validate checks the fields the loader itself can decide on. Backend
// capability checks happen later through the provider's pure validation.
func (c *Config) Validate() error {
	if c.ImageName == "" {
		return fmt.Errorf("image_name is required")
	}
	if c.Backend == "" {
		return fmt.Errorf("backend is required (hyperv or vmware)")
	}
	if c.Backend != string(vm.KindHyperV) && c.Backend != string(vm.KindVMware) {
		return fmt.Errorf("unknown backend %q (expected hyperv or vmware)", c.Backend)
	}
	if c.InstallerISO == "" {
		return fmt.Errorf("installer_iso is required")
	}
	return nil
}

// VMName returns the build VM name for this image.
func (c *Config) VMName() string {
	return "build-" + c.ImageName
}

// VMConfiguration translates the file settings into the provider-facing
// configuration for the build VM.
func (c *Config) VMConfiguration() *vm.Configuration {
	name := c.VMName()
	vmDir := filepath.Join(c.WorkDir, name)
	diskName := name + "." + c.VM.DiskFormat

	return &vm.Configuration{
		Name:             name,
		Path:             vmDir,
		MemoryBytes:      c.VM.MemoryMB << 20,
		Processors:       c.VM.Processors,
		DynamicMemory:    c.VM.DynamicMemory,
		DiskPath:         filepath.Join(vmDir, diskName),
		DiskFormat:       vm.DiskFormat(c.VM.DiskFormat),
		DiskSizeBytes:    c.VM.DiskSizeGB << 30,
		ISOPath:          c.InstallerISO,
		NetworkMode:      c.VM.NetworkMode,
		SwitchName:       c.VM.SwitchName,
		EnableTPM:        c.VM.EnableTPM,
		EnableSecureBoot: c.VM.SecureBoot,
		Generation:       c.VM.Generation,
	}
}

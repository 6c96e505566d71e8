package vmware

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/vm"
)

// CreateVM implements vm.Provider.
//
// Validation runs first and an invalid configuration causes no side effect
// at all: no directory, no disk, no subprocess. After that the steps are
// tracked so a failure rolls back exactly what this call completed — the
// artifact directory, the descriptor and a disk this call created — before
// the error is returned.
func (p *Provider) CreateVM(ctx context.Context, cfg *vm.Configuration) (*vm.Info, error) {
	result := p.ValidateConfiguration(cfg)
	if !result.Valid {
		return nil, vm.ConfigurationErrorFrom(result)
	}
	for _, warning := range result.Warnings {
		p.logf("[VMware] Warning: %s: %s", warning.Field, warning.Message)
	}

	dir := p.vmDir(cfg.Name)
	vmxPath := p.vmxPath(cfg.Name)

	var (
		dirCreated  bool
		diskCreated bool
		vmxCreated  bool
	)
	rollback := func(cause error) {
		p.logf("[VMware] CreateVM for %q failed, rolling back completed steps: %v", cfg.Name, cause)
		if vmxCreated {
			if err := os.Remove(vmxPath); err != nil && !os.IsNotExist(err) {
				p.logf("[VMware] Rollback: failed to remove descriptor %s: %v", vmxPath, err)
			}
		}
		if diskCreated {
			if err := os.Remove(cfg.DiskPath); err != nil && !os.IsNotExist(err) {
				p.logf("[VMware] Rollback: failed to remove disk %s: %v", cfg.DiskPath, err)
			}
		}
		if dirCreated {
			if err := os.RemoveAll(dir); err != nil {
				p.logf("[VMware] Rollback: failed to remove vm directory %s: %v", dir, err)
			}
		}
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create vm directory %s: %w", dir, err)
		}
		dirCreated = true
	}

	if _, err := os.Stat(cfg.DiskPath); os.IsNotExist(err) {
		if err := p.NewVirtualDisk(ctx, cfg.DiskPath, cfg.DiskFormat, cfg.DiskSizeBytes); err != nil {
			rollback(err)
			return nil, fmt.Errorf("failed to provision disk for %q: %w", cfg.Name, err)
		}
		diskCreated = true
	}

	if err := writeVMX(vmxPath, p.descriptor(cfg)); err != nil {
		rollback(err)
		return nil, fmt.Errorf("failed to write descriptor for %q: %w", cfg.Name, err)
	}
	vmxCreated = true

	info := &vm.Info{
		Name:       cfg.Name,
		ID:         cfg.Name,
		Hypervisor: vm.KindVMware,
		State:      vm.StateOff,
		ConfigPath: vmxPath,
		DiskPath:   cfg.DiskPath,
	}

	if cfg.ISOPath != "" {
		if err := p.AttachISO(ctx, info, cfg.ISOPath); err != nil {
			rollback(err)
			return nil, fmt.Errorf("failed to attach boot media for %q: %w", cfg.Name, err)
		}
	}

	if p.registry != nil {
		name := cfg.Name
		p.registry.Register("vm "+name, cleanup.ResourceVM, vmxPath, func(ctx context.Context) error {
			stale, err := p.GetVM(ctx, name)
			if err != nil {
				return nil // already gone
			}
			return p.RemoveVM(ctx, stale, true)
		})
	}

	p.logf("[VMware] Created %q (%s)", cfg.Name, vmxPath)
	return info, nil
}

// descriptor builds the full .vmx key set for a configuration.
func (p *Provider) descriptor(cfg *vm.Configuration) map[string]string {
	memoryMB := cfg.MemoryBytes >> 20

	entries := map[string]string{
		".encoding":           "UTF-8",
		"config.version":      "8",
		"virtualHW.version":   "19",
		"displayName":         cfg.Name,
		"guestOS":             "windows9srv-64",
		"nvram":               cfg.Name + ".nvram",
		"memsize":             fmt.Sprintf("%d", memoryMB),
		"numvcpus":            fmt.Sprintf("%d", cfg.Processors),
		"scsi0.present":       "TRUE",
		"scsi0.virtualDev":    "lsisas1068",
		"scsi0:0.present":     "TRUE",
		"scsi0:0.fileName":    diskFileName(cfg, p.vmDir(cfg.Name)),
		"ethernet0.present":   "TRUE",
		"ethernet0.virtualDev": "e1000e",
		"bios.bootOrder":      "hdd",
	}

	switch cfg.NetworkMode {
	case "bridged":
		entries["ethernet0.connectionType"] = "bridged"
	case "custom":
		entries["ethernet0.connectionType"] = "custom"
		entries["ethernet0.vnet"] = cfg.SwitchName
	default:
		entries["ethernet0.connectionType"] = "nat"
	}

	if cfg.Generation == 2 {
		entries["firmware"] = "efi"
		if cfg.EnableSecureBoot {
			entries["uefi.secureBoot.enabled"] = "TRUE"
		}
	}

	if cfg.ISOPath != "" {
		entries["ide1:0.present"] = "TRUE"
		entries["ide1:0.deviceType"] = "cdrom-image"
		entries["ide1:0.fileName"] = cfg.ISOPath
		entries["ide1:0.startConnected"] = "TRUE"
	}

	return entries
}

// diskFileName stores the disk path relative to the VM directory when it
// lives inside it, the way Workstation itself writes descriptors.
func diskFileName(cfg *vm.Configuration, vmDir string) string {
	rel, err := filepath.Rel(vmDir, cfg.DiskPath)
	if err == nil && !filepath.IsAbs(rel) && rel == filepath.Base(cfg.DiskPath) {
		return rel
	}
	return cfg.DiskPath
}

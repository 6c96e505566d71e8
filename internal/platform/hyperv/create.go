package hyperv

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/util/retry"
	"github.com/winforge/winforge/internal/vm"
)

// guardianName is the HGS guardian under which key protectors for vTPM are
// issued. It is created on demand and tracked for rollback when this call
// created it.
const guardianName = "WinforgeBuildGuardian"

// CreateVM implements vm.Provider.
//
// Validation runs first with no side effects on failure. Afterwards every
// completed step is tracked, and any later failure deletes the partially
// created VM and any security-guardian artifact created for it inside this
// call's error path — not deferred to a general cleanup pass.
func (p *Provider) CreateVM(ctx context.Context, cfg *vm.Configuration) (*vm.Info, error) {
	result := p.ValidateConfiguration(cfg)
	if !result.Valid {
		return nil, vm.ConfigurationErrorFrom(result)
	}
	for _, warning := range result.Warnings {
		p.logf("[HyperV] Warning: %s: %s", warning.Field, warning.Message)
	}

	var (
		diskCreated     bool
		vmCreated       bool
		guardianCreated bool
	)
	rollback := func(cause error) {
		p.logf("[HyperV] CreateVM for %q failed, rolling back completed steps: %v", cfg.Name, cause)
		if vmCreated {
			script := fmt.Sprintf(`Remove-VM -Name %s -Force`, psQuote(cfg.Name))
			if _, err := p.sh.run(ctx, script); err != nil {
				p.logf("[HyperV] Rollback: failed to remove vm %q: %v", cfg.Name, err)
			}
		}
		if guardianCreated {
			script := fmt.Sprintf(`Remove-HgsGuardian -Name %s`, psQuote(guardianName))
			if _, err := p.sh.run(ctx, script); err != nil {
				p.logf("[HyperV] Rollback: failed to remove guardian %s: %v", guardianName, err)
			}
		}
		if diskCreated {
			if err := os.Remove(cfg.DiskPath); err != nil && !os.IsNotExist(err) {
				p.logf("[HyperV] Rollback: failed to remove disk %s: %v", cfg.DiskPath, err)
			}
		}
	}

	if _, err := os.Stat(cfg.DiskPath); os.IsNotExist(err) {
		if err := p.NewVirtualDisk(ctx, cfg.DiskPath, cfg.DiskFormat, cfg.DiskSizeBytes); err != nil {
			return nil, fmt.Errorf("failed to provision disk for %q: %w", cfg.Name, err)
		}
		diskCreated = true
	}

	generation := cfg.Generation
	if generation == 0 {
		generation = 2
	}

	createScript := fmt.Sprintf(
		`New-VM -Name %s -Path %s -MemoryStartupBytes %d -Generation %d -VHDPath %s`,
		psQuote(cfg.Name), psQuote(cfg.Path), cfg.MemoryBytes, generation, psQuote(cfg.DiskPath))
	if _, err := p.sh.run(ctx, createScript); err != nil {
		rollback(err)
		return nil, fmt.Errorf("failed to create vm %q: %w", cfg.Name, err)
	}
	vmCreated = true

	memoryMode := "-StaticMemory"
	if cfg.DynamicMemory {
		memoryMode = "-DynamicMemory"
	}
	tuneScript := fmt.Sprintf(`Set-VM -Name %s -ProcessorCount %d %s`,
		psQuote(cfg.Name), cfg.Processors, memoryMode)
	if _, err := p.sh.run(ctx, tuneScript); err != nil {
		rollback(err)
		return nil, fmt.Errorf("failed to configure vm %q: %w", cfg.Name, err)
	}

	if cfg.SwitchName != "" {
		netScript := fmt.Sprintf(`Connect-VMNetworkAdapter -VMName %s -SwitchName %s`,
			psQuote(cfg.Name), psQuote(cfg.SwitchName))
		if _, err := p.sh.run(ctx, netScript); err != nil {
			rollback(err)
			return nil, fmt.Errorf("failed to connect vm %q to switch %q: %w", cfg.Name, cfg.SwitchName, err)
		}
	}

	if cfg.ISOPath != "" {
		isoScript := fmt.Sprintf(`Add-VMDvdDrive -VMName %s -Path %s`,
			psQuote(cfg.Name), psQuote(cfg.ISOPath))
		if _, err := p.sh.run(ctx, isoScript); err != nil {
			rollback(err)
			return nil, fmt.Errorf("failed to attach boot media to %q: %w", cfg.Name, err)
		}
	}

	// Boot order is set explicitly to the primary disk and then read back,
	// because a silently ignored boot-order write manifests only as the
	// wrong OS booting, never as an error.
	if err := p.setFirstBootDevice(ctx, cfg.Name, bootDeviceDisk); err != nil {
		rollback(err)
		return nil, fmt.Errorf("failed to set boot order for %q: %w", cfg.Name, err)
	}

	if generation == 2 {
		secureBoot := "Off"
		if cfg.EnableSecureBoot {
			secureBoot = "On"
		}
		sbScript := fmt.Sprintf(`Set-VMFirmware -VMName %s -EnableSecureBoot %s`,
			psQuote(cfg.Name), secureBoot)
		if _, err := p.sh.run(ctx, sbScript); err != nil {
			rollback(err)
			return nil, fmt.Errorf("failed to configure secure boot for %q: %w", cfg.Name, err)
		}
	}

	if cfg.EnableTPM {
		// TPM failure is non-fatal: a build must not fail solely because
		// security-coprocessor emulation could not be configured. The
		// guardian flag is tracked across attempts so rollback still
		// removes a guardian a failed attempt left behind.
		_, _ = retry.Execute(ctx, "enable TPM for "+cfg.Name, func(ctx context.Context) (struct{}, error) {
			created, err := p.enableTPM(ctx, cfg.Name)
			if created {
				guardianCreated = true
			}
			return struct{}{}, err
		}, retry.Options{
			Attempts: p.retryAttempts,
			Delay:    p.retryDelay,
			Log:      p.logf,
		})
	}

	info, err := p.GetVM(ctx, cfg.Name)
	if err != nil {
		rollback(err)
		return nil, fmt.Errorf("failed to read back created vm %q: %w", cfg.Name, err)
	}
	info.DiskPath = cfg.DiskPath

	if p.registry != nil {
		name := cfg.Name
		p.registry.Register("vm "+name, cleanup.ResourceVM, info.ID, func(ctx context.Context) error {
			stale, err := p.GetVM(ctx, name)
			if err != nil {
				return nil // already gone
			}
			return p.RemoveVM(ctx, stale, true)
		})
	}

	p.logf("[HyperV] Created %q (id %s)", info.Name, info.ID)
	return info, nil
}

// enableTPM provisions a key protector under the build guardian and turns on
// the virtual TPM. It reports whether this call created the guardian so the
// caller can roll it back together with the VM.
func (p *Provider) enableTPM(ctx context.Context, name string) (guardianCreated bool, err error) {
	var guardian struct {
		Name string `json:"Name"`
	}
	lookup := fmt.Sprintf(`Get-HgsGuardian -Name %s -ErrorAction SilentlyContinue | Select-Object Name`, psQuote(guardianName))
	if err := p.sh.runJSON(ctx, lookup, &guardian); err != nil || guardian.Name == "" {
		if !errors.Is(err, errEmptyResult) && err != nil {
			return false, fmt.Errorf("failed to query guardian: %w", err)
		}
		create := fmt.Sprintf(`New-HgsGuardian -Name %s -GenerateCertificates`, psQuote(guardianName))
		if _, err := p.sh.run(ctx, create); err != nil {
			return false, fmt.Errorf("failed to create guardian: %w", err)
		}
		guardianCreated = true
	}

	protect := fmt.Sprintf(
		`$g = Get-HgsGuardian -Name %s; $kp = New-HgsKeyProtector -Owner $g -AllowUntrustedRoot; Set-VMKeyProtector -VMName %s -KeyProtector $kp.RawData; Enable-VMTPM -VMName %s`,
		psQuote(guardianName), psQuote(name), psQuote(name))
	if _, err := p.sh.run(ctx, protect); err != nil {
		return guardianCreated, fmt.Errorf("failed to enable vTPM: %w", err)
	}

	p.logf("[HyperV] Enabled vTPM for %q under guardian %s", name, guardianName)
	return guardianCreated, nil
}

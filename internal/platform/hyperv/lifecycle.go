package hyperv

import (
	"context"
	"fmt"

	"github.com/winforge/winforge/internal/vm"
)

// bootDevice selects the first-boot-device for setFirstBootDevice.
type bootDevice string

const (
	bootDeviceDisk bootDevice = "disk"
	bootDeviceDVD  bootDevice = "dvd"
)

// setFirstBootDevice writes the first boot device and then reads the
// configured value back, logging before and after. The read-back exists
// because boot-order writes can fail silently and then manifest only as the
// wrong OS booting during capture.
func (p *Provider) setFirstBootDevice(ctx context.Context, name string, device bootDevice) error {
	before := p.firstBootDevice(ctx, name)

	var selector string
	switch device {
	case bootDeviceDVD:
		selector = fmt.Sprintf(`Get-VMDvdDrive -VMName %s | Select-Object -First 1`, psQuote(name))
	default:
		selector = fmt.Sprintf(`Get-VMHardDiskDrive -VMName %s | Select-Object -First 1`, psQuote(name))
	}

	script := fmt.Sprintf(`$dev = %s; Set-VMFirmware -VMName %s -FirstBootDevice $dev`, selector, psQuote(name))
	if _, err := p.sh.run(ctx, script); err != nil {
		return fmt.Errorf("failed to set first boot device of %q to %s: %w", name, device, err)
	}

	after := p.firstBootDevice(ctx, name)
	p.logf("[HyperV] First boot device of %q: %q -> %q (requested %s)", name, before, after, device)
	return nil
}

// firstBootDevice reads the configured first boot device, best effort.
func (p *Provider) firstBootDevice(ctx context.Context, name string) string {
	var result struct {
		Device string `json:"Device"`
	}
	script := fmt.Sprintf(
		`Get-VMFirmware -VMName %s | Select-Object @{Name='Device';Expression={$_.BootOrder[0].Device.ToString()}}`,
		psQuote(name))
	if err := p.sh.runJSON(ctx, script, &result); err != nil {
		return ""
	}
	return result.Device
}

// StartVM implements vm.Provider. Hyper-V has no blocking console start:
// both modes start the VM asynchronously, and showConsole additionally opens
// a connection window. The result is therefore always Running on success.
func (p *Provider) StartVM(ctx context.Context, info *vm.Info, showConsole bool) (vm.StartResult, error) {
	p.logf("[HyperV] Starting %q", info.Name)
	script := fmt.Sprintf(`Start-VM -Name %s`, psQuote(info.Name))
	if _, err := p.sh.run(ctx, script); err != nil {
		return "", fmt.Errorf("failed to start %q: %w", info.Name, err)
	}

	if showConsole {
		connect := fmt.Sprintf(`Start-Process vmconnect -ArgumentList 'localhost', %s`, psQuote(info.Name))
		if _, err := p.sh.run(ctx, connect); err != nil {
			p.logf("[HyperV] Warning: could not open console for %q: %v", info.Name, err)
		}
	}

	if err := p.waitForState(ctx, info, vm.StateRunning, p.startPollTimeout); err != nil {
		return "", fmt.Errorf("start of %q did not settle: %w", info.Name, err)
	}
	return vm.StartResultRunning, nil
}

// StopVM implements vm.Provider.
func (p *Provider) StopVM(ctx context.Context, info *vm.Info, force bool) error {
	flag := ""
	if force {
		flag = " -TurnOff"
	}

	p.logf("[HyperV] Stopping %q (force=%t)", info.Name, force)
	script := fmt.Sprintf(`Stop-VM -Name %s -Force%s`, psQuote(info.Name), flag)
	if _, err := p.sh.run(ctx, script); err != nil {
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

	p.logf("[HyperV] Removing %q", info.Name)
	script := fmt.Sprintf(`Remove-VM -Name %s -Force`, psQuote(info.Name))
	if _, err := p.sh.run(ctx, script); err != nil {
		return fmt.Errorf("failed to remove %q: %w", info.Name, err)
	}

	if removeDisks && info.DiskPath != "" {
		del := fmt.Sprintf(`Remove-Item -Path %s -Force -ErrorAction SilentlyContinue`, psQuote(info.DiskPath))
		if _, err := p.sh.run(ctx, del); err != nil {
			return fmt.Errorf("failed to remove disk of %q: %w", info.Name, err)
		}
	}
	return nil
}

// AttachISO implements vm.Provider. Entering capture/deploy mode attaches
// the media and explicitly reorders boot to it, with the same read-back
// verification as creation.
func (p *Provider) AttachISO(ctx context.Context, info *vm.Info, isoPath string) error {
	script := fmt.Sprintf(
		`$dvd = Get-VMDvdDrive -VMName %s | Select-Object -First 1; if ($dvd) { Set-VMDvdDrive -VMName %s -Path %s } else { Add-VMDvdDrive -VMName %s -Path %s }`,
		psQuote(info.Name), psQuote(info.Name), psQuote(isoPath), psQuote(info.Name), psQuote(isoPath))
	if _, err := p.sh.run(ctx, script); err != nil {
		return fmt.Errorf("failed to attach media to %q: %w", info.Name, err)
	}

	if err := p.setFirstBootDevice(ctx, info.Name, bootDeviceDVD); err != nil {
		return err
	}

	p.logf("[HyperV] Attached %s to %q and set media-first boot", isoPath, info.Name)
	return nil
}

// DetachISO implements vm.Provider.
func (p *Provider) DetachISO(ctx context.Context, info *vm.Info) error {
	script := fmt.Sprintf(
		`Get-VMDvdDrive -VMName %s | Remove-VMDvdDrive`,
		psQuote(info.Name))
	if _, err := p.sh.run(ctx, script); err != nil {
		return fmt.Errorf("failed to detach media from %q: %w", info.Name, err)
	}

	if err := p.setFirstBootDevice(ctx, info.Name, bootDeviceDisk); err != nil {
		return err
	}

	p.logf("[HyperV] Detached boot media from %q and restored disk boot", info.Name)
	return nil
}

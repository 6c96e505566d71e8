package hyperv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/vm"
)

// NewVirtualDisk implements vm.Provider through the native New-VHD cmdlet.
func (p *Provider) NewVirtualDisk(ctx context.Context, path string, format vm.DiskFormat, sizeBytes int64) error {
	if format != vm.DiskFormatVHDX {
		return fmt.Errorf("unsupported disk format %q for the Hyper-V backend", format)
	}

	p.logf("[HyperV] Creating VHDX %s (%d bytes)", path, sizeBytes)
	script := fmt.Sprintf(`New-VHD -Path %s -SizeBytes %d -Dynamic`, psQuote(path), sizeBytes)
	if _, err := p.sh.run(ctx, script); err != nil {
		return fmt.Errorf("failed to create vhdx %s: %w", path, err)
	}
	return nil
}

// MountVirtualDisk implements vm.Provider. The mount is registered for
// cleanup so a failed build cannot leak it.
func (p *Provider) MountVirtualDisk(ctx context.Context, path string) (string, error) {
	var result struct {
		DriveLetter string `json:"DriveLetter"`
	}
	script := fmt.Sprintf(
		`$disk = Mount-VHD -Path %s -Passthru | Get-Disk; $part = $disk | Get-Partition | Where-Object DriveLetter | Select-Object -First 1; $part | Select-Object @{Name='DriveLetter';Expression={$_.DriveLetter.ToString()}}`,
		psQuote(path))
	if err := p.sh.runJSON(ctx, script, &result); err != nil {
		if errors.Is(err, errEmptyResult) {
			return "", fmt.Errorf("mounted %s but no partition received a drive letter", path)
		}
		return "", fmt.Errorf("failed to mount %s: %w", path, err)
	}

	letter := strings.TrimSpace(result.DriveLetter)
	if letter == "" {
		return "", fmt.Errorf("mounted %s but no partition received a drive letter", path)
	}
	mountPoint := letter + `:\`

	if p.registry != nil {
		p.registry.Register("mount "+path, cleanup.ResourceImageMount, path, func(ctx context.Context) error {
			return p.DismountVirtualDisk(ctx, path)
		})
	}

	p.logf("[HyperV] Mounted %s at %s", path, mountPoint)
	return mountPoint, nil
}

// DismountVirtualDisk implements vm.Provider.
func (p *Provider) DismountVirtualDisk(ctx context.Context, path string) error {
	script := fmt.Sprintf(`Dismount-VHD -Path %s`, psQuote(path))
	if _, err := p.sh.run(ctx, script); err != nil {
		return fmt.Errorf("failed to dismount %s: %w", path, err)
	}
	p.logf("[HyperV] Dismounted %s", path)
	return nil
}

package vmware

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/winforge/winforge/internal/vm"
)

// AttachISO implements vm.Provider. It switches the VM to boot from the
// given media for a capture/deploy boot.
//
// Workstation remembers the first successfully used boot device in the NVRAM
// file, independent of later descriptor edits. Failing to invalidate that
// cache makes the VM silently keep booting its previous device even after
// the descriptor says otherwise, so the cache file is deleted before the
// boot order is rewritten. After the rewrite the descriptor is re-read from
// disk and both the media path and the boot order are verified literally;
// mismatches are logged as warnings rather than silently trusted.
func (p *Provider) AttachISO(ctx context.Context, info *vm.Info, isoPath string) error {
	if err := p.invalidateBootOrderCache(info.Name); err != nil {
		return err
	}

	updates := map[string]string{
		"ide1:0.present":        "TRUE",
		"ide1:0.deviceType":     "cdrom-image",
		"ide1:0.fileName":       isoPath,
		"ide1:0.startConnected": "TRUE",
		"bios.bootOrder":        "cdrom,hdd",
	}
	if err := updateVMX(info.ConfigPath, updates); err != nil {
		return fmt.Errorf("failed to attach media to %q: %w", info.Name, err)
	}

	p.verifyDescriptor(info, map[string]string{
		"ide1:0.fileName": isoPath,
		"bios.bootOrder":  "cdrom,hdd",
	})

	p.logf("[VMware] Attached %s to %q and set cdrom-first boot", isoPath, info.Name)
	return nil
}

// DetachISO implements vm.Provider. It restores disk-first boot, again
// invalidating the boot-order cache so the change takes effect.
func (p *Provider) DetachISO(ctx context.Context, info *vm.Info) error {
	if err := p.invalidateBootOrderCache(info.Name); err != nil {
		return err
	}

	updates := map[string]string{
		"ide1:0.present":        "FALSE",
		"ide1:0.fileName":       "",
		"ide1:0.startConnected": "FALSE",
		"bios.bootOrder":        "hdd",
	}
	if err := updateVMX(info.ConfigPath, updates); err != nil {
		return fmt.Errorf("failed to detach media from %q: %w", info.Name, err)
	}

	p.verifyDescriptor(info, map[string]string{
		"bios.bootOrder": "hdd",
	})

	p.logf("[VMware] Detached boot media from %q and restored disk boot", info.Name)
	return nil
}

// invalidateBootOrderCache deletes the NVRAM file when present.
func (p *Provider) invalidateBootOrderCache(name string) error {
	nvram := p.nvramPath(name)
	err := os.Remove(nvram)
	if err == nil {
		p.logf("[VMware] Invalidated boot-order cache %s", nvram)
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to invalidate boot-order cache %s: %w", nvram, err)
}

// verifyDescriptor re-parses the descriptor from disk and checks the given
// keys for a literal match, logging warnings on mismatch.
func (p *Provider) verifyDescriptor(info *vm.Info, want map[string]string) {
	entries, err := readVMX(info.ConfigPath)
	if err != nil {
		p.logf("[VMware] Warning: could not re-read descriptor of %q for verification: %v", info.Name, err)
		return
	}
	for key, expected := range want {
		actual, ok := vmxGet(entries, key)
		if !ok || actual != expected {
			p.logf("[VMware] Warning: descriptor verification mismatch for %q: %s = %q, want %q", info.Name, key, actual, expected)
		}
	}
}

package vmware

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/platform/run"
	"github.com/winforge/winforge/internal/util/retry"
	"github.com/winforge/winforge/internal/vm"
)

// The desktop backend has no disk API of its own and the host may not have
// the Hyper-V feature enabled at all, so VHDX provisioning and mounting go
// through diskpart, and VMDK creation through vmware-vdiskmanager.

// driveLetterMu serializes drive-letter assignment across mounts. Letter
// enumeration races with OS drive enumeration, and two concurrent mounts
// must not pick the same candidate.
var driveLetterMu sync.Mutex

// driveLetterPool is the candidate pool for mount points, chosen from the
// end of the alphabet to avoid commonly assigned letters.
var driveLetterPool = []string{"W", "X", "Y", "Z", "V", "U"}

// NewVirtualDisk implements vm.Provider.
func (p *Provider) NewVirtualDisk(ctx context.Context, path string, format vm.DiskFormat, sizeBytes int64) error {
	sizeMB := sizeBytes >> 20
	if sizeMB <= 0 {
		return fmt.Errorf("disk size %d bytes is too small", sizeBytes)
	}

	switch format {
	case vm.DiskFormatVMDK:
		if p.vdiskManagerPath == "" {
			return fmt.Errorf("cannot create %s: vmware-vdiskmanager not found", path)
		}
		p.logf("[VMware] Creating VMDK %s (%d MB)", path, sizeMB)
		_, err := p.runner.Run(ctx, run.Command{
			Path: p.vdiskManagerPath,
			Args: []string{"-c", "-s", fmt.Sprintf("%dMB", sizeMB), "-a", "lsilogic", "-t", "0", path},
		})
		if err != nil {
			return fmt.Errorf("failed to create vmdk %s: %w", path, err)
		}
		return nil

	case vm.DiskFormatVHDX:
		p.logf("[VMware] Creating VHDX %s (%d MB) via diskpart", path, sizeMB)
		script := fmt.Sprintf("create vdisk file=\"%s\" maximum=%d type=expandable\n", path, sizeMB)
		if _, err := p.diskpart(ctx, script); err != nil {
			return fmt.Errorf("failed to create vhdx %s: %w", path, err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported disk format %q", format)
	}
}

// MountVirtualDisk implements vm.Provider. It attaches the disk and assigns
// a drive letter from the candidate pool, retrying with backoff because
// assignment can race with OS drive enumeration. The mount is registered for
// cleanup so a failed build cannot leak it.
func (p *Provider) MountVirtualDisk(ctx context.Context, path string) (string, error) {
	driveLetterMu.Lock()
	defer driveLetterMu.Unlock()

	attach := fmt.Sprintf("select vdisk file=\"%s\"\nattach vdisk\n", path)
	if _, err := p.diskpart(ctx, attach); err != nil {
		return "", fmt.Errorf("failed to attach %s: %w", path, err)
	}

	var mountPoint string
	err := retry.WithExponentialBackoff(ctx, func() error {
		for _, letter := range driveLetterPool {
			root := letter + `:\`
			if p.letterInUse(root) {
				continue
			}
			assign := fmt.Sprintf("select vdisk file=\"%s\"\nselect partition 1\nassign letter=%s\n", path, letter)
			if _, err := p.diskpart(ctx, assign); err != nil {
				if errors.Is(err, exec.ErrNotFound) {
					// No amount of retrying helps when diskpart itself
					// is missing from the host.
					return retry.Fatal(fmt.Errorf("diskpart unavailable: %w", err))
				}
				p.logf("[VMware] Assigning %s to %s failed, trying next letter: %v", letter, path, err)
				continue
			}
			mountPoint = root
			return nil
		}
		return fmt.Errorf("no candidate drive letter could be assigned for %s", path)
	}, p.mountRetry...)
	if err != nil {
		detach := fmt.Sprintf("select vdisk file=\"%s\"\ndetach vdisk\n", path)
		if _, detachErr := p.diskpart(ctx, detach); detachErr != nil {
			p.logf("[VMware] Warning: failed to detach %s after mount failure: %v", path, detachErr)
		}
		return "", err
	}

	if p.registry != nil {
		p.registry.Register("mount "+path, cleanup.ResourceImageMount, path, func(ctx context.Context) error {
			return p.DismountVirtualDisk(ctx, path)
		})
	}

	p.logf("[VMware] Mounted %s at %s", path, mountPoint)
	return mountPoint, nil
}

// DismountVirtualDisk implements vm.Provider.
func (p *Provider) DismountVirtualDisk(ctx context.Context, path string) error {
	script := fmt.Sprintf("select vdisk file=\"%s\"\ndetach vdisk\n", path)
	if _, err := p.diskpart(ctx, script); err != nil {
		return fmt.Errorf("failed to detach %s: %w", path, err)
	}
	p.logf("[VMware] Dismounted %s", path)
	return nil
}

// diskpart feeds a script to the diskpart tool over stdin.
func (p *Provider) diskpart(ctx context.Context, script string) (run.Result, error) {
	return p.runner.Run(ctx, run.Command{
		Path:    "diskpart",
		Stdin:   script + "exit\n",
		Timeout: 2 * time.Minute,
	})
}

// letterInUse reports whether a drive root already exists. Probe errors are
// treated as in-use so a questionable letter is never picked.
func (p *Provider) letterInUse(root string) bool {
	_, err := os.Stat(root)
	return !errors.Is(err, fs.ErrNotExist)
}

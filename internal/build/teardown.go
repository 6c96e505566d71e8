package build

import (
	"context"
	"fmt"

	"github.com/winforge/winforge/internal/cleanup"
)

// TeardownPhase removes the build machine, keeping its disk as the build
// output, and releases the cleanup entry the provider registered for it.
type TeardownPhase struct{}

// Name implements Phase.
func (p *TeardownPhase) Name() string { return "Teardown" }

// Run implements Phase.
func (p *TeardownPhase) Run(ctx context.Context, bctx *Context) error {
	info := bctx.State.VM
	if info == nil {
		return nil
	}

	printf(bctx.Observer, "[Teardown] Removing build VM %s (keeping disk %s)", info.Name, bctx.State.DiskPath)
	if err := bctx.Provider.RemoveVM(ctx, info, false); err != nil {
		return fmt.Errorf("removing build VM: %w", err)
	}

	// The VM is gone, so its compensating action must not run again on a
	// later failure. Providers register the entry under "vm "+name with the
	// backend identity (vmx path or GUID) as the resource id, so the match
	// goes by entry name.
	if bctx.Registry != nil {
		for _, entry := range bctx.Registry.Entries() {
			if entry.Resource == cleanup.ResourceVM && entry.Name == "vm "+info.Name {
				bctx.Registry.Unregister(entry.ID)
			}
		}
	}

	if bctx.State.AdminSecret != nil {
		bctx.State.AdminSecret.Destroy()
		if bctx.Registry != nil {
			for _, entry := range bctx.Registry.Entries() {
				if entry.Resource == cleanup.ResourceOther && entry.Name == "build credential" {
					bctx.Registry.Unregister(entry.ID)
				}
			}
		}
	}

	printf(bctx.Observer, "[Teardown] Build output: %s", bctx.State.DiskPath)
	return nil
}

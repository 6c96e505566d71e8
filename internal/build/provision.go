package build

import (
	"context"
	"fmt"

	"github.com/winforge/winforge/internal/cleanup"
)

// ProvisionPhase creates the build machine: boot disk, registration,
// installer media and boot order. The provider rolls back partial creation
// itself, so a failure here leaves nothing behind.
type ProvisionPhase struct{}

// Name implements Phase.
func (p *ProvisionPhase) Name() string { return "Provision" }

// Run implements Phase.
func (p *ProvisionPhase) Run(ctx context.Context, bctx *Context) error {
	cfg := bctx.Config.VMConfiguration()

	printf(bctx.Observer, "[Provision] Creating build VM %s (%d MB, %d CPUs, %s disk)",
		cfg.Name, cfg.MemoryBytes>>20, cfg.Processors, cfg.DiskFormat)

	info, err := bctx.Provider.CreateVM(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating build VM: %w", err)
	}

	bctx.State.VM = info
	bctx.State.DiskPath = cfg.DiskPath

	// Generate the temporary build-account credential here so the media
	// preparation that follows can read it exactly once. The plaintext is
	// never held outside the value; a failed build destroys it through
	// the registry, a successful one through teardown.
	if bctx.Password != nil {
		value, err := bctx.Password.New()
		if err != nil {
			return fmt.Errorf("generating build account credential: %w", err)
		}
		bctx.State.AdminSecret = value
		if bctx.Registry != nil {
			bctx.Registry.Register("build credential", cleanup.ResourceOther, cfg.Name, func(context.Context) error {
				value.Destroy()
				return nil
			})
		}
	}

	printf(bctx.Observer, "[Provision] Build VM %s ready (id %s)", info.Name, info.ID)
	return nil
}

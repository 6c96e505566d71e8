package build

import (
	"context"
	"fmt"
	"os"

	"github.com/winforge/winforge/internal/util/prerequisites"
	"github.com/winforge/winforge/internal/vm"
)

// checkPrereqs resolves host tools; replaced in tests.
var checkPrereqs = prerequisites.CheckForBackend

// ValidationPhase fails the build before anything is created when the host,
// backend, or configuration cannot support it.
type ValidationPhase struct{}

// Name implements Phase.
func (p *ValidationPhase) Name() string { return "Validation" }

// Run implements Phase.
func (p *ValidationPhase) Run(ctx context.Context, bctx *Context) error {
	cfg := bctx.Config

	results := checkPrereqs(cfg.Backend)
	for _, r := range results.Results {
		if r.Found {
			printf(bctx.Observer, "[Validation] Tool %s: %s", r.Tool.Name, r.Version)
		}
	}
	if results.HasErrors() {
		return results.Error()
	}

	if !bctx.Provider.TestAvailable(ctx) {
		details := bctx.Provider.GetAvailabilityDetails(ctx)
		return &vm.UnavailableError{Backend: bctx.Provider.Name(), Issues: details.Issues}
	}

	if _, err := os.Stat(cfg.InstallerISO); err != nil {
		return fmt.Errorf("installer ISO %s: %w", cfg.InstallerISO, err)
	}
	if cfg.CaptureISO != "" {
		if _, err := os.Stat(cfg.CaptureISO); err != nil {
			return fmt.Errorf("capture ISO %s: %w", cfg.CaptureISO, err)
		}
	}
	vmCfg := cfg.VMConfiguration()
	result := bctx.Provider.ValidateConfiguration(vmCfg)
	for _, issue := range result.Warnings {
		printf(bctx.Observer, "[Validation] Warning: %s: %s", issue.Field, issue.Message)
	}
	if err := vm.ConfigurationErrorFrom(result); err != nil {
		return err
	}

	// An existing machine with the build name means a previous run was
	// not cleaned up. Refuse rather than silently reuse it.
	if existing, err := bctx.Provider.GetVM(ctx, cfg.VMName()); err == nil && existing != nil {
		return fmt.Errorf("a virtual machine named %s already exists, remove it or run the cleanup command first", cfg.VMName())
	}

	// Only a build that passed every check gets to touch the filesystem.
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("creating work directory %s: %w", cfg.WorkDir, err)
	}

	printf(bctx.Observer, "[Validation] Environment and configuration OK")
	return nil
}

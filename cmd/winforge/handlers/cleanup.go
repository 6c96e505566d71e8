package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/config"
	"github.com/winforge/winforge/internal/platform"
	"github.com/winforge/winforge/internal/vm"
)

// Cleanup removes the build VM a previous interrupted run left behind.
// A missing VM is not an error; the command is idempotent.
func Cleanup(ctx context.Context, configPath string, removeDisks bool) error {
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	timeouts := config.LoadTimeouts()
	provider, err := newProvider(cfg.Backend, platform.ProviderOptions{
		Registry:         cleanup.NewRegistry(nil),
		VMRoot:           cfg.WorkDir,
		StartPollTimeout: timeouts.StartPoll,
		StopPollTimeout:  timeouts.StopPoll,
		GuestRunTimeout:  timeouts.GuestRun,
		RetryMaxAttempts: timeouts.RetryMaxAttempts,
		RetryDelay:       timeouts.RetryDelay,
	})
	if err != nil {
		return err
	}

	name := cfg.VMName()
	info, err := provider.GetVM(ctx, name)
	if err != nil {
		if errors.Is(err, vm.ErrNotFound) {
			log.Printf("[Cleanup] No VM named %s found, nothing to do", name)
			return nil
		}
		return fmt.Errorf("looking up VM %s: %w", name, err)
	}

	log.Printf("[Cleanup] Removing VM %s (remove disks: %v)", name, removeDisks)
	if err := provider.RemoveVM(ctx, info, removeDisks); err != nil {
		return fmt.Errorf("removing VM %s: %w", name, err)
	}
	log.Printf("[Cleanup] VM %s removed", name)
	return nil
}

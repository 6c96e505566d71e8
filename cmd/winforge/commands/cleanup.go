package commands

import (
	"github.com/spf13/cobra"

	"github.com/winforge/winforge/cmd/winforge/handlers"
)

// Cleanup returns the command for removing a leftover build VM.
//
// A build that was interrupted hard (power loss, killed process) can leave
// its VM behind. This command removes it so the next build can start clean.
//
// Optional flags:
//
//	--config, -c: Path to build configuration YAML file (default: winforge.yaml)
//	--remove-disks: Also delete the VM directory including disks
func Cleanup() *cobra.Command {
	var configPath string
	var removeDisks bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove a leftover build VM",
		Long: `Remove the build VM for the configured image.

Examples:
  # Remove the leftover VM, keeping its disks
  winforge cleanup

  # Remove the VM and everything under its directory
  winforge cleanup --remove-disks`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Cleanup(cmd.Context(), configPath, removeDisks)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: winforge.yaml)")
	cmd.Flags().BoolVar(&removeDisks, "remove-disks", false, "Also delete the VM directory including disks")

	return cmd
}

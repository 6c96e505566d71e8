package commands

import (
	"github.com/spf13/cobra"

	"github.com/winforge/winforge/cmd/winforge/handlers"
)

// Build returns the command for building a Windows image.
//
// This command drives the full build pipeline: environment validation,
// VM provisioning, unattended installation, image capture, and teardown.
//
// Optional flags:
//
//	--config, -c: Path to build configuration YAML file (default: winforge.yaml)
//	--show-console: Open a visible console window for the build VM
func Build() *cobra.Command {
	var configPath string
	var showConsole bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a Windows image from the configured installer media",
		Long: `Build a custom Windows image.

This command creates a throwaway build VM, boots it from the installer
media for an unattended installation, optionally boots it again from the
capture media, then removes the VM keeping the built disk as output.

Examples:
  # Build using winforge.yaml in the current directory
  winforge build

  # Build using a specific config file
  winforge build -c server2022.yaml

  # Watch the installation in a console window
  winforge build --show-console`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Build(cmd.Context(), configPath, showConsole)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: winforge.yaml)")
	cmd.Flags().BoolVar(&showConsole, "show-console", false, "Open a visible console window for the build VM")

	return cmd
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/winforge/winforge/cmd/winforge/handlers"
)

// Init returns the command for creating a starter build configuration.
//
// Flags:
//
//	--output, -o: Path to output file (default "winforge.yaml")
//	--backend, -b: Backend to preconfigure (hyperv or vmware)
func Init() *cobra.Command {
	var outputPath string
	var backend string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter build configuration",
		Long: `Create a starter build configuration file.

The generated file contains commented defaults for the chosen backend;
edit image_name and installer_iso before running a build.

Examples:
  # Create winforge.yaml for Hyper-V
  winforge init

  # Create a VMware Workstation configuration
  winforge init -b vmware -o vmware.yaml`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Init(outputPath, backend)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "winforge.yaml", "Output file path")
	cmd.Flags().StringVarP(&backend, "backend", "b", "hyperv", "Backend to preconfigure (hyperv or vmware)")

	return cmd
}

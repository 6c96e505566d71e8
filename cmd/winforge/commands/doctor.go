package commands

import (
	"github.com/spf13/cobra"

	"github.com/winforge/winforge/cmd/winforge/handlers"
)

// Doctor returns the command for diagnosing the build host.
//
// This command checks host tools and probes the virtualization backends,
// reporting which of them can run a build.
//
// Optional flags:
//
//	--backend, -b: Probe only the named backend (hyperv or vmware)
//	--plain: Disable styled output
func Doctor() *cobra.Command {
	var backend string
	var plain bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose host tools and backend availability",
		Long: `Diagnose the build host.

Checks that the required host tools are installed and probes each
virtualization backend for availability.

Examples:
  # Check everything
  winforge doctor

  # Check only the VMware Workstation backend
  winforge doctor -b vmware`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), backend, plain)
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "", "Probe only the named backend (hyperv or vmware)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable styled output")

	return cmd
}

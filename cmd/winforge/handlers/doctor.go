package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/winforge/winforge/internal/platform"
	"github.com/winforge/winforge/internal/ui/tui"
	"github.com/winforge/winforge/internal/util/prerequisites"
)

// Factory function variables for doctor - can be replaced in tests.
var (
	// checkBackendPrereqs runs the host tool checks.
	checkBackendPrereqs = prerequisites.CheckForBackend

	// stdoutIsTerminal reports whether stdout is a terminal.
	stdoutIsTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	// printReport writes the rendered report.
	printReport = func(s string) { fmt.Print(s) }
)

// Doctor checks host tools and probes backend availability, rendering a
// report. With backend set, only that backend is probed. Returns an error
// when no probed backend can run a build.
func Doctor(ctx context.Context, backend string, plain bool) error {
	backends := []string{"hyperv", "vmware"}
	if backend != "" {
		backends = []string{backend}
	}

	var report tui.DoctorReport

	seen := map[string]bool{}
	for _, name := range backends {
		results := checkBackendPrereqs(name)
		for _, r := range results.Results {
			if seen[r.Tool.Name] {
				continue
			}
			seen[r.Tool.Name] = true
			report.Tools = append(report.Tools, tui.ToolStatus{
				Name:       r.Tool.Name,
				Required:   r.Tool.Required,
				Found:      r.Found,
				Path:       r.Path,
				Version:    r.Version,
				InstallURL: r.Tool.InstallURL,
			})
		}

		provider, err := newProvider(name, platform.ProviderOptions{})
		if err != nil {
			return err
		}
		details := provider.GetAvailabilityDetails(ctx)
		report.Backends = append(report.Backends, tui.BackendStatus{
			Name:      name,
			Available: details.IsAvailable,
			Details:   details.Details,
			Issues:    details.Issues,
		})
	}

	if !stdoutIsTerminal() {
		plain = true
	}
	printReport(tui.RenderDoctor(report, plain))

	if !report.Healthy() {
		return fmt.Errorf("no virtualization backend is ready")
	}
	return nil
}

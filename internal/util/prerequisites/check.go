// Package prerequisites provides utilities for checking required client tools.
// The doctor command uses it to report which virtualization backends can be
// driven from this host.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// DefaultTools returns the tools every build needs regardless of backend.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "powershell",
			Required:    true,
			Description: "Required for process-table queries and Hyper-V management",
			InstallURL:  "https://learn.microsoft.com/powershell/",
		},
	}
}

// HyperVTools returns the tools needed for the Hyper-V backend.
func HyperVTools() []Tool {
	return []Tool{
		{
			Name:        "powershell",
			Required:    true,
			Description: "Required for Hyper-V cmdlet invocation",
			InstallURL:  "https://learn.microsoft.com/powershell/",
		},
	}
}

// VMwareTools returns the tools needed for the VMware Workstation backend.
func VMwareTools() []Tool {
	return []Tool{
		{
			Name:        "vmrun",
			Required:    true,
			Description: "Required for VM lifecycle control on the desktop backend",
			InstallURL:  "https://www.vmware.com/products/workstation-pro.html",
		},
		{
			Name:        "vmware-vdiskmanager",
			Required:    false,
			Description: "Useful for VMDK maintenance; disk provisioning falls back to diskpart",
			InstallURL:  "https://www.vmware.com/products/workstation-pro.html",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check verifies that the specified tools are available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := exec.LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
			// Try to get version (best effort)
			result.Version = getToolVersion(tool.Name)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// CheckForBackend checks the tools for a named backend plus the defaults.
func CheckForBackend(backend string) *CheckResults {
	tools := DefaultTools()
	switch backend {
	case "hyperv":
		tools = append(tools, HyperVTools()...)
	case "vmware":
		tools = append(tools, VMwareTools()...)
	}
	return Check(dedupe(tools))
}

func dedupe(tools []Tool) []Tool {
	seen := make(map[string]bool, len(tools))
	out := tools[:0]
	for _, tool := range tools {
		if seen[tool.Name] {
			continue
		}
		seen[tool.Name] = true
		out = append(out, tool)
	}
	return out
}

// getToolVersion attempts to get the version of a tool.
// Returns empty string if version cannot be determined.
func getToolVersion(name string) string {
	// Common version flags to try
	versionFlags := []string{"--version", "-v"}

	for _, flag := range versionFlags {
		// #nosec G204 - name comes from trusted Tool definitions, not user input
		cmd := exec.Command(name, flag)
		output, err := cmd.Output()
		if err == nil {
			// Return first line of output, trimmed
			lines := strings.Split(string(output), "\n")
			if len(lines) > 0 {
				return strings.TrimSpace(lines[0])
			}
		}
	}

	return ""
}

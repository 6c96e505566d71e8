// Package tui renders human-facing terminal output for the doctor command.
package tui

import (
	"fmt"
	"strings"
)

// ToolStatus is one host tool the doctor checked.
type ToolStatus struct {
	Name       string
	Required   bool
	Found      bool
	Path       string
	Version    string
	InstallURL string
}

// BackendStatus is one virtualization backend the doctor probed.
type BackendStatus struct {
	Name      string
	Available bool
	Details   string
	Issues    []string
}

// DoctorReport aggregates everything the doctor command found.
type DoctorReport struct {
	Tools    []ToolStatus
	Backends []BackendStatus
}

// Healthy reports whether every required tool is present and at least one
// backend is available.
func (r DoctorReport) Healthy() bool {
	for _, tool := range r.Tools {
		if tool.Required && !tool.Found {
			return false
		}
	}
	for _, backend := range r.Backends {
		if backend.Available {
			return true
		}
	}
	return false
}

// RenderDoctor renders the report. With plain set, styling is skipped so the
// output pipes cleanly.
func RenderDoctor(report DoctorReport, plain bool) string {
	style := func(s string, st interface{ Render(...string) string }) string {
		if plain {
			return s
		}
		return st.Render(s)
	}

	var b strings.Builder
	b.WriteString(style("winforge doctor", titleStyle) + "\n")

	b.WriteString(style("Host tools", sectionStyle) + "\n")
	for _, tool := range report.Tools {
		switch {
		case tool.Found:
			version := tool.Version
			if version == "" {
				version = tool.Path
			}
			b.WriteString(fmt.Sprintf("  %s %s %s\n", style(checkMark, readyStyle), tool.Name, style(version, dimStyle)))
		case tool.Required:
			b.WriteString(fmt.Sprintf("  %s %s not found, install from %s\n", style(crossMark, failedStyle), tool.Name, tool.InstallURL))
		default:
			b.WriteString(fmt.Sprintf("  %s %s not found (optional)\n", style(warnMark, warningStyle), tool.Name))
		}
	}

	b.WriteString(style("Backends", sectionStyle) + "\n")
	for _, backend := range report.Backends {
		if backend.Available {
			b.WriteString(fmt.Sprintf("  %s %s %s\n", style(checkMark, readyStyle), backend.Name, style(backend.Details, dimStyle)))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s %s unavailable\n", style(crossMark, failedStyle), backend.Name))
		for _, issue := range backend.Issues {
			b.WriteString(fmt.Sprintf("       %s\n", style(issue, dimStyle)))
		}
	}

	if report.Healthy() {
		b.WriteString("\n" + style("Ready to build images.", readyStyle) + "\n")
	} else {
		b.WriteString("\n" + style("Fix the issues above before building.", failedStyle) + "\n")
	}
	return b.String()
}

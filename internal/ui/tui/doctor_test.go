package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func healthyReport() DoctorReport {
	return DoctorReport{
		Tools: []ToolStatus{
			{Name: "powershell", Required: true, Found: true, Version: "5.1.20348"},
			{Name: "vmrun", Required: false, Found: false, InstallURL: "https://www.vmware.com/products/workstation-pro.html"},
		},
		Backends: []BackendStatus{
			{Name: "hyperv", Available: true, Details: "vmms running"},
			{Name: "vmware", Available: false, Issues: []string{"vmrun not found"}},
		},
	}
}

func TestDoctorReport_Healthy(t *testing.T) {
	t.Parallel()

	assert.True(t, healthyReport().Healthy())
}

func TestDoctorReport_UnhealthyWhenRequiredToolMissing(t *testing.T) {
	t.Parallel()

	report := healthyReport()
	report.Tools[0].Found = false
	assert.False(t, report.Healthy())
}

func TestDoctorReport_UnhealthyWithoutBackends(t *testing.T) {
	t.Parallel()

	report := healthyReport()
	report.Backends[0].Available = false
	assert.False(t, report.Healthy())
}

func TestRenderDoctor_Plain(t *testing.T) {
	t.Parallel()

	out := RenderDoctor(healthyReport(), true)

	assert.Contains(t, out, "winforge doctor")
	assert.Contains(t, out, "[OK] powershell 5.1.20348")
	assert.Contains(t, out, "[??] vmrun not found (optional)")
	assert.Contains(t, out, "[OK] hyperv vmms running")
	assert.Contains(t, out, "[!!] vmware unavailable")
	assert.Contains(t, out, "vmrun not found\n")
	assert.Contains(t, out, "Ready to build images.")
}

func TestRenderDoctor_PlainUnhealthy(t *testing.T) {
	t.Parallel()

	report := DoctorReport{
		Tools: []ToolStatus{
			{Name: "powershell", Required: true, Found: false, InstallURL: "https://aka.ms/powershell"},
		},
		Backends: []BackendStatus{
			{Name: "hyperv", Available: false, Issues: []string{"vmms service is not running"}},
		},
	}

	out := RenderDoctor(report, true)

	assert.Contains(t, out, "[!!] powershell not found, install from https://aka.ms/powershell")
	assert.Contains(t, out, "vmms service is not running")
	assert.Contains(t, out, "Fix the issues above before building.")
}

func TestRenderDoctor_StyledKeepsContent(t *testing.T) {
	t.Parallel()

	out := RenderDoctor(healthyReport(), false)

	// Styling may add escape sequences but never drop the text.
	assert.Contains(t, out, "powershell")
	assert.Contains(t, out, "hyperv")
}

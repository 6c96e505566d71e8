package hyperv

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winforge/winforge/internal/platform/run"
	wftest "github.com/winforge/winforge/internal/testing"
	"github.com/winforge/winforge/internal/vm"
)

func newTestProvider(t *testing.T, runner run.Runner) *Provider {
	t.Helper()
	p := New(Options{
		Runner:           runner,
		Log:              t.Logf,
		VMRoot:           t.TempDir(),
		StartPollTimeout: 150 * time.Millisecond,
		StopPollTimeout:  150 * time.Millisecond,
		RetryMaxAttempts: 1,
		RetryDelay:       time.Millisecond,
	})
	p.pollInterval = 10 * time.Millisecond
	return p
}

func testInfo(name string) *vm.Info {
	return &vm.Info{Name: name, ID: "id-" + name, Hypervisor: vm.KindHyperV}
}

// stubVM registers responses for Get-VM lookups of a VM name.
func stubVM(runner *wftest.FakeRunner, name, state string) {
	runner.Stub("Get-VM -Name", "'"+name+"'",
		`{"Name":"`+name+`","Id":"id-`+name+`","State":"`+state+`","Path":"C:\\vms\\`+name+`"}`)
}

func TestGetAvailabilityDetails(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		status    string
		available bool
	}{
		"running service": {status: `{"Status":"Running"}`, available: true},
		"stopped service": {status: `{"Status":"Stopped"}`, available: false},
		"missing service": {status: "", available: false},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			runner := wftest.NewFakeRunner()
			runner.Stub("Get-Service vmms", tc.status)
			p := newTestProvider(t, runner)

			details := p.GetAvailabilityDetails(context.Background())
			assert.Equal(t, tc.available, details.IsAvailable)
			if !tc.available {
				assert.NotEmpty(t, details.Issues)
			}
		})
	}
}

func TestGetVM(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	runner.Stub("Get-VMHardDiskDrive", `{"Path":"C:\\vms\\build-a\\build-a.vhdx"}`)
	stubVM(runner, "build-a", "Off")
	p := newTestProvider(t, runner)

	info, err := p.GetVM(context.Background(), "build-a")
	require.NoError(t, err)
	assert.Equal(t, "build-a", info.Name)
	assert.Equal(t, "id-build-a", info.ID)
	assert.Equal(t, vm.StateOff, info.State)
	assert.Equal(t, `C:\vms\build-a\build-a.vhdx`, info.DiskPath)
}

func TestGetVM_NotFound(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, wftest.NewFakeRunner())
	_, err := p.GetVM(context.Background(), "missing")
	assert.ErrorIs(t, err, vm.ErrNotFound)
}

func TestMapState(t *testing.T) {
	t.Parallel()

	assert.Equal(t, vm.StateOff, mapState("Off"))
	assert.Equal(t, vm.StateRunning, mapState("running"))
	assert.Equal(t, vm.StatePaused, mapState("Paused"))
	assert.Equal(t, vm.StateSaved, mapState("Saved"))
	assert.Equal(t, vm.StateUnknown, mapState("OffCritical"))
}

func TestGetVMIPAddress_PrefersIPv4(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	runner.Stub("Get-VMNetworkAdapter", `{"IPAddresses":["fe80::1","192.168.1.50"]}`)
	p := newTestProvider(t, runner)

	ip, err := p.GetVMIPAddress(context.Background(), testInfo("build-a"))
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50", ip)
}

func TestGetVMIPAddress_NoneYet(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, wftest.NewFakeRunner())
	ip, err := p.GetVMIPAddress(context.Background(), testInfo("build-a"))
	require.NoError(t, err)
	assert.Empty(t, ip)
}

func TestPsQuote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "'plain'", psQuote("plain"))
	assert.Equal(t, "'it''s quoted'", psQuote("it's quoted"))
}

func TestCapabilities_VHDXOnly(t *testing.T) {
	t.Parallel()

	caps := newTestProvider(t, wftest.NewFakeRunner()).Capabilities()
	assert.True(t, caps.DiskFormats[vm.DiskFormatVHDX])
	assert.False(t, caps.DiskFormats[vm.DiskFormatVMDK])
	assert.True(t, caps.SupportsTPM)
}

func testConfiguration(t *testing.T, name string) *vm.Configuration {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	return &vm.Configuration{
		Name:          name,
		Path:          dir,
		MemoryBytes:   4096 << 20,
		Processors:    2,
		DiskPath:      filepath.Join(dir, name+".vhdx"),
		DiskFormat:    vm.DiskFormatVHDX,
		DiskSizeBytes: 64 << 30,
		Generation:    2,
	}
}

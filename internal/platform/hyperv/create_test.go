package hyperv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winforge/winforge/internal/cleanup"
	wftest "github.com/winforge/winforge/internal/testing"
	"github.com/winforge/winforge/internal/vm"
)

func TestCreateVM_CreatesAndRegisters(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	stubVM(runner, "build-a", "Off")
	p := newTestProvider(t, runner)
	registry := cleanup.NewRegistry(t.Logf)
	p.registry = registry
	cfg := testConfiguration(t, "build-a")

	info, err := p.CreateVM(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "build-a", info.Name)
	assert.Equal(t, cfg.DiskPath, info.DiskPath)

	assert.Equal(t, 1, runner.CallCount("New-VHD"))
	assert.Equal(t, 1, runner.CallCount("New-VM", "-Generation 2"))
	assert.Equal(t, 1, runner.CallCount("Set-VM ", "-ProcessorCount 2", "-StaticMemory"))
	assert.Equal(t, 1, runner.CallCount("Set-VMFirmware", "FirstBootDevice"))
	assert.Equal(t, 1, runner.CallCount("Set-VMFirmware", "EnableSecureBoot Off"))

	entries := registry.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, cleanup.ResourceVM, entries[0].Resource)
}

func TestCreateVM_InvalidConfigHasNoSideEffects(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	p := newTestProvider(t, runner)
	cfg := testConfiguration(t, "build-b")
	cfg.Processors = 0

	_, err := p.CreateVM(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, vm.IsConfigurationError(err))
	assert.Empty(t, runner.Calls(), "a rejected configuration must cause no subprocess at all")
}

func TestCreateVM_RollsBackOnConfigureFailure(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	runner.StubError(errors.New("access denied"), "Set-VM ", "-ProcessorCount")
	p := newTestProvider(t, runner)
	cfg := testConfiguration(t, "build-c")

	_, err := p.CreateVM(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, 1, runner.CallCount("New-VM"))
	assert.Equal(t, 1, runner.CallCount("Remove-VM", "-Force"), "the created VM must be rolled back")
	assert.Zero(t, runner.CallCount("Remove-HgsGuardian"), "no guardian was created, so none may be removed")
}

func TestCreateVM_BootOrderIsReadBack(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	stubVM(runner, "build-d", "Off")
	p := newTestProvider(t, runner)
	cfg := testConfiguration(t, "build-d")

	_, err := p.CreateVM(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, runner.CallCount("Get-VMFirmware"), "boot order must be read before and after the write")
}

func TestCreateVM_TPMFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	runner.StubError(errors.New("HGS unavailable"), "Enable-VMTPM")
	stubVM(runner, "build-e", "Off")
	p := newTestProvider(t, runner)
	cfg := testConfiguration(t, "build-e")
	cfg.EnableTPM = true

	info, err := p.CreateVM(context.Background(), cfg)
	require.NoError(t, err, "a TPM failure must not fail the build")
	assert.Equal(t, "build-e", info.Name)
	assert.Equal(t, 1, runner.CallCount("New-HgsGuardian"))
}

func TestCreateVM_TPMEnableIsRetried(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	runner.StubError(errors.New("HGS unavailable"), "Enable-VMTPM")
	stubVM(runner, "build-g", "Off")
	p := newTestProvider(t, runner)
	p.retryAttempts = 2
	p.retryDelay = time.Millisecond
	cfg := testConfiguration(t, "build-g")
	cfg.EnableTPM = true

	info, err := p.CreateVM(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "build-g", info.Name)
	assert.Equal(t, 2, runner.CallCount("Enable-VMTPM"))
}

func TestCreateVM_AttachesBootMedia(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	stubVM(runner, "build-f", "Off")
	p := newTestProvider(t, runner)
	cfg := testConfiguration(t, "build-f")
	cfg.ISOPath = `C:\iso\install.iso`

	_, err := p.CreateVM(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.CallCount("Add-VMDvdDrive"))
}

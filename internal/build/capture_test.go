package build

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	wftest "github.com/winforge/winforge/internal/testing"
	"github.com/winforge/winforge/internal/vm"
)

func TestCapturePhase_SkipsWithoutCaptureMedia(t *testing.T) {
	t.Parallel()

	provider := &wftest.MockProvider{}
	bctx := newTestContext(t, wftest.NewConfigBuilder().Build(), provider)
	bctx.State.VM = &vm.Info{Name: "winforge-build-srv"}

	err := (&CapturePhase{}).Run(wftest.TestContext(t), bctx)

	require.NoError(t, err)
	assert.False(t, bctx.State.Captured)
	provider.AssertNotCalled(t, "AttachISO", mock.Anything, mock.Anything, mock.Anything)
}

func TestCapturePhase_SwapsMediaAndCaptures(t *testing.T) {
	t.Parallel()

	capture := filepath.Join("d:", "capture.iso")
	cfg := wftest.NewConfigBuilder().WithCaptureISO(capture).Build()
	info := &vm.Info{Name: cfg.VMName(), Hypervisor: vm.KindVMware}

	provider := &wftest.MockProvider{}
	provider.On("GetVMState", mock.Anything, info).Return(vm.StateOff, nil).Once()
	provider.On("AttachISO", mock.Anything, info, capture).Return(nil)
	provider.On("StartVM", mock.Anything, info, false).Return(vm.StartResultCompleted, nil)
	provider.On("DetachISO", mock.Anything, info).Return(nil)

	bctx := newTestContext(t, cfg, provider)
	bctx.State.VM = info

	err := (&CapturePhase{}).Run(wftest.TestContext(t), bctx)

	require.NoError(t, err)
	assert.True(t, bctx.State.Captured)
	assert.Equal(t, vm.StartResultCompleted, bctx.State.CaptureResult)
	provider.AssertExpectations(t)
	provider.AssertNotCalled(t, "StopVM", mock.Anything, mock.Anything, mock.Anything)
}

func TestCapturePhase_StopsRunningVMFirst(t *testing.T) {
	t.Parallel()

	cfg := wftest.NewConfigBuilder().WithCaptureISO("capture.iso").Build()
	info := &vm.Info{Name: cfg.VMName(), Hypervisor: vm.KindHyperV}

	provider := &wftest.MockProvider{}
	provider.On("GetVMState", mock.Anything, info).Return(vm.StateRunning, nil).Once()
	provider.On("StopVM", mock.Anything, info, false).Return(nil)
	provider.On("AttachISO", mock.Anything, info, "capture.iso").Return(nil)
	provider.On("StartVM", mock.Anything, info, false).Return(vm.StartResultCompleted, nil)
	provider.On("DetachISO", mock.Anything, info).Return(nil)

	bctx := newTestContext(t, cfg, provider)
	bctx.State.VM = info

	err := (&CapturePhase{}).Run(wftest.TestContext(t), bctx)

	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestCapturePhase_WaitsWhenGuestKeepsRunning(t *testing.T) {
	shortenPolls(t)

	cfg := wftest.NewConfigBuilder().WithCaptureISO("capture.iso").Build()
	info := &vm.Info{Name: cfg.VMName(), Hypervisor: vm.KindVMware}

	provider := &wftest.MockProvider{}
	provider.On("GetVMState", mock.Anything, info).Return(vm.StateOff, nil).Once()
	provider.On("AttachISO", mock.Anything, info, "capture.iso").Return(nil)
	provider.On("StartVM", mock.Anything, info, false).Return(vm.StartResultRunning, nil)
	provider.On("GetVMState", mock.Anything, info).Return(vm.StateOff, nil)
	provider.On("DetachISO", mock.Anything, info).Return(nil)

	bctx := newTestContext(t, cfg, provider)
	bctx.State.VM = info

	err := (&CapturePhase{}).Run(wftest.TestContext(t), bctx)

	require.NoError(t, err)
	assert.True(t, bctx.State.Captured)
}

func TestCapturePhase_DetachFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	cfg := wftest.NewConfigBuilder().WithCaptureISO("capture.iso").Build()
	info := &vm.Info{Name: cfg.VMName(), Hypervisor: vm.KindVMware}

	provider := &wftest.MockProvider{}
	provider.On("GetVMState", mock.Anything, info).Return(vm.StateOff, nil).Once()
	provider.On("AttachISO", mock.Anything, info, "capture.iso").Return(nil)
	provider.On("StartVM", mock.Anything, info, false).Return(vm.StartResultCompleted, nil)
	provider.On("DetachISO", mock.Anything, info).Return(assert.AnError)

	bctx := newTestContext(t, cfg, provider)
	bctx.State.VM = info

	err := (&CapturePhase{}).Run(wftest.TestContext(t), bctx)

	require.NoError(t, err)
	assert.True(t, bctx.State.Captured)
}

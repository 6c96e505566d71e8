package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/winforge/winforge/internal/config"
	"github.com/winforge/winforge/internal/platform"
	wftest "github.com/winforge/winforge/internal/testing"
	"github.com/winforge/winforge/internal/vm"
)

func TestCleanup_RemovesLeftoverVM(t *testing.T) {
	saveAndRestoreBuildFactories(t)

	cfg := wftest.NewConfigBuilder().Build()
	loadConfigFile = func(string) (*config.Config, error) { return cfg, nil }

	info := &vm.Info{Name: cfg.VMName(), Hypervisor: vm.KindVMware}
	provider := &wftest.MockProvider{}
	provider.On("GetVM", mock.Anything, cfg.VMName()).Return(info, nil)
	provider.On("RemoveVM", mock.Anything, info, true).Return(nil)
	newProvider = func(string, platform.ProviderOptions) (vm.Provider, error) { return provider, nil }

	err := Cleanup(context.Background(), "", true)

	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestCleanup_NoVMIsNotAnError(t *testing.T) {
	saveAndRestoreBuildFactories(t)

	cfg := wftest.NewConfigBuilder().Build()
	loadConfigFile = func(string) (*config.Config, error) { return cfg, nil }

	provider := &wftest.MockProvider{}
	provider.On("GetVM", mock.Anything, cfg.VMName()).Return(nil, vm.ErrNotFound)
	newProvider = func(string, platform.ProviderOptions) (vm.Provider, error) { return provider, nil }

	err := Cleanup(context.Background(), "", false)

	require.NoError(t, err)
	provider.AssertNotCalled(t, "RemoveVM", mock.Anything, mock.Anything, mock.Anything)
}

func TestCleanup_LookupFailure(t *testing.T) {
	saveAndRestoreBuildFactories(t)

	cfg := wftest.NewConfigBuilder().Build()
	loadConfigFile = func(string) (*config.Config, error) { return cfg, nil }

	provider := &wftest.MockProvider{}
	provider.On("GetVM", mock.Anything, cfg.VMName()).Return(nil, assert.AnError)
	newProvider = func(string, platform.ProviderOptions) (vm.Provider, error) { return provider, nil }

	err := Cleanup(context.Background(), "", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "looking up VM")
}

func TestCleanup_RemoveFailure(t *testing.T) {
	saveAndRestoreBuildFactories(t)

	cfg := wftest.NewConfigBuilder().Build()
	loadConfigFile = func(string) (*config.Config, error) { return cfg, nil }

	info := &vm.Info{Name: cfg.VMName()}
	provider := &wftest.MockProvider{}
	provider.On("GetVM", mock.Anything, cfg.VMName()).Return(info, nil)
	provider.On("RemoveVM", mock.Anything, info, false).Return(assert.AnError)
	newProvider = func(string, platform.ProviderOptions) (vm.Provider, error) { return provider, nil }

	err := Cleanup(context.Background(), "", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "removing VM")
}

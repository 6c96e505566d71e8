package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/winforge/winforge/internal/vm"
)

// MockProvider is a testify mock of the virtualization provider contract. It
// is shared across the pipeline and command tests.
type MockProvider struct {
	mock.Mock
}

// Name returns the mocked backend kind.
func (m *MockProvider) Name() vm.Kind {
	args := m.Called()
	return args.Get(0).(vm.Kind)
}

// Capabilities returns the mocked capability descriptor.
func (m *MockProvider) Capabilities() vm.Capabilities {
	args := m.Called()
	return args.Get(0).(vm.Capabilities)
}

// ValidateConfiguration returns the mocked validation result.
func (m *MockProvider) ValidateConfiguration(cfg *vm.Configuration) vm.ValidationResult {
	args := m.Called(cfg)
	return args.Get(0).(vm.ValidationResult)
}

// CreateVM returns the mocked VM info.
func (m *MockProvider) CreateVM(ctx context.Context, cfg *vm.Configuration) (*vm.Info, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vm.Info), args.Error(1)
}

// StartVM returns the mocked start result.
func (m *MockProvider) StartVM(ctx context.Context, info *vm.Info, showConsole bool) (vm.StartResult, error) {
	args := m.Called(ctx, info, showConsole)
	return args.Get(0).(vm.StartResult), args.Error(1)
}

// StopVM returns the mocked stop outcome.
func (m *MockProvider) StopVM(ctx context.Context, info *vm.Info, force bool) error {
	args := m.Called(ctx, info, force)
	return args.Error(0)
}

// RemoveVM returns the mocked removal outcome.
func (m *MockProvider) RemoveVM(ctx context.Context, info *vm.Info, removeDisks bool) error {
	args := m.Called(ctx, info, removeDisks)
	return args.Error(0)
}

// GetVM returns the mocked lookup result.
func (m *MockProvider) GetVM(ctx context.Context, name string) (*vm.Info, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vm.Info), args.Error(1)
}

// GetVMState returns the mocked state observation.
func (m *MockProvider) GetVMState(ctx context.Context, info *vm.Info) (vm.State, error) {
	args := m.Called(ctx, info)
	return args.Get(0).(vm.State), args.Error(1)
}

// GetVMIPAddress returns the mocked guest address.
func (m *MockProvider) GetVMIPAddress(ctx context.Context, info *vm.Info) (string, error) {
	args := m.Called(ctx, info)
	return args.String(0), args.Error(1)
}

// AttachISO returns the mocked attach outcome.
func (m *MockProvider) AttachISO(ctx context.Context, info *vm.Info, isoPath string) error {
	args := m.Called(ctx, info, isoPath)
	return args.Error(0)
}

// DetachISO returns the mocked detach outcome.
func (m *MockProvider) DetachISO(ctx context.Context, info *vm.Info) error {
	args := m.Called(ctx, info)
	return args.Error(0)
}

// NewVirtualDisk returns the mocked disk creation outcome.
func (m *MockProvider) NewVirtualDisk(ctx context.Context, path string, format vm.DiskFormat, sizeBytes int64) error {
	args := m.Called(ctx, path, format, sizeBytes)
	return args.Error(0)
}

// MountVirtualDisk returns the mocked mount point.
func (m *MockProvider) MountVirtualDisk(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

// DismountVirtualDisk returns the mocked dismount outcome.
func (m *MockProvider) DismountVirtualDisk(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

// TestAvailable returns the mocked availability.
func (m *MockProvider) TestAvailable(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// GetAvailabilityDetails returns the mocked probe details.
func (m *MockProvider) GetAvailabilityDetails(ctx context.Context) vm.AvailabilityDetails {
	args := m.Called(ctx)
	return args.Get(0).(vm.AvailabilityDetails)
}

package build

import (
	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/config"
	"github.com/winforge/winforge/internal/secret"
	"github.com/winforge/winforge/internal/vm"
)

// Context carries everything a build needs across phases. Phases read the
// configuration and collaborators, and record their progress in State so
// later phases (and the teardown path) can see what actually exists.
type Context struct {
	Config   *config.Config
	Timeouts *config.Timeouts

	Provider vm.Provider
	Registry *cleanup.Registry
	Observer Observer

	// Password is consulted when unattended media needs a generated
	// administrator credential. May be nil.
	Password secret.Source

	State State
}

// State is the mutable record of what a build has produced so far.
type State struct {
	// VM is set once the build machine exists.
	VM *vm.Info

	// DiskPath is the boot disk backing the build machine.
	DiskPath string

	// AdminSecret is the generated temporary build-account credential.
	// Whatever prepares the unattended media reads it exactly once; the
	// teardown path destroys it either way.
	AdminSecret *secret.Value

	// InstallResult records how the installation run of the machine
	// ended: still running, or ran to completion in a console window.
	InstallResult vm.StartResult

	// CaptureResult records how the capture run ended.
	CaptureResult vm.StartResult

	// Captured reports whether the capture phase finished.
	Captured bool
}

// NewContext assembles a build context from its collaborators.
func NewContext(cfg *config.Config, provider vm.Provider, registry *cleanup.Registry, observer Observer) *Context {
	if observer == nil {
		observer = NewConsoleObserver()
	}
	return &Context{
		Config:   cfg,
		Timeouts: config.LoadTimeouts(),
		Provider: provider,
		Registry: registry,
		Observer: observer,
	}
}

package testing

import (
	"context"
	"testing"
	"time"

	"github.com/winforge/winforge/internal/config"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			ImageName:    "test-image",
			Backend:      "vmware",
			WorkDir:      "winforge-build",
			InstallerISO: "install.iso",
			VM: config.VMConfig{
				MemoryMB:    4096,
				Processors:  2,
				DiskSizeGB:  64,
				DiskFormat:  "vmdk",
				NetworkMode: "nat",
				Generation:  2,
			},
		},
	}
}

// WithImageName sets the image name.
func (b *ConfigBuilder) WithImageName(name string) *ConfigBuilder {
	nb := *b
	nb.cfg.ImageName = name
	return &nb
}

// WithBackend sets the virtualization backend.
func (b *ConfigBuilder) WithBackend(backend string) *ConfigBuilder {
	nb := *b
	nb.cfg.Backend = backend
	if backend == "hyperv" {
		nb.cfg.VM.DiskFormat = "vhdx"
	}
	return &nb
}

// WithWorkDir sets the working directory.
func (b *ConfigBuilder) WithWorkDir(dir string) *ConfigBuilder {
	nb := *b
	nb.cfg.WorkDir = dir
	return &nb
}

// WithInstallerISO sets the installer media path.
func (b *ConfigBuilder) WithInstallerISO(path string) *ConfigBuilder {
	nb := *b
	nb.cfg.InstallerISO = path
	return &nb
}

// WithCaptureISO sets the capture media path.
func (b *ConfigBuilder) WithCaptureISO(path string) *ConfigBuilder {
	nb := *b
	nb.cfg.CaptureISO = path
	return &nb
}

// WithShowConsole enables the console-visible start mode.
func (b *ConfigBuilder) WithShowConsole(show bool) *ConfigBuilder {
	nb := *b
	nb.cfg.ShowConsole = show
	return &nb
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.cfg
	return &cfg
}

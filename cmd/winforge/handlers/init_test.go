package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveAndRestoreInitFactories saves and restores the init factory functions.
func saveAndRestoreInitFactories(t *testing.T) {
	origExists := fileExists
	origWrite := writeFile

	t.Cleanup(func() {
		fileExists = origExists
		writeFile = origWrite
	})
}

func TestInit_WritesStarterConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winforge.yaml")

	err := Init(path, "hyperv")

	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: hyperv")
	assert.Contains(t, string(data), "disk_format: vhdx")
	assert.Contains(t, string(data), "installer_iso:")
}

func TestInit_VMwareUsesVMDK(t *testing.T) {
	saveAndRestoreInitFactories(t)

	fileExists = func(string) bool { return false }

	var written string
	writeFile = func(_ string, data []byte, _ os.FileMode) error {
		written = string(data)
		return nil
	}

	err := Init("winforge.yaml", "vmware")

	require.NoError(t, err)
	assert.Contains(t, written, "backend: vmware")
	assert.Contains(t, written, "disk_format: vmdk")
}

func TestInit_RefusesOverwrite(t *testing.T) {
	saveAndRestoreInitFactories(t)

	fileExists = func(string) bool { return true }
	writeFile = func(string, []byte, os.FileMode) error {
		t.Fatal("must not write over an existing file")
		return nil
	}

	err := Init("winforge.yaml", "hyperv")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")
}

func TestInit_UnknownBackend(t *testing.T) {
	err := Init("winforge.yaml", "virtualbox")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestInit_WriteFailure(t *testing.T) {
	saveAndRestoreInitFactories(t)

	fileExists = func(string) bool { return false }
	writeFile = func(string, []byte, os.FileMode) error { return assert.AnError }

	err := Init("winforge.yaml", "hyperv")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing")
}

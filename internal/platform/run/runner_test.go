package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitZero(t *testing.T) {
	t.Parallel()

	assert.True(t, ExitZero(0))
	assert.False(t, ExitZero(1))
	assert.False(t, ExitZero(8))
}

func TestExitRobocopy(t *testing.T) {
	t.Parallel()

	// Robocopy exit codes 0-7 are informational; 8 and up are failures.
	for code := 0; code <= 7; code++ {
		assert.True(t, ExitRobocopy(code), "exit code %d", code)
	}
	assert.False(t, ExitRobocopy(8))
	assert.False(t, ExitRobocopy(16))
	assert.False(t, ExitRobocopy(-1))
}

func TestCommandError_PrefersStderr(t *testing.T) {
	t.Parallel()

	err := &CommandError{
		Path:     "vmrun",
		Args:     []string{"start", "a.vmx"},
		ExitCode: 255,
		Stdout:   "some stdout",
		Stderr:   "Error: The operation was canceled",
	}
	assert.Contains(t, err.Error(), "exit code 255")
	assert.Contains(t, err.Error(), "operation was canceled")
	assert.NotContains(t, err.Error(), "some stdout")
}

func TestCommandError_FallsBackToStdout(t *testing.T) {
	t.Parallel()

	err := &CommandError{Path: "diskpart", ExitCode: 1, Stdout: "DiskPart has encountered an error"}
	assert.Contains(t, err.Error(), "DiskPart has encountered an error")
}

func TestCommandError_BareWhenSilent(t *testing.T) {
	t.Parallel()

	err := &CommandError{Path: "vmrun", Args: []string{"list"}, ExitCode: 2}
	assert.Equal(t, "vmrun list: exit code 2", err.Error())
}

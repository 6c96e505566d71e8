// Package run provides the uniform subprocess invocation contract used by
// every backend-specific helper.
//
// Each logical backend command (create/start/stop/list/register) is expressed
// as a [Command] with a fixed argument grammar. Stdout and stderr are always
// captured so failures carry full context, and exit-code interpretation is
// pluggable because one disk-copy tool (robocopy) treats exit codes 0-7 as
// success.
package run

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// ExitPolicy decides whether an exit code indicates success.
type ExitPolicy func(code int) bool

// ExitZero is the default policy: only exit code 0 is success.
func ExitZero(code int) bool { return code == 0 }

// ExitRobocopy treats exit codes 0-7 as success and 8+ as failure, matching
// robocopy's exit-code convention.
func ExitRobocopy(code int) bool { return code >= 0 && code <= 7 }

// Command describes one subprocess invocation.
type Command struct {
	Path string
	Args []string

	// Timeout bounds the invocation. Zero means DefaultTimeout.
	Timeout time.Duration

	// ExitPolicy interprets the exit code. Nil means ExitZero.
	ExitPolicy ExitPolicy

	// Stdin is written to the process's standard input when non-empty.
	Stdin string
}

// DefaultTimeout bounds subprocess invocations that do not set their own.
const DefaultTimeout = 5 * time.Minute

// Result captures the outcome of a subprocess invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CommandError reports a subprocess that exited unsuccessfully. It carries
// the captured stdio so callers can inspect tool output.
type CommandError struct {
	Path     string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: exit code %d", e.Path, strings.Join(e.Args, " "), e.ExitCode)
	if detail := strings.TrimSpace(e.Stderr); detail != "" {
		return fmt.Sprintf("%s: %s", msg, detail)
	}
	if detail := strings.TrimSpace(e.Stdout); detail != "" {
		return fmt.Sprintf("%s: %s", msg, detail)
	}
	return msg
}

// Runner executes commands. The process-backed implementation is [ExecRunner];
// tests substitute function-field fakes.
type Runner interface {
	// Run executes cmd and returns the captured result. A non-nil error is
	// returned for spawn failures, timeouts, and exit codes the command's
	// policy rejects; the Result is still populated when the process ran.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands as real subprocesses via os/exec.
type ExecRunner struct {
	// Log receives one line per invocation and per captured stream. Nil
	// falls back to the standard logger.
	Log func(format string, v ...any)
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) logf(format string, v ...any) {
	if r.Log != nil {
		r.Log(format, v...)
		return
	}
	log.Printf(format, v...)
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.logf("[Run] %s %s", cmd.Path, strings.Join(cmd.Args, " "))

	proc := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr
	if cmd.Stdin != "" {
		proc.Stdin = strings.NewReader(cmd.Stdin)
	}

	start := time.Now()
	err := proc.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if out := strings.TrimSpace(result.Stdout); out != "" {
		r.logf("[Run] stdout: %s", out)
	}
	if errOut := strings.TrimSpace(result.Stderr); errOut != "" {
		r.logf("[Run] stderr: %s", errOut)
	}

	if runCtx.Err() != nil {
		return result, fmt.Errorf("command %s timed out after %v: %w", cmd.Path, timeout, runCtx.Err())
	}

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return result, fmt.Errorf("failed to run %s: %w", cmd.Path, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	policy := cmd.ExitPolicy
	if policy == nil {
		policy = ExitZero
	}
	if !policy(result.ExitCode) {
		return result, &CommandError{
			Path:     cmd.Path,
			Args:     cmd.Args,
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
		}
	}
	return result, nil
}

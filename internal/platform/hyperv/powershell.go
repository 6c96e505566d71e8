package hyperv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/winforge/winforge/internal/platform/run"
)

// shell invokes PowerShell with a fixed argument grammar and decodes
// ConvertTo-Json output. All Hyper-V management goes through it.
type shell struct {
	runner run.Runner
	logf   func(format string, v ...any)
}

const scriptTimeout = 5 * time.Minute

// run executes a script fragment.
func (s *shell) run(ctx context.Context, script string) (run.Result, error) {
	return s.runner.Run(ctx, run.Command{
		Path:    "powershell",
		Args:    []string{"-NoProfile", "-NonInteractive", "-Command", script},
		Timeout: scriptTimeout,
	})
}

// runJSON executes a script whose output is piped through ConvertTo-Json and
// decodes it into out. Empty output leaves out untouched and returns
// errEmptyResult.
func (s *shell) runJSON(ctx context.Context, script string, out any) error {
	result, err := s.run(ctx, script+" | ConvertTo-Json -Compress -Depth 3")
	if err != nil {
		return err
	}

	output := strings.TrimSpace(result.Stdout)
	if output == "" {
		return errEmptyResult
	}
	if err := json.Unmarshal([]byte(output), out); err != nil {
		return fmt.Errorf("failed to parse powershell output %q: %w", output, err)
	}
	return nil
}

// errEmptyResult signals a query that returned nothing, typically a lookup
// for an object that does not exist.
var errEmptyResult = fmt.Errorf("powershell query returned no output")

// psQuote single-quotes a value for embedding in a script, escaping embedded
// quotes PowerShell-style.
func psQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

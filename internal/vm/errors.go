package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates a VM lookup resolved to nothing.
var ErrNotFound = errors.New("vm not found")

// ErrStateIndeterminate indicates every state-detection signal was
// inconclusive. Callers see StateUnknown alongside it.
var ErrStateIndeterminate = errors.New("vm state indeterminate: no detection signal was conclusive")

// ConfigurationError reports pre-flight validation failure. No side effects
// have occurred when it is returned.
type ConfigurationError struct {
	Issues []ValidationIssue
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// IsConfigurationError checks whether err is a validation failure.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// UnavailableError indicates the backend availability probe failed. It is
// produced by the probe, never inferred from a failed operation.
type UnavailableError struct {
	Backend Kind
	Issues  []string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %s", e.Backend, strings.Join(e.Issues, "; "))
}

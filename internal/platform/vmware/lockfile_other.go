//go:build !windows

package vmware

import (
	"os"
	"strings"
)

// openExclusive has no exclusive-share semantics off Windows; a plain open
// stands in so the probe still distinguishes absent from openable files.
func openExclusive(path string) (*os.File, error) {
	return os.Open(path)
}

func isSharingViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "sharing violation")
}

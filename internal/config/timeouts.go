package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	StartPoll        time.Duration // Window for the VM process/state to appear after a start
	StopPoll         time.Duration // Window for the VM to settle Off after a stop
	GuestRun         time.Duration // Bound for a windowed start, which blocks while the guest runs
	RetryMaxAttempts int           // Maximum number of retry attempts
	RetryDelay       time.Duration // Delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - WINFORGE_TIMEOUT_START_POLL (default: 90s)
//   - WINFORGE_TIMEOUT_STOP_POLL (default: 2m)
//   - WINFORGE_TIMEOUT_GUEST_RUN (default: 12h)
//   - WINFORGE_RETRY_MAX_ATTEMPTS (default: 3)
//   - WINFORGE_RETRY_DELAY (default: 5s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		StartPoll:        parseDuration("WINFORGE_TIMEOUT_START_POLL", 90*time.Second),
		StopPoll:         parseDuration("WINFORGE_TIMEOUT_STOP_POLL", 2*time.Minute),
		GuestRun:         parseDuration("WINFORGE_TIMEOUT_GUEST_RUN", 12*time.Hour),
		RetryMaxAttempts: parseInt("WINFORGE_RETRY_MAX_ATTEMPTS", 3),
		RetryDelay:       parseDuration("WINFORGE_RETRY_DELAY", 5*time.Second),
	}
}

// TestTimeouts returns short timeouts suitable for tests.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		StartPoll:        200 * time.Millisecond,
		StopPoll:         200 * time.Millisecond,
		GuestRun:         time.Second,
		RetryMaxAttempts: 2,
		RetryDelay:       time.Millisecond,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

// Package retry provides retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max
// attempts, initial delay, and maximum delay. It is used for host operations
// that race with the OS, such as drive-letter assignment during virtual disk
// mounts.
//
// [Execute] is the fixed-delay executor wrapped around backend operations:
// it supports a cleanup-on-failure hook and critical/non-critical failure
// classification, where a non-critical exhaustion degrades to a logged
// warning and a zero value instead of an error.
package retry

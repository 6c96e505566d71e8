package vm

import (
	"fmt"
	"strings"
)

// Validate checks cfg against a backend capability descriptor. It is a pure
// function: it never touches the host, so providers can run it before any
// side effect occurs.
func Validate(cfg *Configuration, caps Capabilities) ValidationResult {
	var issues []ValidationIssue

	addError := func(field, msg string) {
		issues = append(issues, ValidationIssue{Field: field, Message: msg, Severity: "error"})
	}
	addWarning := func(field, msg string) {
		issues = append(issues, ValidationIssue{Field: field, Message: msg, Severity: "warning"})
	}

	if strings.TrimSpace(cfg.Name) == "" {
		addError("name", "vm name is required")
	}
	if strings.ContainsAny(cfg.Name, `/\:*?"<>|`) {
		addError("name", "vm name must not contain path separators or reserved characters")
	}
	if cfg.Path == "" {
		addError("path", "vm artifact path is required")
	}

	if cfg.MemoryBytes <= 0 {
		addError("memory", "memory size must be positive")
	} else if caps.MaxMemoryBytes > 0 && cfg.MemoryBytes > caps.MaxMemoryBytes {
		addError("memory", fmt.Sprintf("memory %d exceeds backend maximum %d", cfg.MemoryBytes, caps.MaxMemoryBytes))
	}

	if cfg.Processors <= 0 {
		addError("processors", "processor count must be positive")
	} else if caps.MaxProcessors > 0 && cfg.Processors > caps.MaxProcessors {
		addError("processors", fmt.Sprintf("processor count %d exceeds backend maximum %d", cfg.Processors, caps.MaxProcessors))
	}

	if cfg.DiskPath == "" {
		addError("disk.path", "disk path is required")
	}
	if cfg.DiskSizeBytes <= 0 {
		addError("disk.size", "disk size must be positive")
	}
	if cfg.DiskFormat == "" {
		addError("disk.format", "disk format is required")
	} else if len(caps.DiskFormats) > 0 && !caps.DiskFormats[cfg.DiskFormat] {
		addError("disk.format", fmt.Sprintf("disk format %q is not supported by this backend", cfg.DiskFormat))
	}

	if cfg.Generation != 0 && cfg.Generation != 1 && cfg.Generation != 2 {
		addError("generation", fmt.Sprintf("unsupported generation %d", cfg.Generation))
	}

	if cfg.EnableTPM && !caps.SupportsTPM {
		addWarning("tpm", "backend does not support TPM; it will be skipped")
	}
	if cfg.EnableSecureBoot && !caps.SupportsSecureBoot {
		addError("secure_boot", "backend does not support secure boot")
	}
	if cfg.EnableSecureBoot && cfg.Generation == 1 {
		addError("secure_boot", "secure boot requires generation 2 (UEFI) firmware")
	}
	if cfg.DynamicMemory && !caps.SupportsDynamicMemory {
		addWarning("dynamic_memory", "backend does not support dynamic memory; fixed allocation will be used")
	}

	result := ValidationResult{Valid: true}
	for _, issue := range issues {
		if issue.Severity == "error" {
			result.Valid = false
			result.Errors = append(result.Errors, issue)
		} else {
			result.Warnings = append(result.Warnings, issue)
		}
	}
	return result
}

// ConfigurationErrorFrom converts a failed validation result into the typed
// error returned by CreateVM. Returns nil when the result is valid.
func ConfigurationErrorFrom(result ValidationResult) error {
	if result.Valid {
		return nil
	}
	return &ConfigurationError{Issues: result.Errors}
}

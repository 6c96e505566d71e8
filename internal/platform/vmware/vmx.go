package vmware

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// The .vmx descriptor is a newline-delimited list of `key = "value"` pairs.
// The VM execution process may re-read the file within the same call
// sequence, so every update rewrites the whole file and flushes it to stable
// storage before returning, and every verification re-parses from disk
// instead of trusting the in-memory overlay.

// parseVMX parses descriptor content into a key/value map. Keys are stored
// as written; lookups are done case-insensitively via vmxGet.
func parseVMX(content string) map[string]string {
	entries := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		if key != "" {
			entries[key] = value
		}
	}
	return entries
}

// vmxGet looks up a key case-insensitively.
func vmxGet(entries map[string]string, key string) (string, bool) {
	if value, ok := entries[key]; ok {
		return value, true
	}
	for k, v := range entries {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// serializeVMX renders all entries sorted by key.
func serializeVMX(entries map[string]string) string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s = \"%s\"\n", key, entries[key])
	}
	return b.String()
}

// readVMX loads and parses a descriptor file.
func readVMX(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vmx %s: %w", path, err)
	}
	return parseVMX(string(data)), nil
}

// writeVMX serializes entries, writes the full file and syncs it so the
// write is observable immediately after the call returns.
func writeVMX(path string, entries map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open vmx %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(serializeVMX(entries)); err != nil {
		return fmt.Errorf("failed to write vmx %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to flush vmx %s: %w", path, err)
	}
	return nil
}

// updateVMX parses the full descriptor, overlays only the supplied keys and
// writes the result back. Existing keys not in updates are preserved.
func updateVMX(path string, updates map[string]string) error {
	entries, err := readVMX(path)
	if err != nil {
		return err
	}
	for key, value := range updates {
		// Replace an existing key regardless of case so the file never
		// ends up with two spellings of the same key.
		for existing := range entries {
			if strings.EqualFold(existing, key) && existing != key {
				delete(entries, existing)
			}
		}
		entries[key] = value
	}
	return writeVMX(path, entries)
}

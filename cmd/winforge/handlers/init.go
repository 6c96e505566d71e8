package handlers

import (
	"fmt"
	"os"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// writeFile writes data to a file.
	writeFile = os.WriteFile
)

// Init writes a starter configuration file for the given backend.
func Init(outputPath, backend string) error {
	if backend != "hyperv" && backend != "vmware" {
		return fmt.Errorf("unknown backend %q (expected hyperv or vmware)", backend)
	}
	if fileExists(outputPath) {
		return fmt.Errorf("%s already exists, refusing to overwrite", outputPath)
	}

	diskFormat := "vhdx"
	if backend == "vmware" {
		diskFormat = "vmdk"
	}

	sample := fmt.Sprintf(`# winforge build configuration
image_name: my-image
backend: %s

# Path to the Windows installer ISO (unattended: answer file on the media).
installer_iso: C:\iso\windows-server-2022.iso

# Optional capture media booted after installation to capture the image.
# capture_iso: C:\iso\capture.iso

# Directory for build VM artifacts.
work_dir: winforge-build

# Open a visible console window for the build VM.
show_console: false

vm:
  memory_mb: 4096
  processors: 2
  disk_size_gb: 64
  disk_format: %s
  network_mode: nat
  generation: 2
  secure_boot: true
`, backend, diskFormat)

	if err := writeFile(outputPath, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}

	fmt.Printf("Wrote %s\n", outputPath)
	fmt.Println("Edit image_name and installer_iso, then run: winforge build")
	return nil
}

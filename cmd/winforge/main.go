// Package main is the entry point for the winforge CLI.
//
// winforge builds custom Windows images by driving a throwaway build VM
// through an install/customize/capture cycle on a local virtualization
// backend (Hyper-V or VMware Workstation).
//
// Commands: init, build, doctor, cleanup.
//
// For detailed usage information, run:
//
//	winforge --help
package main

import (
	"fmt"
	"os"

	"github.com/winforge/winforge/cmd/winforge/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package vmware

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/winforge/winforge/internal/platform/run"
	"github.com/winforge/winforge/internal/vm"
)

// GetVMState implements vm.Provider for the desktop backend.
//
// Workstation's own "list running VMs" tool can be broken by version skew,
// so the signals are layered and applied in strict order, stopping at the
// first conclusive one:
//
//  1. process-table scan for the VM execution process whose command line
//     contains the descriptor path — independent of vmrun and of which user
//     session launched the VM;
//  2. `vmrun list` path comparison;
//  3. exclusive-open probe of the runtime-state file.
//
// When every signal is inconclusive the state is Unknown, never assumed Off.
func (p *Provider) GetVMState(ctx context.Context, info *vm.Info) (vm.State, error) {
	target := normalizePath(info.ConfigPath)

	// Signal 1: process table. A match is conclusive; no match only means
	// this signal saw nothing, so the next one is consulted.
	processes, procErr := p.scanProcesses(ctx)
	if procErr == nil {
		for _, proc := range processes {
			if strings.Contains(normalizePath(proc.CommandLine), target) {
				return vm.StateRunning, nil
			}
		}
	} else {
		p.logf("[VMware] process-table scan failed: %v", procErr)
	}

	// Signal 2: vmrun list.
	running, listErr := p.listRunning(ctx)
	if listErr == nil {
		for _, path := range running {
			if normalizePath(path) == target {
				return vm.StateRunning, nil
			}
		}
	} else {
		p.logf("[VMware] vmrun list failed: %v", listErr)
	}

	// Signal 3: runtime-state file lock probe.
	switch p.probeLock(p.runtimeFilePath(info.Name)) {
	case lockHeld:
		return vm.StateRunning, nil
	case lockFree:
		return vm.StateOff, nil
	case lockAbsent, lockInconclusive:
		// Recent Workstation versions may not create the file at all.
	}

	return vm.StateUnknown, fmt.Errorf("vm %q: %w", info.Name, vm.ErrStateIndeterminate)
}

// cimProcess mirrors the JSON shape of a Win32_Process query result.
type cimProcess struct {
	ProcessID   int    `json:"ProcessId"`
	CommandLine string `json:"CommandLine"`
}

// scanProcessTable queries the OS process table for vmware-vmx processes.
func (p *Provider) scanProcessTable(ctx context.Context) ([]vmProcess, error) {
	script := `Get-CimInstance Win32_Process -Filter "Name = 'vmware-vmx.exe'" | Select-Object ProcessId, CommandLine | ConvertTo-Json -Compress`
	result, err := p.runner.Run(ctx, run.Command{
		Path:    "powershell",
		Args:    []string{"-NoProfile", "-NonInteractive", "-Command", script},
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("process table query failed: %w", err)
	}

	output := strings.TrimSpace(result.Stdout)
	if output == "" {
		return nil, nil
	}

	// ConvertTo-Json emits a bare object for a single result and an array
	// otherwise.
	var rows []cimProcess
	if strings.HasPrefix(output, "[") {
		if err := json.Unmarshal([]byte(output), &rows); err != nil {
			return nil, fmt.Errorf("failed to parse process list: %w", err)
		}
	} else {
		var row cimProcess
		if err := json.Unmarshal([]byte(output), &row); err != nil {
			return nil, fmt.Errorf("failed to parse process entry: %w", err)
		}
		rows = []cimProcess{row}
	}

	processes := make([]vmProcess, 0, len(rows))
	for _, row := range rows {
		processes = append(processes, vmProcess{PID: row.ProcessID, CommandLine: row.CommandLine})
	}
	return processes, nil
}

// vmrunList invokes `vmrun list` and returns the descriptor paths of
// running VMs.
func (p *Provider) vmrunList(ctx context.Context) ([]string, error) {
	result, err := p.runner.Run(ctx, p.vmrun("list"))
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Total running VMs") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, nil
}

// isProcessRunning reports whether the VM execution process for the given
// descriptor is present in the process table.
func (p *Provider) isProcessRunning(ctx context.Context, configPath string) (bool, error) {
	target := normalizePath(configPath)
	processes, err := p.scanProcesses(ctx)
	if err != nil {
		return false, err
	}
	for _, proc := range processes {
		if strings.Contains(normalizePath(proc.CommandLine), target) {
			return true, nil
		}
	}
	return false, nil
}

// waitForState polls until the VM settles into want or the window elapses.
func (p *Provider) waitForState(ctx context.Context, info *vm.Info, want vm.State, window time.Duration) error {
	deadline := time.Now().Add(window)
	for {
		state, err := p.GetVMState(ctx, info)
		if err == nil && state == want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("vm %q did not reach state %s within %v", info.Name, want, window)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
}

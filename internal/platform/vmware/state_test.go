package vmware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wftest "github.com/winforge/winforge/internal/testing"
	"github.com/winforge/winforge/internal/vm"
)

func TestGetVMState_ProcessMatchStopsSignalChain(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, nil)
	info := testInfo(p, "build-a")

	listCalls, probeCalls := 0, 0
	p.scanProcesses = func(context.Context) ([]vmProcess, error) {
		return []vmProcess{{PID: 4242, CommandLine: `vmware-vmx.exe -x ` + info.ConfigPath}}, nil
	}
	p.listRunning = func(context.Context) ([]string, error) {
		listCalls++
		return nil, nil
	}
	p.probeLock = func(string) lockState {
		probeCalls++
		return lockFree
	}

	state, err := p.GetVMState(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, vm.StateRunning, state)
	assert.Zero(t, listCalls, "a conclusive process match must not consult vmrun list")
	assert.Zero(t, probeCalls, "a conclusive process match must not probe the lock file")
}

func TestGetVMState_NoProcessMatchConsultsVmrunList(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, nil)
	info := testInfo(p, "build-b")

	p.scanProcesses = func(context.Context) ([]vmProcess, error) {
		return []vmProcess{{PID: 1, CommandLine: `vmware-vmx.exe -x C:\other\other.vmx`}}, nil
	}
	p.listRunning = func(context.Context) ([]string, error) {
		return []string{info.ConfigPath}, nil
	}
	p.probeLock = func(string) lockState {
		t.Fatal("lock probe must not run when vmrun list is conclusive")
		return lockInconclusive
	}

	state, err := p.GetVMState(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, vm.StateRunning, state)
}

func TestGetVMState_LockFreeMeansOff(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, nil)
	info := testInfo(p, "build-c")

	p.scanProcesses = func(context.Context) ([]vmProcess, error) { return nil, nil }
	p.listRunning = func(context.Context) ([]string, error) { return nil, nil }
	p.probeLock = func(string) lockState { return lockFree }

	state, err := p.GetVMState(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, vm.StateOff, state)
}

func TestGetVMState_LockHeldMeansRunning(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, nil)
	info := testInfo(p, "build-d")

	p.scanProcesses = func(context.Context) ([]vmProcess, error) { return nil, nil }
	p.listRunning = func(context.Context) ([]string, error) { return nil, nil }
	p.probeLock = func(string) lockState { return lockHeld }

	state, err := p.GetVMState(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, vm.StateRunning, state)
}

func TestGetVMState_AllInconclusiveIsUnknownNotOff(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, nil)
	info := testInfo(p, "build-e")

	p.scanProcesses = func(context.Context) ([]vmProcess, error) { return nil, errors.New("query tool broken") }
	p.listRunning = func(context.Context) ([]string, error) { return nil, errors.New("vmrun broken") }
	p.probeLock = func(string) lockState { return lockAbsent }

	state, err := p.GetVMState(context.Background(), info)
	assert.Equal(t, vm.StateUnknown, state)
	assert.ErrorIs(t, err, vm.ErrStateIndeterminate)
}

func TestGetVMState_SignalErrorFallsThrough(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, nil)
	info := testInfo(p, "build-f")

	p.scanProcesses = func(context.Context) ([]vmProcess, error) { return nil, errors.New("query tool broken") }
	p.listRunning = func(context.Context) ([]string, error) { return []string{info.ConfigPath}, nil }
	p.probeLock = func(string) lockState { return lockInconclusive }

	state, err := p.GetVMState(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, vm.StateRunning, state)
}

func TestGetVMState_PathComparisonIsCaseAndSlashInsensitive(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, nil)
	info := &vm.Info{Name: "build-g", ConfigPath: `C:\Builds\Build-G\Build-G.vmx`}

	p.scanProcesses = func(context.Context) ([]vmProcess, error) {
		return []vmProcess{{PID: 7, CommandLine: `vmware-vmx.exe -x c:/builds/build-g/build-g.vmx`}}, nil
	}

	state, err := p.GetVMState(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, vm.StateRunning, state)
}

func TestScanProcessTable_ParsesBareObjectAndArray(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		output string
		want   int
	}{
		"empty":       {output: "", want: 0},
		"bare object": {output: `{"ProcessId":4242,"CommandLine":"vmware-vmx.exe a.vmx"}`, want: 1},
		"array":       {output: `[{"ProcessId":1,"CommandLine":"a"},{"ProcessId":2,"CommandLine":"b"}]`, want: 2},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			runner := wftest.NewFakeRunner()
			runner.Stub("Get-CimInstance", tc.output)
			p := newTestProvider(t, runner)

			processes, err := p.scanProcessTable(context.Background())
			require.NoError(t, err)
			assert.Len(t, processes, tc.want)
		})
	}
}

func TestVmrunList_SkipsSummaryLine(t *testing.T) {
	t.Parallel()

	runner := wftest.NewFakeRunner()
	runner.Stub("vmrun", "list", "Total running VMs: 2\nC:\\a\\a.vmx\nC:\\b\\b.vmx\n")
	p := newTestProvider(t, runner)

	paths, err := p.vmrunList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\a\a.vmx`, `C:\b\b.vmx`}, paths)
}

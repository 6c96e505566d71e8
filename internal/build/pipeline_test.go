package build

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winforge/winforge/internal/cleanup"
	"github.com/winforge/winforge/internal/config"
	wftest "github.com/winforge/winforge/internal/testing"
	"github.com/winforge/winforge/internal/util/prerequisites"
)

type testObserver struct {
	t *testing.T
}

func (o *testObserver) Printf(format string, v ...interface{}) {
	o.t.Logf(format, v...)
}

// newTestContext wires a context with short timeouts and a registry that
// logs through the test.
func newTestContext(t *testing.T, cfg *config.Config, provider *wftest.MockProvider) *Context {
	t.Helper()
	return &Context{
		Config:   cfg,
		Timeouts: config.TestTimeouts(),
		Provider: provider,
		Registry: cleanup.NewRegistry(t.Logf),
		Observer: &testObserver{t: t},
	}
}

// recordingPhase appends its name to a shared log when run.
type recordingPhase struct {
	name string
	log  *[]string
	err  error
}

func (p *recordingPhase) Name() string { return p.name }

func (p *recordingPhase) Run(_ context.Context, _ *Context) error {
	*p.log = append(*p.log, p.name)
	return p.err
}

func TestRunPhases_RunsInOrder(t *testing.T) {
	t.Parallel()

	var ran []string
	phases := []Phase{
		&recordingPhase{name: "first", log: &ran},
		&recordingPhase{name: "second", log: &ran},
		&recordingPhase{name: "third", log: &ran},
	}
	bctx := newTestContext(t, wftest.NewConfigBuilder().Build(), &wftest.MockProvider{})

	err := RunPhases(context.Background(), bctx, phases...)

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ran)
}

func TestRunPhases_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	var ran []string
	boom := errors.New("disk full")
	phases := []Phase{
		&recordingPhase{name: "first", log: &ran},
		&recordingPhase{name: "second", log: &ran, err: boom},
		&recordingPhase{name: "third", log: &ran},
	}
	bctx := newTestContext(t, wftest.NewConfigBuilder().Build(), &wftest.MockProvider{})

	err := RunPhases(context.Background(), bctx, phases...)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "phase second")
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestRunPhases_CanceledContextSkipsPhases(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran []string
	bctx := newTestContext(t, wftest.NewConfigBuilder().Build(), &wftest.MockProvider{})

	err := RunPhases(ctx, bctx, &recordingPhase{name: "first", log: &ran})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ran)
}

func TestDefaultPhases_CoversFullBuild(t *testing.T) {
	t.Parallel()

	var names []string
	for _, phase := range DefaultPhases() {
		names = append(names, phase.Name())
	}
	assert.Equal(t, []string{"Validation", "Provision", "Install", "Capture", "Teardown"}, names)
}

func TestRun_InvokesCleanupOnFailure(t *testing.T) {
	// Fails the build in validation, with a resource already tracked.
	restore := checkPrereqs
	checkPrereqs = func(string) *prerequisites.CheckResults {
		return &prerequisites.CheckResults{
			Missing: []prerequisites.Tool{{Name: "vmrun", Required: true, InstallURL: "https://example.invalid"}},
		}
	}
	t.Cleanup(func() { checkPrereqs = restore })

	bctx := newTestContext(t, wftest.NewConfigBuilder().Build(), &wftest.MockProvider{})

	cleaned := false
	bctx.Registry.Register("leftover disk", cleanup.ResourceDisk, "d:/disk.vhdx", func(context.Context) error {
		cleaned = true
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Run(ctx, bctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required tools")
	assert.True(t, cleaned, "registered cleanup should run after a failed build")
	assert.Equal(t, 0, bctx.Registry.Len())
}

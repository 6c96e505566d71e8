package build

import (
	"context"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wftest "github.com/winforge/winforge/internal/testing"
)

func TestLogrObserver_CarriesPhaseProgress(t *testing.T) {
	t.Parallel()

	var lines []string
	logger := funcr.New(func(_, args string) {
		lines = append(lines, args)
	}, funcr.Options{})

	var ran []string
	bctx := newTestContext(t, wftest.NewConfigBuilder().Build(), &wftest.MockProvider{})
	bctx.Observer = NewLogrObserver(logger)

	err := RunPhases(context.Background(), bctx, &recordingPhase{name: "first", log: &ran})

	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, ran)

	joined := ""
	for _, line := range lines {
		joined += line + "\n"
	}
	assert.Contains(t, joined, "Phase 1/1: first")
	assert.Contains(t, joined, "completed")
}

func TestPrintf_NilObserverDoesNotPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		printf(nil, "stray message %d", 1)
	})
}

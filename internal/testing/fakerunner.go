package testing

import (
	"context"
	"strings"
	"sync"

	"github.com/winforge/winforge/internal/platform/run"
)

// Call records one invocation the fake runner served.
type Call struct {
	Path  string
	Args  []string
	Stdin string
}

// Line renders the call the way it would appear on a shell command line.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

type stub struct {
	substrings []string
	result     run.Result
	err        error
}

// FakeRunner is a scripted run.Runner. Stubs are matched in registration
// order against the rendered command line (path plus arguments); the first
// stub whose substrings all appear wins. Unmatched commands succeed with
// empty output so tests only script what they assert on.
type FakeRunner struct {
	mu    sync.Mutex
	stubs []stub
	calls []Call
}

// NewFakeRunner creates an empty fake runner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// Stub registers a successful response for commands whose line contains all
// the given substrings. The final argument is the stdout to return.
func (r *FakeRunner) Stub(substringsThenStdout ...string) {
	if len(substringsThenStdout) == 0 {
		return
	}
	n := len(substringsThenStdout)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stubs = append(r.stubs, stub{
		substrings: substringsThenStdout[:n-1],
		result:     run.Result{Stdout: substringsThenStdout[n-1]},
	})
}

// StubError registers a failing response for commands whose line contains all
// the given substrings.
func (r *FakeRunner) StubError(err error, substrings ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stubs = append(r.stubs, stub{substrings: substrings, err: err})
}

// StubExit registers a response with a specific exit code and stderr; the
// returned error is a run.CommandError like the real runner produces.
func (r *FakeRunner) StubExit(exitCode int, stderr string, substrings ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stubs = append(r.stubs, stub{
		substrings: substrings,
		result:     run.Result{ExitCode: exitCode, Stderr: stderr},
		err:        &run.CommandError{ExitCode: exitCode, Stderr: stderr},
	})
}

// Run implements run.Runner.
func (r *FakeRunner) Run(_ context.Context, cmd run.Command) (run.Result, error) {
	call := Call{Path: cmd.Path, Args: cmd.Args, Stdin: cmd.Stdin}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)

	// Stdin participates in matching because diskpart-style tools take
	// their whole script there.
	line := call.Line() + " " + call.Stdin
	for _, s := range r.stubs {
		if matchesAll(line, s.substrings) {
			return s.result, s.err
		}
	}
	return run.Result{}, nil
}

// Calls returns a snapshot of every recorded invocation.
func (r *FakeRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallCount reports how many recorded invocations contain all the given
// substrings in their command line or stdin.
func (r *FakeRunner) CallCount(substrings ...string) int {
	count := 0
	for _, call := range r.Calls() {
		if matchesAll(call.Line()+" "+call.Stdin, substrings) {
			count++
		}
	}
	return count
}

func matchesAll(line string, substrings []string) bool {
	for _, sub := range substrings {
		if !strings.Contains(line, sub) {
			return false
		}
	}
	return true
}

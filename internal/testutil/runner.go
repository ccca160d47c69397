package testutil

import (
	"context"
	"sync"

	"github.com/roach88/provcheck/internal/executor"
)

// FakeRunner is a scripted executor.Runner for comparator and engine tests.
//
// Commands are matched exactly. Unscripted commands return Unscripted, which
// defaults to exit status 127 so a test never passes by accident.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]executor.Result
	calls     []string

	// Unscripted is returned for commands without a scripted response.
	Unscripted executor.Result
}

// NewFakeRunner creates a runner with no scripted commands.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		responses:  make(map[string]executor.Result),
		Unscripted: executor.Exited(127, "command not found"),
	}
}

// On scripts the result of command. Returns f for chaining.
func (f *FakeRunner) On(command string, res executor.Result) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[command] = res
	return f
}

// OnOutput scripts a successful command printing stdout.
func (f *FakeRunner) OnOutput(command, stdout string) *FakeRunner {
	return f.On(command, executor.Succeeded(stdout))
}

// Run implements executor.Runner.
func (f *FakeRunner) Run(_ context.Context, command string) executor.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, command)
	if res, ok := f.responses[command]; ok {
		return res
	}
	return f.Unscripted
}

// Calls returns the commands run so far, in order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

package process

import (
	"context"
	"sync"
)

// FakeRunner records commands instead of executing them. Handler, when set, decides each outcome.
type FakeRunner struct {
	Handler func(cmd Command) (Result, error)

	mu    sync.Mutex
	calls []Command
}

// Run records cmd and returns the handler's outcome, or success.
func (f *FakeRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}
	if f.Handler != nil {
		return f.Handler(cmd)
	}
	return Result{}, nil
}

// Calls returns a copy of the recorded commands.
func (f *FakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// CommandLines returns the recorded commands rendered with Command.String.
func (f *FakeRunner) CommandLines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Fail returns a Result and *ExitError for cmd with the given code.
func Fail(cmd Command, code int) (Result, error) {
	return Result{ExitCode: code}, &ExitError{Command: cmd.String(), Code: code}
}

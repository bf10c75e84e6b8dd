// Package process runs external tools (python, twine, codespell) on behalf of the pipelines.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/eegrasp/graspci/internal/logfields"
)

// Command describes one external invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string // KEY=VALUE pairs layered over the current environment
	Stdout io.Writer
	Stderr io.Writer
}

// FromArgv builds a Command from an argv slice as found in graspci.yaml.
func FromArgv(argv []string) (Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return Command{}, ErrEmptyCommand
	}
	return Command{Name: argv[0], Args: append([]string(nil), argv[1:]...)}, nil
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Duration time.Duration
}

// ErrEmptyCommand is returned for an empty argv.
var ErrEmptyCommand = errors.New("empty command")

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
}

// ExitCode extracts the exit status from err, returning -1 when err does not carry one.
func ExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}

// Runner executes commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec. Cancelling ctx terminates the whole process group.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	// WaitDelay bounds how long a cancelled command may take to exit before it is killed.
	WaitDelay time.Duration
}

// NewExecRunner returns a runner that streams child output to the current process.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr, WaitDelay: 5 * time.Second}
}

// Run starts cmd and waits for it. A non-zero exit yields *ExitError.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if c.Name == "" {
		return Result{ExitCode: -1}, ErrEmptyCommand
	}
	cmd := exec.CommandContext(ctx, c.Name, c.Args...) //nolint:gosec // argv comes from the project configuration
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdout = pick(c.Stdout, r.Stdout)
	cmd.Stderr = pick(c.Stderr, r.Stderr)
	configureGroup(cmd)
	cmd.WaitDelay = r.WaitDelay

	slog.Debug("Running command", logfields.Command(c.String()), logfields.Path(c.Dir))
	start := time.Now()
	err := cmd.Run()
	res := Result{Duration: time.Since(start)}
	if err == nil {
		return res, nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		if ctx.Err() != nil {
			return res, fmt.Errorf("%s: %w", c.String(), ctx.Err())
		}
		return res, &ExitError{Command: c.String(), Code: res.ExitCode}
	}
	res.ExitCode = -1
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s: %w", c.String(), ctx.Err())
	}
	return res, fmt.Errorf("failed to start %s: %w", c.Name, err)
}

func pick(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	if fallback != nil {
		return fallback
	}
	return io.Discard
}

package process

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/eegrasp/graspci/internal/logfields"
)

// Background is a long-running child in its own process group.
type Background struct {
	cmd  *exec.Cmd
	name string
	done chan struct{}
	err  error
}

// Start launches c without waiting for it. The caller owns the process and must call Stop.
func Start(c Command) (*Background, error) {
	if c.Name == "" {
		return nil, ErrEmptyCommand
	}
	cmd := exec.Command(c.Name, c.Args...) //nolint:gosec // argv comes from the project configuration
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdout = pick(c.Stdout, nil)
	cmd.Stderr = pick(c.Stderr, nil)
	setGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.Name, err)
	}
	b := &Background{cmd: cmd, name: c.String(), done: make(chan struct{})}
	go func() {
		b.err = cmd.Wait()
		close(b.done)
	}()
	slog.Debug("Started background process", logfields.Command(b.name), logfields.PID(b.Pid()))
	return b, nil
}

// Pid returns the process ID, which is also the process group ID on unix.
func (b *Background) Pid() int { return b.cmd.Process.Pid }

// Done is closed once the process has exited and been reaped.
func (b *Background) Done() <-chan struct{} { return b.done }

// Err returns the wait error; only meaningful after Done is closed.
func (b *Background) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Exited reports whether the process has already terminated.
func (b *Background) Exited() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Stop terminates the process group, escalating to SIGKILL after grace, and waits for the exit.
// It is safe to call more than once.
func (b *Background) Stop(grace time.Duration) error {
	if b.Exited() {
		return nil
	}
	pid := b.Pid()
	if err := signalGroup(pid, false); err != nil && !b.Exited() {
		slog.Debug("Terminate signal failed", logfields.PID(pid), logfields.Error(err))
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-b.done:
		return nil
	case <-timer.C:
	}

	slog.Warn("Background process ignored SIGTERM, killing", logfields.Command(b.name), logfields.PID(pid))
	if err := signalGroup(pid, true); err != nil && !b.Exited() {
		return fmt.Errorf("failed to kill %s (pid %d): %w", b.name, pid, err)
	}
	<-b.done
	return nil
}

// Package display runs a virtual framebuffer X server for the lifetime of a callback.
package display

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/logfields"
	"github.com/eegrasp/graspci/internal/process"
)

// DefaultSocketDir is where X servers create their unix sockets.
const DefaultSocketDir = "/tmp/.X11-unix"

const (
	pollInterval = 50 * time.Millisecond
	stopGrace    = 3 * time.Second
)

// ErrServerExited is returned when the server dies before becoming ready.
var ErrServerExited = errors.RuntimeError("display server exited during startup").Build()

// Options configure the server.
type Options struct {
	Binary         string
	Number         int
	Screen         string
	StartupTimeout time.Duration
	// Args replaces the default Xvfb arguments when non-nil.
	Args      []string
	SocketDir string
}

// FromConfig converts the test task's display section.
func FromConfig(d config.DisplayConfig) Options {
	return Options{
		Binary:         d.Binary,
		Number:         d.Number,
		Screen:         d.Screen,
		StartupTimeout: d.StartupTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.Binary == "" {
		o.Binary = "Xvfb"
	}
	if o.Screen == "" {
		o.Screen = "1280x1024x24"
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = 10 * time.Second
	}
	if o.SocketDir == "" {
		o.SocketDir = DefaultSocketDir
	}
	return o
}

func (o Options) command() process.Command {
	args := o.Args
	if args == nil {
		args = []string{Name(o.Number), "-screen", "0", o.Screen, "-nolisten", "tcp"}
	}
	return process.Command{Name: o.Binary, Args: args}
}

// Display is an acquired X display.
type Display struct {
	Number int
	PID    int
}

// Name returns the X display name, e.g. ":99".
func Name(n int) string { return ":" + strconv.Itoa(n) }

// Name returns the X display name.
func (d Display) Name() string { return Name(d.Number) }

// Env returns the DISPLAY assignment for child processes.
func (d Display) Env() []string { return []string{"DISPLAY=" + d.Name()} }

// With starts the server, waits until it is ready and calls fn. The server
// process group is stopped when With returns, whether fn succeeds, fails,
// panics or ctx is cancelled.
func With(ctx context.Context, opts Options, fn func(ctx context.Context, d Display) error) (err error) {
	opts = opts.withDefaults()
	log := slog.With(logfields.Display(Name(opts.Number)))

	srv, err := process.Start(opts.command())
	if err != nil {
		return errors.RuntimeError("failed to start display server").
			WithCause(err).
			WithContext("binary", opts.Binary).
			Build()
	}
	d := Display{Number: opts.Number, PID: srv.Pid()}
	defer func() {
		if stopErr := srv.Stop(stopGrace); stopErr != nil {
			log.Error("Failed to stop display server", logfields.PID(d.PID), logfields.Error(stopErr))
			if err == nil {
				err = errors.RuntimeError("failed to stop display server").WithCause(stopErr).Build()
			}
			return
		}
		log.Debug("Display server stopped", logfields.PID(d.PID))
	}()

	if err := waitReady(ctx, opts, srv); err != nil {
		return err
	}
	log.Info("Display server ready", logfields.PID(d.PID))
	return fn(ctx, d)
}

// waitReady returns once the server socket has been seen on two consecutive
// polls with the server still running, so a stale socket left by another
// server is not mistaken for ours. A server that is still alive when the
// startup timeout elapses is treated as ready.
func waitReady(ctx context.Context, opts Options, srv *process.Background) error {
	socket := filepath.Join(opts.SocketDir, "X"+strconv.Itoa(opts.Number))
	deadline := time.NewTimer(opts.StartupTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	seen := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-srv.Done():
			return ErrServerExited.WithContext("display", Name(opts.Number)).WithContext("cause", fmt.Sprint(srv.Err()))
		case <-deadline.C:
			slog.Debug("Display socket not confirmed, server still running", logfields.Path(socket))
			return nil
		case <-tick.C:
			_, err := os.Stat(socket)
			if err != nil || srv.Exited() {
				seen = false
				continue
			}
			if seen {
				return nil
			}
			seen = true
		}
	}
}

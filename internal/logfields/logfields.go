package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyPipeline   = "pipeline"
	KeyStep       = "step"
	KeyState      = "state"
	KeyDurationMS = "duration_ms"
	KeyScript     = "script"
	KeyExitCode   = "exit_code"
	KeyCommand    = "command"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyRef        = "ref"
	KeyTag        = "tag"
	KeyVersion    = "version"
	KeyBranch     = "branch"
	KeyPR         = "pull_request"
	KeyRepo       = "repository"
	KeyLabel      = "label"
	KeyDisplay    = "display"
	KeyPID        = "pid"
	KeyURL        = "url"
	KeyTask       = "task"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Pipeline(name string) slog.Attr   { return slog.String(KeyPipeline, name) }
func Step(name string) slog.Attr       { return slog.String(KeyStep, name) }
func State(s string) slog.Attr         { return slog.String(KeyState, s) }
func Script(p string) slog.Attr        { return slog.String(KeyScript, p) }
func ExitCode(c int) slog.Attr         { return slog.Int(KeyExitCode, c) }
func Command(c string) slog.Attr       { return slog.String(KeyCommand, c) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func Ref(r string) slog.Attr           { return slog.String(KeyRef, r) }
func Tag(t string) slog.Attr           { return slog.String(KeyTag, t) }
func Version(v string) slog.Attr       { return slog.String(KeyVersion, v) }
func Branch(b string) slog.Attr        { return slog.String(KeyBranch, b) }
func PullRequest(n int) slog.Attr      { return slog.Int(KeyPR, n) }
func Repository(r string) slog.Attr    { return slog.String(KeyRepo, r) }
func Label(l string) slog.Attr         { return slog.String(KeyLabel, l) }
func Display(d string) slog.Attr       { return slog.String(KeyDisplay, d) }
func PID(pid int) slog.Attr            { return slog.Int(KeyPID, pid) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Task(name string) slog.Attr       { return slog.String(KeyTask, name) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

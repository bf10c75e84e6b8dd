package pyversion

import (
	"log/slog"
	"path/filepath"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/logfields"
)

// Report lists the version held by the source and every mirror.
type Report struct {
	Source  FileVersion
	Mirrors []FileVersion
}

// InSync reports whether every file was readable and agrees with the source.
func (r *Report) InSync() bool {
	if r.Source.Err != nil {
		return false
	}
	for _, m := range r.Mirrors {
		if m.Err != nil || m.Version != r.Source.Version {
			return false
		}
	}
	return true
}

// Drifted returns the mirrors that disagree with the source.
func (r *Report) Drifted() []FileVersion {
	var out []FileVersion
	for _, m := range r.Mirrors {
		if m.Err != nil || m.Version != r.Source.Version {
			out = append(out, m)
		}
	}
	return out
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}

// Check reads the source and every mirror under root.
func Check(root string, cfg config.VersionConfig) *Report {
	report := &Report{}
	src := resolve(root, cfg.Source)
	v, err := Read(src)
	report.Source = FileVersion{Path: src, Version: v, Err: err}
	for _, m := range cfg.Mirrors {
		p := resolve(root, m)
		v, err := Read(p)
		report.Mirrors = append(report.Mirrors, FileVersion{Path: p, Version: v, Err: err})
	}
	return report
}

// Sync writes version into the source, then regenerates every mirror from the value read back.
func Sync(root string, cfg config.VersionConfig, version string) (*Report, error) {
	src := resolve(root, cfg.Source)
	if err := Rewrite(src, version); err != nil {
		return nil, err
	}
	value, err := Read(src)
	if err != nil {
		return nil, err
	}
	slog.Info("Version source updated", logfields.File(src), logfields.Version(value))

	for _, m := range cfg.Mirrors {
		p := resolve(root, m)
		if err := Rewrite(p, value); err != nil {
			return nil, err
		}
		slog.Debug("Version mirror regenerated", logfields.File(p), logfields.Version(value))
	}

	report := Check(root, cfg)
	if !report.InSync() {
		drift := report.Drifted()
		return report, ErrVersionMismatch.WithContext("file", drift[0].Path).WithContext("want", value)
	}
	return report, nil
}

// ErrDrift signals that version files disagree.
var ErrDrift = errors.ValidationError("version files disagree").Build()

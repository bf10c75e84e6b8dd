package release

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/logfields"
	"github.com/eegrasp/graspci/internal/process"
)

var (
	// ErrNoArtifacts signals that the build produced neither an sdist nor a wheel.
	ErrNoArtifacts = errors.PackageError("build produced no distribution artifacts").Build()

	// ErrTokenMissing signals that no index token is configured for upload.
	ErrTokenMissing = errors.AuthError("package index token missing (set PYPI_API_TOKEN)").Build()
)

// artifactPatterns match sdists and wheels.
var artifactPatterns = []string{"*.tar.gz", "*.zip", "*.whl"}

// Packager builds, checks and uploads the Python distribution.
type Packager struct {
	cfg    *config.Config
	runner process.Runner
}

// NewPackager creates a Packager running tools through runner.
func NewPackager(cfg *config.Config, runner process.Runner) *Packager {
	return &Packager{cfg: cfg, runner: runner}
}

func (p *Packager) command(argv []string, extra ...string) (process.Command, error) {
	cmd, err := process.FromArgv(argv)
	if err != nil {
		return cmd, errors.ConfigError("release command is empty").WithCause(err).Build()
	}
	cmd.Args = append(cmd.Args, extra...)
	cmd.Dir = p.cfg.Project.Root
	return cmd, nil
}

// Build removes stale artifacts, runs the build command and returns the artifacts relative to the project root.
func (p *Packager) Build(ctx context.Context) ([]string, error) {
	dist := p.cfg.Resolve(p.cfg.Release.DistDir)
	if err := os.RemoveAll(dist); err != nil {
		return nil, errors.FileSystemError("failed to remove stale dist directory").WithCause(err).WithContext("path", dist).Build()
	}

	cmd, err := p.command(p.cfg.Release.Build)
	if err != nil {
		return nil, err
	}
	slog.Info("Building distribution", logfields.Command(cmd.String()))
	if _, err := p.runner.Run(ctx, cmd); err != nil {
		return nil, errors.PackageError("distribution build failed").
			WithCause(err).
			WithContext("command", cmd.String()).
			WithContext("exit_code", process.ExitCode(err)).
			Build()
	}
	return p.Artifacts()
}

// Artifacts lists the distribution files in the dist directory, sorted.
func (p *Packager) Artifacts() ([]string, error) {
	dist := p.cfg.Release.DistDir
	abs := p.cfg.Resolve(dist)
	var out []string
	for _, pattern := range artifactPatterns {
		matches, err := filepath.Glob(filepath.Join(abs, pattern))
		if err != nil {
			return nil, errors.InternalError("invalid artifact pattern").WithCause(err).Build()
		}
		for _, m := range matches {
			out = append(out, filepath.Join(dist, filepath.Base(m)))
		}
	}
	if len(out) == 0 {
		return nil, ErrNoArtifacts.WithContext("path", abs)
	}
	sort.Strings(out)
	return out, nil
}

// Check runs the package checker (twine check) over artifacts.
func (p *Packager) Check(ctx context.Context, artifacts []string) error {
	cmd, err := p.command(p.cfg.Release.Check, artifacts...)
	if err != nil {
		return err
	}
	slog.Info("Checking distribution", logfields.Command(cmd.String()))
	if _, err := p.runner.Run(ctx, cmd); err != nil {
		return errors.PackageError("package check failed").
			WithCause(err).
			WithContext("command", cmd.String()).
			WithContext("exit_code", process.ExitCode(err)).
			Build()
	}
	return nil
}

// Upload publishes artifacts with the configured token. The token is passed via the environment only.
func (p *Packager) Upload(ctx context.Context, artifacts []string) error {
	token := strings.TrimSpace(p.cfg.Release.Token)
	if token == "" {
		return ErrTokenMissing
	}
	var extra []string
	if p.cfg.Release.RepositoryURL != "" {
		extra = append(extra, "--repository-url", p.cfg.Release.RepositoryURL)
	}
	extra = append(extra, artifacts...)
	cmd, err := p.command(p.cfg.Release.Upload, extra...)
	if err != nil {
		return err
	}
	cmd.Env = []string{"TWINE_USERNAME=__token__", "TWINE_PASSWORD=" + token}

	slog.Info("Uploading distribution", logfields.Command(cmd.String()))
	if _, err := p.runner.Run(ctx, cmd); err != nil {
		return errors.UploadError("upload rejected").
			WithCause(err).
			WithContext("command", cmd.String()).
			WithContext("exit_code", process.ExitCode(err)).
			Build()
	}
	return nil
}

package tasks

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/display"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/lint"
	"github.com/eegrasp/graspci/internal/process"
	"github.com/eegrasp/graspci/internal/release"
)

func projectConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Project.Root = t.TempDir()
	return cfg
}

func touch(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
}

type fakeDisplay struct {
	acquired int
	released int
}

func (f *fakeDisplay) With(ctx context.Context, opts display.Options, fn func(context.Context, display.Display) error) error {
	f.acquired++
	defer func() { f.released++ }()
	return fn(ctx, display.Display{Number: opts.Number, PID: 1234})
}

func TestCleanRemovesBuildOutputs(t *testing.T) {
	cfg := projectConfig(t)
	root := cfg.Project.Root
	for _, rel := range []string{
		"build/lib/eegrasp/__init__.py",
		"dist/eegrasp-1.0.0.tar.gz",
		"eegrasp.egg-info/PKG-INFO",
		".coverage",
		"htmlcov/index.html",
		"eegrasp/__pycache__/graph.cpython-311.pyc",
		"doc/_build/html/index.html",
		"eegrasp/graph.py",
		"doc/conf.py",
		".git/__pycache__/keep",
		"eegrasp/dist/__init__.py",
		"doc/build/figure.png",
		"venv/lib/python3.11/site-packages/pip/_internal/operations/build/wheel.py",
		"env/lib/python3.11/site-packages/pkg/__pycache__/mod.pyc",
	} {
		touch(t, root, rel)
	}

	removed, err := New(cfg, &process.FakeRunner{}).Clean(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		".coverage",
		"build",
		"dist",
		"doc/_build",
		"eegrasp.egg-info",
		"eegrasp/__pycache__",
		"htmlcov",
	}, removed)

	assert.FileExists(t, filepath.Join(root, "eegrasp", "graph.py"))
	assert.FileExists(t, filepath.Join(root, "doc", "conf.py"))
	assert.FileExists(t, filepath.Join(root, ".git", "__pycache__", "keep"))
	assert.FileExists(t, filepath.Join(root, "eegrasp", "dist", "__init__.py"), "only the root dist is a build output")
	assert.FileExists(t, filepath.Join(root, "doc", "build", "figure.png"))
	assert.FileExists(t, filepath.Join(root, "venv", "lib", "python3.11", "site-packages", "pip", "_internal", "operations", "build", "wheel.py"))
	assert.FileExists(t, filepath.Join(root, "env", "lib", "python3.11", "site-packages", "pkg", "__pycache__", "mod.pyc"))
	assert.NoDirExists(t, filepath.Join(root, "build"))
	assert.NoDirExists(t, filepath.Join(root, "doc", "_build"))
}

func TestMatchesClean(t *testing.T) {
	patterns := []string{"build", "/dist", "doc/_build", "**/__pycache__", "**/*.egg-info"}
	assert.True(t, matchesClean(patterns, "build", "build"))
	assert.True(t, matchesClean(patterns, "dist", "dist"))
	assert.True(t, matchesClean(patterns, "doc/_build", "_build"))
	assert.True(t, matchesClean(patterns, "src/eegrasp.egg-info", "eegrasp.egg-info"))
	assert.True(t, matchesClean(patterns, "eegrasp/io/__pycache__", "__pycache__"))
	assert.False(t, matchesClean(patterns, "eegrasp/build", "build"))
	assert.False(t, matchesClean(patterns, "eegrasp/dist", "dist"))
	assert.False(t, matchesClean(patterns, "examples/doc/_build", "_build"))
}

func TestTestTaskUsesScopedDisplay(t *testing.T) {
	cfg := projectConfig(t)
	cfg.Tasks.Test.Env = map[string]string{"PYTEST_ADDOPTS": "-q"}
	fake := &process.FakeRunner{}
	disp := &fakeDisplay{}

	require.NoError(t, New(cfg, fake, WithDisplay(disp.With)).Test(context.Background()))

	assert.Equal(t, 1, disp.acquired)
	assert.Equal(t, 1, disp.released)
	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "python -m coverage run -m pytest", calls[0].String())
	assert.Equal(t, "python -m coverage html", calls[2].String())
	for _, c := range calls {
		assert.Equal(t, []string{"MPLBACKEND=agg", "PYTEST_ADDOPTS=-q", "DISPLAY=:99"}, c.Env)
		assert.Equal(t, cfg.Project.Root, c.Dir)
	}
}

func TestTestTaskReleasesDisplayOnFailure(t *testing.T) {
	cfg := projectConfig(t)
	fake := &process.FakeRunner{Handler: func(cmd process.Command) (process.Result, error) {
		return process.Fail(cmd, 1)
	}}
	disp := &fakeDisplay{}

	err := New(cfg, fake, WithDisplay(disp.With)).Test(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryRuntime))
	assert.Equal(t, 1, disp.released)
	assert.Len(t, fake.Calls(), 1, "report commands are skipped after a failing test run")
}

func TestTestTaskWithoutDisplay(t *testing.T) {
	cfg := projectConfig(t)
	off := false
	cfg.Tasks.Test.Display.Enabled = &off
	fake := &process.FakeRunner{}
	disp := &fakeDisplay{}

	require.NoError(t, New(cfg, fake, WithDisplay(disp.With)).Test(context.Background()))
	assert.Zero(t, disp.acquired)
	assert.Equal(t, []string{"MPLBACKEND=agg"}, fake.Calls()[0].Env)
}

func TestDocTask(t *testing.T) {
	cfg := projectConfig(t)
	fake := &process.FakeRunner{}
	require.NoError(t, New(cfg, fake).Run(context.Background(), Doc))
	assert.Equal(t, []string{"python -m sphinx -b html doc doc/_build/html"}, fake.CommandLines())
}

func distRunner(t *testing.T, root string) *process.FakeRunner {
	t.Helper()
	return &process.FakeRunner{Handler: func(cmd process.Command) (process.Result, error) {
		if len(cmd.Args) > 1 && cmd.Args[1] == "build" {
			touch(t, root, "dist/eegrasp-1.2.3.tar.gz")
			touch(t, root, "dist/eegrasp-1.2.3-py3-none-any.whl")
		}
		return process.Result{}, nil
	}}
}

func TestDistTask(t *testing.T) {
	cfg := projectConfig(t)
	fake := distRunner(t, cfg.Project.Root)

	artifacts, err := New(cfg, fake).Dist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("dist", "eegrasp-1.2.3-py3-none-any.whl"),
		filepath.Join("dist", "eegrasp-1.2.3.tar.gz"),
	}, artifacts)
	lines := fake.CommandLines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "twine check --strict")
}

func TestReleaseTaskRequiresToken(t *testing.T) {
	cfg := projectConfig(t)
	cfg.Release.Token = ""
	fake := distRunner(t, cfg.Project.Root)

	err := New(cfg, fake).Run(context.Background(), Release)
	require.ErrorIs(t, err, release.ErrTokenMissing)
	assert.Len(t, fake.Calls(), 2, "upload must not run without a token")
}

func TestReleaseTaskUploads(t *testing.T) {
	cfg := projectConfig(t)
	cfg.Release.Token = "pypi-secret"
	fake := distRunner(t, cfg.Project.Root)

	require.NoError(t, New(cfg, fake).Run(context.Background(), Release))
	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[2].Env, "TWINE_PASSWORD=pypi-secret")
}

func TestLintTask(t *testing.T) {
	cfg := projectConfig(t)
	touch(t, cfg.Project.Root, "eegrasp/ok.py")
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Project.Root, "eegrasp", "graph.py"), []byte("# teh graph\n"), 0o644))

	var out bytes.Buffer
	res, err := New(cfg, &process.FakeRunner{}, WithOutput(&out)).Lint(context.Background(), false)
	require.ErrorIs(t, err, lint.ErrMisspellings)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Remaining())
	assert.Contains(t, out.String(), "eegrasp/graph.py:1:3: teh ==> the")

	res, err = New(cfg, &process.FakeRunner{}, WithOutput(&out)).Lint(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FixedCount())
}

func TestUnknownTask(t *testing.T) {
	err := New(projectConfig(t), &process.FakeRunner{}).Run(context.Background(), "deploy")
	require.ErrorIs(t, err, ErrUnknownTask)
	assert.False(t, stderrors.Is(err, release.ErrTokenMissing))
}

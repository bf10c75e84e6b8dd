package examples

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/process"
)

func project(t *testing.T, scripts map[string]string) *config.Config {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "examples")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "datasets"), 0o755))
	for name, body := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Project.Root = root
	return cfg
}

func TestDiscoverSortedAndFiltered(t *testing.T) {
	cfg := project(t, map[string]string{"b.py": "", "a.py": "", "notes.txt": ""})
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Project.Root, "examples", "dir.py"), 0o755))

	scripts, err := Discover(filepath.Join(cfg.Project.Root, "examples"), "*.py")
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Equal(t, "a.py", filepath.Base(scripts[0]))
	assert.Equal(t, "b.py", filepath.Base(scripts[1]))
}

func TestDiscoverEmpty(t *testing.T) {
	_, err := Discover(t.TempDir(), "*.py")
	require.ErrorIs(t, err, ErrNoExamples)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	cfg := project(t, map[string]string{"a_ok.py": "", "b_broken.py": "", "c_never.py": ""})
	runner := &process.FakeRunner{Handler: func(cmd process.Command) (process.Result, error) {
		if cmd.Args[0] == filepath.Join("examples", "b_broken.py") {
			return process.Fail(cmd, 1)
		}
		return process.Result{}, nil
	}}

	report, err := NewRunner(cfg, runner, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryExample))
	require.Len(t, report.Executed, 2)
	require.NotNil(t, report.Failed)
	assert.Equal(t, filepath.Join("examples", "b_broken.py"), report.Failed.Script)
	assert.Equal(t, 1, report.Failed.ExitCode)
	assert.Equal(t, []string{"python examples/a_ok.py", "python examples/b_broken.py"}, runner.CommandLines())
}

func TestRunRealInterpreterFailure(t *testing.T) {
	cfg := project(t, map[string]string{
		"01_ok.sh":     "exit 0\n",
		"02_raise.sh":  "echo 'Traceback: ZeroDivisionError' >&2; exit 1\n",
		"03_marker.sh": "touch ran-03\n",
	})
	cfg.Project.Python = "sh"
	cfg.Examples.Pattern = "*.sh"

	report, err := NewRunner(cfg, &process.ExecRunner{}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Len(t, report.Executed, 2)
	_, statErr := os.Stat(filepath.Join(cfg.Project.Root, "ran-03"))
	assert.True(t, os.IsNotExist(statErr), "later scripts must not run")
}

func TestInstall(t *testing.T) {
	cfg := project(t, map[string]string{"a.py": ""})
	runner := &process.FakeRunner{}
	require.NoError(t, NewRunner(cfg, runner, nil).Install(context.Background()))
	assert.Equal(t, []string{"python -m pip install -e ."}, runner.CommandLines())

	failing := &process.FakeRunner{Handler: func(cmd process.Command) (process.Result, error) { return process.Fail(cmd, 2) }}
	err := NewRunner(cfg, failing, nil).Install(context.Background())
	assert.True(t, errors.HasCategory(err, errors.CategoryPackage))

	cfg.Examples.Install = []string{}
	none := &process.FakeRunner{}
	require.NoError(t, NewRunner(cfg, none, nil).Install(context.Background()))
	assert.Empty(t, none.Calls())
}

package release

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/process"
)

const pyproject = "[project]\nname = \"eegrasp\"\nversion = \"0.0.2\"\n"
const setupPy = "from setuptools import setup\n\nsetup(\n    name='eegrasp',\n    version='0.0.2',\n)\n"

func fixture(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(pyproject), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.py"), []byte(setupPy), 0o644))

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Project.Root = dir
	cfg.Release.Token = "pypi-secret"
	return cfg
}

// buildingRunner fakes `python -m build` by writing artifacts into dist.
func buildingRunner(cfg *config.Config, fail string) *process.FakeRunner {
	return &process.FakeRunner{Handler: func(cmd process.Command) (process.Result, error) {
		line := cmd.String()
		if fail != "" && strings.Contains(line, fail) {
			return process.Fail(cmd, 1)
		}
		if strings.Contains(line, "-m build") {
			dist := cfg.Resolve(cfg.Release.DistDir)
			_ = os.MkdirAll(dist, 0o755)
			_ = os.WriteFile(filepath.Join(dist, "eegrasp-1.2.3.tar.gz"), []byte("sdist"), 0o644)
			_ = os.WriteFile(filepath.Join(dist, "eegrasp-1.2.3-py3-none-any.whl"), []byte("wheel"), 0o644)
		}
		return process.Result{}, nil
	}}
}

func TestParseTagRef(t *testing.T) {
	valid := map[string]string{
		"refs/tags/v1.2.3":       "1.2.3",
		"refs/tags/v0.0.2":       "0.0.2",
		"refs/tags/v2.0.0-rc.1":  "2.0.0-rc.1",
		"refs/tags/v10.20.30+b1": "10.20.30+b1",
	}
	for ref, want := range valid {
		tag, err := ParseTagRef(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, tag.Version, ref)
	}

	for _, ref := range []string{"refs/heads/main", "refs/pull/1/merge", "v1.2.3", "", "refs/tags/"} {
		_, err := ParseTagRef(ref)
		assert.ErrorIs(t, err, ErrNotATag, ref)
	}
	for _, ref := range []string{"refs/tags/1.2.3", "refs/tags/v1.2", "refs/tags/v1", "refs/tags/latest"} {
		_, err := ParseTagRef(ref)
		assert.ErrorIs(t, err, ErrInvalidTag, ref)
	}
}

func TestParseVersion(t *testing.T) {
	for in, want := range map[string]string{"1.2.3": "1.2.3", "v1.2.3": "1.2.3", "2.0.0-rc.1": "2.0.0-rc.1"} {
		tag, err := ParseVersion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, tag.Version, in)
		assert.Equal(t, "v"+want, tag.Name, in)
	}
	for _, in := range []string{"banana", "", "1.2", "v1", "1.2.3.4", "va.b.c"} {
		_, err := ParseVersion(in)
		assert.ErrorIs(t, err, ErrInvalidVersion, in)
	}
}

func TestPipelineRejectsNonTagWithoutSideEffects(t *testing.T) {
	cfg := fixture(t)
	runner := buildingRunner(cfg, "")
	p := NewPipeline(cfg, runner)

	res, err := p.Run(context.Background(), "refs/heads/main")
	require.ErrorIs(t, err, ErrNotATag)
	assert.Equal(t, StateNotATag, res.State)
	assert.Empty(t, runner.Calls())

	data, _ := os.ReadFile(filepath.Join(cfg.Project.Root, "pyproject.toml"))
	assert.Equal(t, pyproject, string(data))
	_, statErr := os.Stat(cfg.Resolve("dist"))
	assert.True(t, os.IsNotExist(statErr))

	assert.Equal(t, 11, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestPipelinePublishes(t *testing.T) {
	cfg := fixture(t)
	runner := buildingRunner(cfg, "")
	p := NewPipeline(cfg, runner)

	res, err := p.Run(context.Background(), "refs/tags/v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, StatePublished, res.State)
	assert.Equal(t, []string{"dist/eegrasp-1.2.3-py3-none-any.whl", "dist/eegrasp-1.2.3.tar.gz"}, res.Artifacts)

	for _, name := range []string{"pyproject.toml", "setup.py"} {
		data, err := os.ReadFile(filepath.Join(cfg.Project.Root, name))
		require.NoError(t, err)
		assert.Contains(t, string(data), "1.2.3", name)
		assert.NotContains(t, string(data), "0.0.2", name)
	}

	calls := runner.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0].String(), "-m build")
	assert.Contains(t, calls[1].String(), "twine check --strict dist/eegrasp-1.2.3-py3-none-any.whl dist/eegrasp-1.2.3.tar.gz")
	assert.Contains(t, calls[2].String(), "twine upload")
	assert.Contains(t, calls[2].Env, "TWINE_USERNAME=__token__")
	assert.Contains(t, calls[2].Env, "TWINE_PASSWORD=pypi-secret")
	assert.NotContains(t, calls[2].String(), "pypi-secret")
	for _, c := range calls {
		assert.Equal(t, cfg.Project.Root, c.Dir)
	}
}

func TestPipelineStopsAtFailingStep(t *testing.T) {
	tests := []struct {
		fail      string
		state     State
		calls     int
		category  errors.ErrorCategory
		uploadRan bool
	}{
		{"-m build", StateVersionRewritten, 1, errors.CategoryPackage, false},
		{"twine check", StateBuilt, 2, errors.CategoryPackage, false},
		{"twine upload", StateChecked, 3, errors.CategoryUpload, true},
	}
	for _, tt := range tests {
		t.Run(tt.fail, func(t *testing.T) {
			cfg := fixture(t)
			runner := buildingRunner(cfg, tt.fail)
			res, err := NewPipeline(cfg, runner).Run(context.Background(), "refs/tags/v1.2.3")
			require.Error(t, err)
			assert.Equal(t, tt.state, res.State)
			assert.Len(t, runner.Calls(), tt.calls)
			assert.Equal(t, tt.category, errors.GetCategory(err))
			assert.Equal(t, 1, process.ExitCode(err))
		})
	}
}

func TestPipelineVersionRewriteFailure(t *testing.T) {
	cfg := fixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Project.Root, "setup.py"), []byte("setup(name='x')\n"), 0o644))
	runner := buildingRunner(cfg, "")

	res, err := NewPipeline(cfg, runner).Run(context.Background(), "refs/tags/v1.2.3")
	require.Error(t, err)
	assert.Equal(t, StateTagDetected, res.State)
	assert.Empty(t, runner.Calls())
}

func TestPipelineMissingToken(t *testing.T) {
	cfg := fixture(t)
	cfg.Release.Token = ""
	runner := buildingRunner(cfg, "")

	res, err := NewPipeline(cfg, runner).Run(context.Background(), "refs/tags/v1.2.3")
	require.True(t, stderrors.Is(err, ErrTokenMissing))
	assert.Equal(t, StateChecked, res.State)
	assert.Len(t, runner.Calls(), 2)
}

func TestPipelineDryRun(t *testing.T) {
	cfg := fixture(t)
	runner := buildingRunner(cfg, "")

	res, err := NewPipeline(cfg, runner, DryRun(true)).Run(context.Background(), "refs/tags/v2.0.0")
	require.NoError(t, err)
	assert.Equal(t, StateVersionRewritten, res.State)
	assert.Empty(t, runner.Calls())

	data, _ := os.ReadFile(filepath.Join(cfg.Project.Root, "setup.py"))
	assert.Contains(t, string(data), "version='2.0.0'")
}

func TestBuildWithoutArtifacts(t *testing.T) {
	cfg := fixture(t)
	_, err := NewPackager(cfg, &process.FakeRunner{}).Build(context.Background())
	require.ErrorIs(t, err, ErrNoArtifacts)
}

func TestStateOrder(t *testing.T) {
	assert.Equal(t, StateVersionRewritten, StateTagDetected.Next())
	assert.Equal(t, StatePublished, StateChecked.Next())
	assert.Equal(t, State(""), StatePublished.Next())
	assert.True(t, StateNotATag.Terminal())
	assert.False(t, StateBuilt.Terminal())
}

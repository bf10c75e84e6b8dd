package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegrasp/graspci/internal/cienv"
	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/forge"
	"github.com/eegrasp/graspci/internal/process"
	"github.com/eegrasp/graspci/internal/pyversion"
	"github.com/eegrasp/graspci/internal/release"
)

type fakeForge struct {
	pr *forge.PullRequest
}

func (f *fakeForge) GetPullRequest(_ context.Context, number int) (*forge.PullRequest, error) {
	pr := *f.pr
	pr.Number = number
	return &pr, nil
}

func (f *fakeForge) AddLabels(context.Context, int, ...string) error { return nil }

func (f *fakeForge) MergePullRequest(context.Context, int, string) (*forge.MergeResult, error) {
	return &forge.MergeResult{Merged: true, SHA: "abc123"}, nil
}

func (f *fakeForge) DeleteBranch(context.Context, string) error { return nil }

func clearActionsEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GITHUB_ACTIONS", "GITHUB_EVENT_NAME", "GITHUB_EVENT_PATH", "GITHUB_REF", "GITHUB_HEAD_REF", "GITHUB_BASE_REF"} {
		t.Setenv(k, "")
	}
}

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(cli, kong.Name("graspci"), kong.Vars{"version": "test"}, kong.Exit(func(int) {}))
	require.NoError(t, err)
	return parser
}

func TestCLIParsesCommands(t *testing.T) {
	for _, tc := range []struct{ args, want string }{
		{"task clean", "task <name>"},
		{"pr --pr 12 --base dev --head x", "pr"},
		{"version sync v1.2.3", "version sync <version>"},
		{"release --ref v1.0.0 --dry-run", "release"},
		{"history -n 5 --json", "history"},
		{"datasets fetch", "datasets fetch"},
		{"watch --task test", "watch"},
	} {
		var cli CLI
		kctx, err := newParser(t, &cli).Parse(strings.Fields(tc.args))
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want, kctx.Command(), tc.args)
	}
}

func TestCLIRejectsUnknownTask(t *testing.T) {
	var cli CLI
	_, err := newParser(t, &cli).Parse([]string{"task", "deploy"})
	require.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	t.Setenv("GRASPCI_LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, (&CLI{}).LogLevel())
	assert.Equal(t, slog.LevelDebug, (&CLI{Verbose: true}).LogLevel())

	t.Setenv("GRASPCI_LOG_LEVEL", "warn")
	assert.Equal(t, slog.LevelWarn, (&CLI{}).LogLevel())
	t.Setenv("GRASPCI_LOG_LEVEL", "loud")
	assert.Equal(t, slog.LevelInfo, (&CLI{}).LogLevel())
}

func TestNormalizeRef(t *testing.T) {
	assert.Equal(t, "refs/tags/v1.2.3", normalizeRef("v1.2.3"))
	assert.Equal(t, "refs/heads/develop", normalizeRef("develop"))
	assert.Equal(t, "refs/tags/v2.0.0", normalizeRef("refs/tags/v2.0.0"))
	assert.Equal(t, "refs/pull/3/merge", normalizeRef("refs/pull/3/merge"))
}

func TestResolvePullRequestFromFlags(t *testing.T) {
	clearActionsEnv(t)
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Forge.Token = ""
	cfg.Forge.Repository = "eegrasp/eegrasp"

	pr, err := PullRequestFlags{Number: 7, Base: "develop", Head: "feature", HeadRepo: "someone/eegrasp"}.resolve(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "develop", pr.Base)
	assert.True(t, pr.IsFork())
}

func TestResolvePullRequestFromAPI(t *testing.T) {
	clearActionsEnv(t)
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Forge.Token = "ghp_test"

	orig := newForgeClient
	t.Cleanup(func() { newForgeClient = orig })
	newForgeClient = func(config.ForgeConfig) (forge.Client, error) {
		return &fakeForge{pr: &forge.PullRequest{Base: "develop", Head: "fix-typo", State: "open"}}, nil
	}

	pr, err := PullRequestFlags{Number: 42}.resolve(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "fix-typo", pr.Head)
}

func TestResolvePullRequestMissing(t *testing.T) {
	clearActionsEnv(t)
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Forge.Token = ""

	_, err = PullRequestFlags{}.resolve(context.Background(), cfg)
	require.ErrorIs(t, err, cienv.ErrNotPullRequest)
}

func writeProject(t *testing.T, sourceVersion, mirrorVersion string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"),
		[]byte("[project]\nname = \"eegrasp\"\nversion = \""+sourceVersion+"\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.py"),
		[]byte("from setuptools import setup\n\nsetup(\n    name=\"eegrasp\",\n    version=\""+mirrorVersion+"\",\n)\n"), 0o644))
	cfgPath := filepath.Join(dir, "graspci.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("project:\n  root: "+dir+"\nhistory:\n  disabled: true\n"), 0o644))
	return dir, cfgPath
}

func TestVersionCheckDetectsDrift(t *testing.T) {
	_, cfgPath := writeProject(t, "1.0.0", "0.9.0")
	err := VersionCheckCmd{}.Run(&Global{}, &CLI{Config: cfgPath})
	require.ErrorIs(t, err, pyversion.ErrDrift)
}

func TestVersionSyncRewritesFiles(t *testing.T) {
	dir, cfgPath := writeProject(t, "1.0.0", "0.9.0")
	root := &CLI{Config: cfgPath}

	require.NoError(t, (&VersionSyncCmd{Version: "v1.1.0"}).Run(&Global{}, root))
	require.NoError(t, VersionCheckCmd{}.Run(&Global{}, root))

	v, err := pyversion.Read(filepath.Join(dir, "setup.py"))
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v)
}

func TestVersionSyncRejectsInvalidVersion(t *testing.T) {
	dir, cfgPath := writeProject(t, "1.0.0", "1.0.0")

	err := (&VersionSyncCmd{Version: "banana"}).Run(&Global{}, &CLI{Config: cfgPath})
	require.ErrorIs(t, err, release.ErrInvalidVersion)

	v, err := pyversion.Read(filepath.Join(dir, "pyproject.toml"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v, "an invalid version must not be written")
}

func TestPRIntoMainIsRecordedAsSkipped(t *testing.T) {
	clearActionsEnv(t)
	t.Setenv("GITHUB_TOKEN", "")
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "examples"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "examples", "plot_graph.py"), []byte("print('ok')\n"), 0o644))
	cfgPath := filepath.Join(dir, "graspci.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("project:\n  root: "+dir+"\n"), 0o644))

	orig := newForgeClient
	t.Cleanup(func() { newForgeClient = orig })
	newForgeClient = func(config.ForgeConfig) (forge.Client, error) {
		t.Fatal("the forge must not be contacted for a pull request into main")
		return nil, nil
	}

	fake := &process.FakeRunner{}
	cmd := &PRCmd{PullRequestFlags: PullRequestFlags{Number: 5, Base: "main", Head: "feature"}, SkipInstall: true}
	require.NoError(t, cmd.Run(&Global{Runner: fake}, &CLI{Config: cfgPath}))
	assert.Len(t, fake.Calls(), 1, "the example still runs")

	store, err := eventstore.NewSQLiteStore(filepath.Join(dir, ".graspci", "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	proj := eventstore.NewRunHistoryProjection(store, 5)
	require.NoError(t, proj.Rebuild(context.Background()))
	runs := proj.Recent()
	require.Len(t, runs, 1)
	assert.Equal(t, "pr", runs[0].Pipeline)
	assert.Equal(t, eventstore.StatusSkipped, runs[0].Status)
	assert.Contains(t, runs[0].Error, "left for review")
}

package config

import (
	"os"
	"time"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

// defaultAppliers runs in order; later domains may read values defaulted earlier (project.python).
var defaultAppliers = []DefaultApplier{
	projectDefaults{},
	versionDefaults{},
	examplesDefaults{},
	lintDefaults{},
	autoMergeDefaults{},
	forgeDefaults{},
	releaseDefaults{},
	tasksDefaults{},
	datasetsDefaults{},
	ambientDefaults{},
}

func applyDefaults(cfg *Config) {
	for _, a := range defaultAppliers {
		a.ApplyDefaults(cfg)
	}
}

type projectDefaults struct{}

func (projectDefaults) Domain() string { return "project" }

func (projectDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = "."
	}
	if cfg.Project.Python == "" {
		cfg.Project.Python = "python"
	}
	if cfg.Project.Package == "" {
		cfg.Project.Package = "eegrasp"
	}
}

type versionDefaults struct{}

func (versionDefaults) Domain() string { return "version" }

func (versionDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Version.Source == "" {
		cfg.Version.Source = "pyproject.toml"
		if len(cfg.Version.Mirrors) == 0 {
			cfg.Version.Mirrors = []string{"setup.py"}
		}
	}
}

type examplesDefaults struct{}

func (examplesDefaults) Domain() string { return "examples" }

func (examplesDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Examples.Dir == "" {
		cfg.Examples.Dir = "examples"
	}
	if cfg.Examples.Pattern == "" {
		cfg.Examples.Pattern = "*.py"
	}
	if cfg.Examples.Install == nil {
		cfg.Examples.Install = []string{cfg.Project.Python, "-m", "pip", "install", "-e", "."}
	}
}

// DefaultLintSkip excludes binary and data files plus the example datasets.
var DefaultLintSkip = []string{
	".git", ".venv", "venv", "build", "dist", "*.egg-info", "__pycache__",
	"datasets", "examples/datasets",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.ico", "*.pdf",
	"*.edf", "*.fif", "*.set", "*.fdt", "*.bdf", "*.npy", "*.npz", "*.mat", "*.pkl", "*.h5",
	"*.zip", "*.gz", "*.tar", "*.whl", "*.ipynb",
}

type lintDefaults struct{}

func (lintDefaults) Domain() string { return "lint" }

func (lintDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Lint.Engine == "" {
		cfg.Lint.Engine = LintEngineBuiltin
	}
	if len(cfg.Lint.Paths) == 0 {
		cfg.Lint.Paths = []string{"."}
	}
	if cfg.Lint.Skip == nil {
		cfg.Lint.Skip = append([]string(nil), DefaultLintSkip...)
	}
	if cfg.Lint.Codespell == "" {
		cfg.Lint.Codespell = "codespell"
	}
}

type autoMergeDefaults struct{}

func (autoMergeDefaults) Domain() string { return "automerge" }

func (autoMergeDefaults) ApplyDefaults(cfg *Config) {
	if cfg.AutoMerge.Label == "" {
		cfg.AutoMerge.Label = "automerge"
	}
	if cfg.AutoMerge.MergeMethod == "" {
		cfg.AutoMerge.MergeMethod = MergeMethodMerge
	}
	if cfg.AutoMerge.MainBranch == "" {
		cfg.AutoMerge.MainBranch = "main"
	}
	if cfg.AutoMerge.ProtectedBranches == nil {
		cfg.AutoMerge.ProtectedBranches = []string{"main", "latest", "testing"}
	}
}

type forgeDefaults struct{}

func (forgeDefaults) Domain() string { return "forge" }

func (forgeDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Forge.APIURL == "" {
		cfg.Forge.APIURL = "https://api.github.com"
	}
	if cfg.Forge.Token == "" {
		cfg.Forge.Token = os.Getenv("GITHUB_TOKEN")
	}
	if cfg.Forge.Repository == "" {
		cfg.Forge.Repository = os.Getenv("GITHUB_REPOSITORY")
	}
	if cfg.Forge.Timeout <= 0 {
		cfg.Forge.Timeout = 30 * time.Second
	}
}

type releaseDefaults struct{}

func (releaseDefaults) Domain() string { return "release" }

func (releaseDefaults) ApplyDefaults(cfg *Config) {
	py := cfg.Project.Python
	if cfg.Release.DistDir == "" {
		cfg.Release.DistDir = "dist"
	}
	if len(cfg.Release.Build) == 0 {
		cfg.Release.Build = []string{py, "-m", "build", "--sdist", "--wheel", "--outdir", cfg.Release.DistDir}
	}
	if len(cfg.Release.Check) == 0 {
		cfg.Release.Check = []string{py, "-m", "twine", "check", "--strict"}
	}
	if len(cfg.Release.Upload) == 0 {
		cfg.Release.Upload = []string{py, "-m", "twine", "upload", "--non-interactive"}
	}
	if cfg.Release.Token == "" {
		cfg.Release.Token = os.Getenv("PYPI_API_TOKEN")
	}
}

type tasksDefaults struct{}

func (tasksDefaults) Domain() string { return "tasks" }

func (tasksDefaults) ApplyDefaults(cfg *Config) {
	py := cfg.Project.Python
	if cfg.Tasks.Clean.Paths == nil {
		cfg.Tasks.Clean.Paths = []string{
			"build", "dist", "*.egg-info", ".coverage", "coverage.xml", "htmlcov",
			".pytest_cache", "doc/_build", "**/__pycache__", "**/*.egg-info",
		}
	}
	if len(cfg.Tasks.Test.Commands) == 0 {
		cfg.Tasks.Test.Commands = [][]string{
			{py, "-m", "coverage", "run", "-m", "pytest"},
			{py, "-m", "coverage", "report"},
			{py, "-m", "coverage", "html"},
		}
	}
	d := &cfg.Tasks.Test.Display
	if d.Binary == "" {
		d.Binary = "Xvfb"
	}
	if d.Number == 0 {
		d.Number = 99
	}
	if d.Screen == "" {
		d.Screen = "1280x1024x24"
	}
	if d.StartupTimeout <= 0 {
		d.StartupTimeout = 10 * time.Second
	}
	if len(cfg.Tasks.Doc.Commands) == 0 {
		cfg.Tasks.Doc.Commands = [][]string{
			{py, "-m", "sphinx", "-b", "html", "doc", "doc/_build/html"},
		}
	}
}

type datasetsDefaults struct{}

func (datasetsDefaults) Domain() string { return "datasets" }

func (datasetsDefaults) ApplyDefaults(cfg *Config) {
	ds := &cfg.Datasets
	if ds.Dir == "" {
		ds.Dir = "datasets"
	}
	if ds.BaseURL == "" {
		ds.BaseURL = "https://physionet.org/files/eegmmidb/1.0.0"
	}
	if len(ds.Subjects) == 0 {
		ds.Subjects = []int{1}
	}
	if len(ds.Runs) == 0 {
		ds.Runs = []int{4, 8, 12}
	}
	if ds.Retry.Backoff == "" {
		ds.Retry.Backoff = RetryBackoffExponential
	} else if m := NormalizeRetryBackoff(string(ds.Retry.Backoff)); m != "" {
		ds.Retry.Backoff = m
	}
	if ds.Retry.Initial <= 0 {
		ds.Retry.Initial = time.Second
	}
	if ds.Retry.Max <= 0 {
		ds.Retry.Max = 30 * time.Second
	}
	if ds.Retry.MaxRetries == 0 {
		ds.Retry.MaxRetries = 3
	}
}

type ambientDefaults struct{}

func (ambientDefaults) Domain() string { return "ambient" }

func (ambientDefaults) ApplyDefaults(cfg *Config) {
	if cfg.History.Path == "" {
		cfg.History.Path = ".graspci/history.db"
	}
	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{cfg.Examples.Dir, cfg.Project.Package}
	}
	if cfg.Watch.Task == "" {
		cfg.Watch.Task = "examples"
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}

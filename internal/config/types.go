package config

import "time"

// Config represents the graspci configuration loaded from graspci.yaml.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Version   VersionConfig   `yaml:"version"`
	Examples  ExamplesConfig  `yaml:"examples"`
	Lint      LintConfig      `yaml:"lint"`
	AutoMerge AutoMergeConfig `yaml:"automerge"`
	Forge     ForgeConfig     `yaml:"forge"`
	Release   ReleaseConfig   `yaml:"release"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Datasets  DatasetsConfig  `yaml:"datasets"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	History   HistoryConfig   `yaml:"history"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ProjectConfig locates the Python project graspci operates on.
type ProjectConfig struct {
	Root    string `yaml:"root"`    // repository root; relative paths below resolve against it
	Python  string `yaml:"python"`  // interpreter used for examples, builds and tests
	Package string `yaml:"package"` // import package directory, e.g. "eegrasp"
}

// VersionConfig names the single version source and the files regenerated from it.
type VersionConfig struct {
	Source  string   `yaml:"source"`
	Mirrors []string `yaml:"mirrors,omitempty"`
}

// ExamplesConfig drives the example smoke test.
type ExamplesConfig struct {
	Dir     string        `yaml:"dir"`
	Pattern string        `yaml:"pattern"`
	Install []string      `yaml:"install,omitempty"` // argv; empty disables the editable install
	Timeout time.Duration `yaml:"timeout,omitempty"` // per script; zero means no limit
}

// LintEngine selects the spell-check implementation.
type LintEngine string

const (
	LintEngineBuiltin   LintEngine = "builtin"
	LintEngineCodespell LintEngine = "codespell"
)

// LintConfig configures the codespell-style spelling check.
type LintConfig struct {
	Engine       LintEngine `yaml:"engine"`
	Paths        []string   `yaml:"paths,omitempty"`
	Skip         []string   `yaml:"skip,omitempty"`
	IgnoreWords  []string   `yaml:"ignore_words,omitempty"`
	Dictionaries []string   `yaml:"dictionaries,omitempty"`
	Codespell    string     `yaml:"codespell,omitempty"` // binary for the codespell engine
}

// MergeMethod is the GitHub merge strategy.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodRebase MergeMethod = "rebase"
)

// AutoMergeConfig configures the gate that merges green pull requests.
type AutoMergeConfig struct {
	Label             string      `yaml:"label"`
	MergeMethod       MergeMethod `yaml:"merge_method"`
	MainBranch        string      `yaml:"main_branch"`
	ProtectedBranches []string    `yaml:"protected_branches"`
	KeepBranch        bool        `yaml:"keep_branch,omitempty"`
}

// ForgeConfig configures the GitHub API client.
type ForgeConfig struct {
	APIURL     string        `yaml:"api_url"`
	Token      string        `yaml:"token,omitempty"`
	Repository string        `yaml:"repository,omitempty"` // owner/name
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// ReleaseConfig configures the tag-triggered release pipeline.
type ReleaseConfig struct {
	DistDir       string   `yaml:"dist_dir"`
	Build         []string `yaml:"build"`
	Check         []string `yaml:"check"`
	Upload        []string `yaml:"upload"`
	Token         string   `yaml:"token,omitempty"`
	RepositoryURL string   `yaml:"repository_url,omitempty"`
}

// TasksConfig configures the local developer tasks.
type TasksConfig struct {
	Clean CleanTask `yaml:"clean"`
	Test  TestTask  `yaml:"test"`
	Doc   DocTask   `yaml:"doc"`
}

// CleanTask lists glob patterns removed by the clean task. Patterns are
// relative to the project root; a "**/" prefix matches a base name at any depth.
type CleanTask struct {
	Paths []string `yaml:"paths"`
}

// TestTask runs the coverage-instrumented test suite under a virtual display.
type TestTask struct {
	Commands [][]string        `yaml:"commands"`
	Env      map[string]string `yaml:"env,omitempty"`
	Display  DisplayConfig     `yaml:"display"`
}

// DisplayConfig configures the virtual framebuffer server.
type DisplayConfig struct {
	Enabled        *bool         `yaml:"enabled,omitempty"`
	Binary         string        `yaml:"binary"`
	Number         int           `yaml:"number"`
	Screen         string        `yaml:"screen"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
}

// IsEnabled reports whether the test task acquires a display (default true).
func (d DisplayConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// DocTask builds the documentation.
type DocTask struct {
	Commands [][]string `yaml:"commands"`
}

// DatasetsConfig configures the EEGBCI dataset prefetch.
type DatasetsConfig struct {
	Dir      string      `yaml:"dir"`
	BaseURL  string      `yaml:"base_url"`
	Subjects []int       `yaml:"subjects"`
	Runs     []int       `yaml:"runs"`
	UseCache *bool       `yaml:"use_cache,omitempty"`
	Retry    RetryConfig `yaml:"retry"`
}

// CacheEnabled reports whether cached files are reused (default true).
func (d DatasetsConfig) CacheEnabled() bool {
	return d.UseCache == nil || *d.UseCache
}

// RetryConfig configures backoff for transient download failures.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Paths    []string      `yaml:"paths"`
	Task     string        `yaml:"task"`
	Debounce time.Duration `yaml:"debounce"`
}

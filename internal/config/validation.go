package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/eegrasp/graspci/internal/errors"
)

// MaxSubject is the highest subject number of the EEG Motor Movement/Imagery dataset.
const MaxSubject = 109

// MaxRun is the highest run number recorded per subject.
const MaxRun = 14

var (
	screenPattern     = regexp.MustCompile(`^\d+x\d+x\d+$`)
	repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
)

// ValidateConfig checks the defaulted configuration for values that cannot work.
func ValidateConfig(cfg *Config) error {
	return newConfigurationValidator(cfg).validate()
}

// configurationValidator coordinates validation across configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(cfg *Config) *configurationValidator {
	return &configurationValidator{config: cfg}
}

func (cv *configurationValidator) validate() error {
	steps := []func() error{
		cv.validateExamples,
		cv.validateLint,
		cv.validateAutoMerge,
		cv.validateForge,
		cv.validateRelease,
		cv.validateDisplay,
		cv.validateDatasets,
		cv.validateWatch,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field, msg string) error {
	return errors.ConfigError(fmt.Sprintf("invalid %s: %s", field, msg)).WithContext("field", field).Build()
}

func (cv *configurationValidator) validateExamples() error {
	if _, err := filepath.Match(cv.config.Examples.Pattern, "x"); err != nil {
		return invalid("examples.pattern", err.Error())
	}
	if cv.config.Examples.Timeout < 0 {
		return invalid("examples.timeout", "must not be negative")
	}
	return nil
}

func (cv *configurationValidator) validateLint() error {
	switch cv.config.Lint.Engine {
	case LintEngineBuiltin, LintEngineCodespell:
	default:
		return invalid("lint.engine", fmt.Sprintf("unsupported engine %q (builtin|codespell)", cv.config.Lint.Engine))
	}
	for _, p := range cv.config.Lint.Skip {
		if _, err := filepath.Match(p, "x"); err != nil {
			return invalid("lint.skip", fmt.Sprintf("%q: %v", p, err))
		}
	}
	return nil
}

func (cv *configurationValidator) validateAutoMerge() error {
	am := cv.config.AutoMerge
	switch am.MergeMethod {
	case MergeMethodMerge, MergeMethodSquash, MergeMethodRebase:
	default:
		return invalid("automerge.merge_method", fmt.Sprintf("unsupported method %q", am.MergeMethod))
	}
	if strings.TrimSpace(am.Label) == "" {
		return invalid("automerge.label", "must not be empty")
	}
	return nil
}

func (cv *configurationValidator) validateForge() error {
	f := cv.config.Forge
	if !strings.HasPrefix(f.APIURL, "http://") && !strings.HasPrefix(f.APIURL, "https://") {
		return invalid("forge.api_url", "must be an http(s) URL")
	}
	if f.Repository != "" && !repositoryPattern.MatchString(f.Repository) {
		return invalid("forge.repository", fmt.Sprintf("%q is not owner/name", f.Repository))
	}
	return nil
}

func (cv *configurationValidator) validateRelease() error {
	r := cv.config.Release
	if strings.TrimSpace(r.DistDir) == "" {
		return invalid("release.dist_dir", "must not be empty")
	}
	return nil
}

func (cv *configurationValidator) validateDisplay() error {
	d := cv.config.Tasks.Test.Display
	if !d.IsEnabled() {
		return nil
	}
	if d.Number < 0 {
		return invalid("tasks.test.display.number", "must not be negative")
	}
	if !screenPattern.MatchString(d.Screen) {
		return invalid("tasks.test.display.screen", fmt.Sprintf("%q is not WxHxD", d.Screen))
	}
	return nil
}

func (cv *configurationValidator) validateDatasets() error {
	ds := cv.config.Datasets
	for _, s := range ds.Subjects {
		if s < 1 || s > MaxSubject {
			return invalid("datasets.subjects", fmt.Sprintf("subject %d out of range 1..%d", s, MaxSubject))
		}
	}
	for _, r := range ds.Runs {
		if r < 1 || r > MaxRun {
			return invalid("datasets.runs", fmt.Sprintf("run %d out of range 1..%d", r, MaxRun))
		}
	}
	if NormalizeRetryBackoff(string(ds.Retry.Backoff)) == "" {
		return invalid("datasets.retry.backoff", fmt.Sprintf("unsupported mode %q", ds.Retry.Backoff))
	}
	if ds.Retry.MaxRetries < 0 {
		return invalid("datasets.retry.max_retries", "must not be negative")
	}
	if ds.Retry.Max < ds.Retry.Initial {
		return invalid("datasets.retry.max", "must be >= initial")
	}
	return nil
}

func (cv *configurationValidator) validateWatch() error {
	switch cv.config.Watch.Task {
	case "examples", "lint", "test", "doc", "dist", "clean":
		return nil
	default:
		return invalid("watch.task", fmt.Sprintf("unsupported task %q", cv.config.Watch.Task))
	}
}

package lint

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/process"
)

// ErrMisspellings is returned by the CLI when unfixed misspellings remain.
var ErrMisspellings = errors.LintError("misspellings found").Build()

// Engine checks a set of paths for misspellings.
type Engine interface {
	Name() string
	Run(ctx context.Context, paths []string, fix bool) (*Result, error)
}

// NewEngine returns the engine selected by cfg.Engine rooted at root.
func NewEngine(cfg config.LintConfig, root string, runner process.Runner) (Engine, error) {
	switch cfg.Engine {
	case config.LintEngineCodespell:
		return NewCodespell(cfg, root, runner), nil
	case config.LintEngineBuiltin, "":
		dict, err := LoadDictionary(cfg.Dictionaries, cfg.IgnoreWords)
		if err != nil {
			return nil, err
		}
		return NewLinter(root, cfg.Skip, dict), nil
	default:
		return nil, errors.ConfigError("unsupported lint engine").WithContext("engine", string(cfg.Engine)).Build()
	}
}

var wordPattern = regexp.MustCompile(`[A-Za-z]+(?:'[A-Za-z]+)?`)

// binarySniffLen is how much of a file is inspected for NUL bytes.
const binarySniffLen = 8000

// Linter is the builtin dictionary engine.
type Linter struct {
	root string
	skip []string
	dict *Dictionary
}

// NewLinter creates a builtin linter.
func NewLinter(root string, skip []string, dict *Dictionary) *Linter {
	if root == "" {
		root = "."
	}
	if dict == nil {
		dict = DefaultDictionary()
	}
	return &Linter{root: root, skip: skip, dict: dict}
}

// Name implements Engine.
func (l *Linter) Name() string { return string(config.LintEngineBuiltin) }

// Run lints every path (file or directory, relative to the root) and optionally rewrites fixable issues.
func (l *Linter) Run(ctx context.Context, paths []string, fix bool) (*Result, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	result := &Result{Issues: []Issue{}}
	seen := make(map[string]struct{})

	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(l.root, p)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, errors.LintError("lint path not found").WithCause(err).WithContext("path", p).Build()
		}
		if !info.IsDir() {
			if l.Skipped(l.rel(abs)) {
				continue
			}
			if err := l.lintOnce(abs, fix, result, seen); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel := l.rel(path)
			if rel != "." && l.Skipped(rel) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			return l.lintOnce(path, fix, result, seen)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.FileSystemError("failed to walk lint path").WithCause(err).WithContext("path", p).Build()
		}
	}

	result.sort()
	return result, nil
}

// Skipped reports whether rel (slash separated, relative to the root) matches a skip glob.
// Patterns match either the base name or the full relative path.
func (l *Linter) Skipped(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	for _, pattern := range l.skip {
		pattern = strings.TrimSuffix(filepath.ToSlash(pattern), "/")
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if strings.HasPrefix(rel, pattern+"/") {
			return true
		}
	}
	return false
}

func (l *Linter) rel(path string) string {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (l *Linter) lintOnce(path string, fix bool, result *Result, seen map[string]struct{}) error {
	if _, ok := seen[path]; ok {
		return nil
	}
	seen[path] = struct{}{}
	return l.lintFile(path, fix, result)
}

func (l *Linter) lintFile(path string, fix bool, result *Result) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.FileSystemError("failed to read file").WithCause(err).WithContext("path", path).Build()
	}
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return nil
	}
	result.FilesTotal++

	rel := l.rel(path)
	lines := strings.SplitAfter(string(data), "\n")
	changed := false
	for n, line := range lines {
		issues, fixed := l.checkLine(line, fix)
		for i := range issues {
			issues[i].FilePath = rel
			issues[i].Line = n + 1
		}
		result.Issues = append(result.Issues, issues...)
		if fixed != line {
			lines[n] = fixed
			changed = true
		}
	}
	if !changed {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return errors.FileSystemError("failed to stat file").WithCause(err).WithContext("path", path).Build()
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return errors.FileSystemError("failed to write fixed file").WithCause(err).WithContext("path", path).Build()
	}
	result.FilesChanged++
	return nil
}

// checkLine returns the issues on one line and the line with fixable words replaced when fix is set.
func (l *Linter) checkLine(line string, fix bool) ([]Issue, string) {
	matches := wordPattern.FindAllStringIndex(line, -1)
	if len(matches) == 0 {
		return nil, line
	}
	var (
		issues []Issue
		out    strings.Builder
		last   int
	)
	for _, m := range matches {
		word := line[m[0]:m[1]]
		entry, ok := l.dict.Lookup(word)
		if !ok {
			continue
		}
		issue := Issue{
			Column:      m[0] + 1,
			Word:        word,
			Suggestions: append([]string(nil), entry.Suggestions...),
			Severity:    SeverityWarning,
		}
		replacement, fixable := l.dict.fixFor(word, entry)
		if fixable {
			issue.Severity = SeverityError
		}
		if fix && fixable {
			out.WriteString(line[last:m[0]])
			out.WriteString(replacement)
			last = m[1]
			issue.Fixed = true
		}
		issues = append(issues, issue)
	}
	if last == 0 {
		return issues, line
	}
	out.WriteString(line[last:])
	return issues, out.String()
}

package lint

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/process"
)

// codespellFound is the exit status codespell uses when it reports misspellings.
const codespellFound = 65

var codespellLine = regexp.MustCompile(`^(.+?):(\d+):\s+(\S+)\s+==>\s+(.+?)\s*$`)

// Codespell delegates to the external codespell binary.
type Codespell struct {
	cfg    config.LintConfig
	root   string
	runner process.Runner
}

// NewCodespell creates the external engine.
func NewCodespell(cfg config.LintConfig, root string, runner process.Runner) *Codespell {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &Codespell{cfg: cfg, root: root, runner: runner}
}

// Name implements Engine.
func (c *Codespell) Name() string { return string(config.LintEngineCodespell) }

// Command builds the codespell invocation for paths.
func (c *Codespell) Command(paths []string, fix bool) process.Command {
	bin := c.cfg.Codespell
	if bin == "" {
		bin = "codespell"
	}
	var args []string
	if len(c.cfg.Skip) > 0 {
		args = append(args, "--skip="+strings.Join(c.cfg.Skip, ","))
	}
	if len(c.cfg.IgnoreWords) > 0 {
		args = append(args, "--ignore-words-list="+strings.Join(c.cfg.IgnoreWords, ","))
	}
	if len(c.cfg.Dictionaries) > 0 {
		// "-" keeps codespell's builtin dictionary alongside the extra ones.
		args = append(args, "--dictionary=-")
		for _, d := range c.cfg.Dictionaries {
			args = append(args, "--dictionary="+d)
		}
	}
	if fix {
		args = append(args, "--write-changes")
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}
	args = append(args, paths...)
	return process.Command{Name: bin, Args: args, Dir: c.root}
}

// Run implements Engine. Issues reported by codespell are parsed from its output.
func (c *Codespell) Run(ctx context.Context, paths []string, fix bool) (*Result, error) {
	var out bytes.Buffer
	cmd := c.Command(paths, fix)
	cmd.Stdout = &out

	_, err := c.runner.Run(ctx, cmd)
	if err != nil && process.ExitCode(err) != codespellFound {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.LintError("codespell failed").WithCause(err).WithContext("command", cmd.String()).Build()
	}
	return ParseCodespell(out.Bytes()), nil
}

// ParseCodespell turns "path:line: word ==> fix, alt" lines into a Result.
func ParseCodespell(output []byte) *Result {
	result := &Result{Issues: []Issue{}}
	files := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		m := codespellLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[2])
		issue := Issue{
			FilePath: strings.TrimPrefix(m[1], "./"),
			Line:     line,
			Word:     m[3],
			Severity: SeverityWarning,
		}
		for _, s := range strings.Split(m[4], ",") {
			if s = strings.TrimSpace(s); s != "" {
				issue.Suggestions = append(issue.Suggestions, s)
			}
		}
		if issue.Fixable() {
			issue.Severity = SeverityError
		}
		files[issue.FilePath] = struct{}{}
		result.Issues = append(result.Issues, issue)
	}
	result.FilesTotal = len(files)
	result.sort()
	return result
}

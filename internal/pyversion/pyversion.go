// Package pyversion reads and rewrites the version string of a Python project.
//
// One file is the source of truth (normally pyproject.toml); every mirror
// (setup.py, __init__.py) is regenerated from it and verified by reading back.
package pyversion

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/eegrasp/graspci/internal/errors"
)

var (
	// ErrVersionNotFound signals that a file carries no recognizable version field.
	ErrVersionNotFound = errors.ReleaseError("version field not found").Build()

	// ErrVersionMismatch signals that a rewritten file does not read back the expected value.
	ErrVersionMismatch = errors.ReleaseError("version did not read back as written").Build()
)

// pyAssign matches `version='x'` (setup.py) and `__version__ = "x"` assignments.
var pyAssign = regexp.MustCompile(`(?m)^([ \t]*(?:__version__|version)[ \t]*=[ \t]*)(['"])([^'"\n]*)(['"])`)

// tomlVersion matches a `version = "x"` key line in TOML.
var tomlVersion = regexp.MustCompile(`^([ \t]*version[ \t]*=[ \t]*)(["'])([^"'\n]*)(["'])(.*)$`)

var tomlTable = regexp.MustCompile(`^[ \t]*\[([^\[\]]+)\][ \t]*(?:#.*)?$`)

// versionTables are the TOML tables that may carry the project version, in priority order.
var versionTables = []string{"project", "tool.poetry"}

type pyproject struct {
	Project struct {
		Version string   `toml:"version"`
		Dynamic []string `toml:"dynamic"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Version string `toml:"version"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Read returns the version declared in path.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.FileSystemError("failed to read version file").WithCause(err).WithContext("file", path).Build()
	}
	if isTOML(path) {
		return readTOML(path, data)
	}
	m := pyAssign.FindSubmatch(data)
	if m == nil {
		return "", ErrVersionNotFound.WithContext("file", path)
	}
	return string(m[3]), nil
}

func readTOML(path string, data []byte) (string, error) {
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", errors.ValidationError("failed to parse TOML").WithCause(err).WithContext("file", path).Build()
	}
	switch {
	case doc.Project.Version != "":
		return doc.Project.Version, nil
	case doc.Tool.Poetry.Version != "":
		return doc.Tool.Poetry.Version, nil
	}
	e := ErrVersionNotFound.WithContext("file", path)
	for _, d := range doc.Project.Dynamic {
		if d == "version" {
			e = e.WithContext("hint", "project.version is dynamic")
		}
	}
	return "", e
}

// Rewrite replaces the version in path with version, keeping quoting and surrounding text.
func Rewrite(path, version string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.FileSystemError("failed to stat version file").WithCause(err).WithContext("file", path).Build()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.FileSystemError("failed to read version file").WithCause(err).WithContext("file", path).Build()
	}

	var out []byte
	var n int
	if isTOML(path) {
		out, n = rewriteTOML(data, version)
	} else {
		out, n = rewritePython(data, version)
	}
	if n == 0 {
		return ErrVersionNotFound.WithContext("file", path)
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return errors.FileSystemError("failed to write version file").WithCause(err).WithContext("file", path).Build()
	}

	got, err := Read(path)
	if err != nil {
		return err
	}
	if got != version {
		return ErrVersionMismatch.WithContext("file", path).WithContext("want", version).WithContext("got", got)
	}
	return nil
}

func rewritePython(data []byte, version string) ([]byte, int) {
	n := 0
	out := pyAssign.ReplaceAllFunc(data, func(match []byte) []byte {
		n++
		m := pyAssign.FindSubmatch(match)
		return []byte(string(m[1]) + string(m[2]) + version + string(m[4]))
	})
	return out, n
}

// rewriteTOML edits the version key of the first version table present, line by line.
func rewriteTOML(data []byte, version string) ([]byte, int) {
	lines := splitLines(data)
	for _, table := range versionTables {
		current := ""
		for i, line := range lines {
			body, eol := trimEOL(line)
			if m := tomlTable.FindStringSubmatch(body); m != nil {
				current = strings.TrimSpace(m[1])
				continue
			}
			if current != table {
				continue
			}
			if m := tomlVersion.FindStringSubmatch(body); m != nil {
				lines[i] = m[1] + m[2] + version + m[4] + m[5] + eol
				return []byte(strings.Join(lines, "")), 1
			}
		}
	}
	return data, 0
}

func splitLines(data []byte) []string {
	var lines []string
	r := bufio.NewReader(bytes.NewReader(data))
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if err != nil {
			return lines
		}
	}
}

func trimEOL(line string) (string, string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// Normalize strips a leading "v" from a tag name, as in v1.2.3 -> 1.2.3.
func Normalize(tag string) string {
	return strings.TrimPrefix(tag, "v")
}

// FileVersion is the version found in one file.
type FileVersion struct {
	Path    string
	Version string
	Err     error
}

func (f FileVersion) String() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Path, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Path, f.Version)
}

package lint

import "sort"

// Severity represents the severity level of a misspelling.
type Severity int

const (
	// SeverityWarning marks a misspelling with several candidate fixes; a human has to choose.
	SeverityWarning Severity = iota
	// SeverityError marks a misspelling with exactly one known correction.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Issue represents a single misspelling found in a file.
type Issue struct {
	FilePath    string   `json:"file"`
	Line        int      `json:"line"`
	Column      int      `json:"column"`
	Word        string   `json:"word"`
	Suggestions []string `json:"suggestions"`
	Severity    Severity `json:"-"`
	Fixed       bool     `json:"fixed,omitempty"`
}

// Fixable reports whether the issue has exactly one suggestion.
func (i Issue) Fixable() bool {
	return len(i.Suggestions) == 1
}

// Result contains all issues found during a lint run.
type Result struct {
	Issues       []Issue `json:"issues"`
	FilesTotal   int     `json:"files_scanned"`
	FilesChanged int     `json:"files_changed"`
}

// HasIssues reports whether any misspelling remains unfixed.
func (r *Result) HasIssues() bool {
	return r.Remaining() > 0
}

// Remaining counts issues that were not fixed.
func (r *Result) Remaining() int {
	n := 0
	for _, issue := range r.Issues {
		if !issue.Fixed {
			n++
		}
	}
	return n
}

// FixedCount counts issues rewritten in place.
func (r *Result) FixedCount() int {
	return len(r.Issues) - r.Remaining()
}

func (r *Result) sort() {
	sort.SliceStable(r.Issues, func(a, b int) bool {
		ia, ib := r.Issues[a], r.Issues[b]
		if ia.FilePath != ib.FilePath {
			return ia.FilePath < ib.FilePath
		}
		if ia.Line != ib.Line {
			return ia.Line < ib.Line
		}
		return ia.Column < ib.Column
	})
}

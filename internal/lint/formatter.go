package lint

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Formatter formats lint results for output.
type Formatter interface {
	Format(w io.Writer, result *Result) error
}

// NewFormatter returns the formatter for name ("text" or "json").
func NewFormatter(name string) Formatter {
	if name == "json" {
		return &JSONFormatter{}
	}
	return &TextFormatter{}
}

// TextFormatter prints codespell-style lines followed by a summary.
type TextFormatter struct{}

// Format outputs one line per issue: "path:line:col: word ==> suggestions".
func (f *TextFormatter) Format(w io.Writer, result *Result) error {
	for _, issue := range result.Issues {
		status := ""
		if issue.Fixed {
			status = " (fixed)"
		}
		if _, err := fmt.Fprintf(w, "%s:%d:%d: %s ==> %s%s\n",
			issue.FilePath, issue.Line, issue.Column, issue.Word, strings.Join(issue.Suggestions, ", "), status); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, strings.Repeat("━", 60)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  %d file%s scanned\n", result.FilesTotal, pluralize(result.FilesTotal)); err != nil {
		return err
	}
	if fixed := result.FixedCount(); fixed > 0 {
		if _, err := fmt.Fprintf(w, "  %d misspelling%s fixed in %d file%s\n",
			fixed, pluralize(fixed), result.FilesChanged, pluralize(result.FilesChanged)); err != nil {
			return err
		}
	}
	remaining := result.Remaining()
	if remaining == 0 {
		_, err := fmt.Fprintln(w, "  no misspellings")
		return err
	}
	_, err := fmt.Fprintf(w, "  %d misspelling%s remaining\n", remaining, pluralize(remaining))
	return err
}

func pluralize(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// JSONFormatter formats results as JSON for CI annotations.
type JSONFormatter struct{}

type jsonOutput struct {
	*Result
	Summary jsonSummary `json:"summary"`
}

type jsonSummary struct {
	Remaining int `json:"remaining"`
	Fixed     int `json:"fixed"`
}

// Format outputs results in JSON format.
func (f *JSONFormatter) Format(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonOutput{
		Result:  result,
		Summary: jsonSummary{Remaining: result.Remaining(), Fixed: result.FixedCount()},
	})
}

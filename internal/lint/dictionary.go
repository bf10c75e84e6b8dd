package lint

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/eegrasp/graspci/internal/errors"
)

//go:embed dictionary.txt
var defaultDictionary string

// Entry is one dictionary line: a misspelling and its corrections.
type Entry struct {
	Suggestions []string
	// NoAutoFix is set by a trailing comma; the entry is reported but never rewritten.
	NoAutoFix bool
}

// Dictionary maps lower-case misspellings to their corrections.
type Dictionary struct {
	entries map[string]Entry
	ignored map[string]struct{}
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{entries: make(map[string]Entry), ignored: make(map[string]struct{})}
}

// DefaultDictionary returns the dictionary embedded in the binary.
func DefaultDictionary() *Dictionary {
	d := NewDictionary()
	if err := d.Parse(strings.NewReader(defaultDictionary)); err != nil {
		panic(fmt.Sprintf("embedded dictionary: %v", err))
	}
	return d
}

// LoadDictionary builds the default dictionary extended by extra files and minus ignored words.
func LoadDictionary(extra []string, ignore []string) (*Dictionary, error) {
	d := DefaultDictionary()
	for _, path := range extra {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.LintError("failed to open dictionary").WithCause(err).WithContext("path", path).Build()
		}
		err = d.Parse(f)
		_ = f.Close()
		if err != nil {
			return nil, errors.LintError("failed to parse dictionary").WithCause(err).WithContext("path", path).Build()
		}
	}
	d.Ignore(ignore...)
	return d, nil
}

// Parse merges codespell-format lines ("wrong->right[, alt]") into the dictionary.
func (d *Dictionary) Parse(r io.Reader) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		wrong, right, ok := strings.Cut(line, "->")
		wrong = strings.ToLower(strings.TrimSpace(wrong))
		if !ok || wrong == "" {
			return fmt.Errorf("line %d: expected wrong->right, got %q", lineNo, line)
		}
		entry := Entry{NoAutoFix: strings.HasSuffix(strings.TrimSpace(right), ",")}
		for _, s := range strings.Split(right, ",") {
			if s = strings.TrimSpace(s); s != "" {
				entry.Suggestions = append(entry.Suggestions, s)
			}
		}
		if len(entry.Suggestions) == 0 {
			return fmt.Errorf("line %d: no correction for %q", lineNo, wrong)
		}
		d.entries[wrong] = entry
	}
	return sc.Err()
}

// Ignore suppresses the given words regardless of case.
func (d *Dictionary) Ignore(words ...string) {
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			d.ignored[w] = struct{}{}
		}
	}
}

// Lookup returns the entry for word, matched case-insensitively.
func (d *Dictionary) Lookup(word string) (Entry, bool) {
	key := strings.ToLower(word)
	if _, skip := d.ignored[key]; skip {
		return Entry{}, false
	}
	e, ok := d.entries[key]
	return e, ok
}

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.entries) }

// fixFor returns the single correction for word, or false when the word must not be rewritten.
// A correction that is itself a known misspelling is refused so a second pass stays a no-op.
func (d *Dictionary) fixFor(word string, e Entry) (string, bool) {
	if len(e.Suggestions) != 1 || e.NoAutoFix {
		return "", false
	}
	fix := e.Suggestions[0]
	if _, chained := d.entries[strings.ToLower(fix)]; chained {
		return "", false
	}
	return matchCase(word, fix), true
}

// matchCase applies the casing of original (lower, Title or UPPER) to fix.
func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func matchCase(original, fix string) string {
	switch {
	case len(original) > 1 && strings.ToUpper(original) == original:
		return strings.ToUpper(fix)
	case original != "" && unicode.IsUpper(firstRune(original)):
		r, size := utf8.DecodeRuneInString(fix)
		if r == utf8.RuneError {
			return fix
		}
		return string(unicode.ToUpper(r)) + fix[size:]
	default:
		return fix
	}
}

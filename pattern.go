package sftpclient

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern selects entries by name. The zero value matches every name.
type Pattern struct {
	re   *regexp.Regexp
	glob string
	set  bool
}

// Predicate reports whether a name is selected.
type Predicate func(name string) bool

// MatchAll returns the pattern matching every name.
func MatchAll() Pattern { return Pattern{} }

// Regex uses re as-is. Matching is unanchored unless re anchors itself.
func Regex(re *regexp.Regexp) Pattern {
	return Pattern{re: re, set: re != nil}
}

// Glob builds a pattern from a regular expression in which every run of
// '*' is read as ".*". Other characters keep their regexp meaning, so
// "file.txt" also selects "fileXtxt". Like Regex, the result is unanchored:
// "dir*" selects "subdir1" as well as "dir1".
func Glob(glob string) Pattern {
	return Pattern{glob: glob, set: true}
}

// String returns the regular expression the pattern matches with.
func (p Pattern) String() string {
	switch {
	case !p.set:
		return ".*"
	case p.re != nil:
		return p.re.String()
	default:
		return globToRegexp(p.glob)
	}
}

// Compile resolves the pattern into a predicate.
func (p Pattern) Compile() (Predicate, error) {
	if !p.set {
		return func(string) bool { return true }, nil
	}
	re := p.re
	if re == nil {
		var err error
		re, err = regexp.Compile(globToRegexp(p.glob))
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p.glob, err)
		}
	}
	return re.MatchString, nil
}

func globToRegexp(glob string) string {
	var b strings.Builder
	star := false
	for _, r := range glob {
		if r == '*' {
			if !star {
				b.WriteString(".*")
			}
			star = true
			continue
		}
		star = false
		b.WriteRune(r)
	}
	return b.String()
}

package store

import (
	"regexp"
	"strings"
)

// globToRegexp translates a key pattern with "*" and "?" wildcards into an
// anchored regular expression. Every other character matches literally.
func globToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	literal := strings.Builder{}
	flush := func() {
		if literal.Len() > 0 {
			b.WriteString(regexp.QuoteMeta(literal.String()))
			literal.Reset()
		}
	}
	for _, r := range pattern {
		switch r {
		case '*':
			flush()
			b.WriteString(".*")
		case '?':
			flush()
			b.WriteByte('.')
		default:
			literal.WriteRune(r)
		}
	}
	flush()
	b.WriteByte('$')
	return b.String()
}

// compileGlob returns a matcher for a key pattern. An empty pattern matches all keys.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = "*"
	}
	return regexp.Compile(globToRegexp(pattern))
}

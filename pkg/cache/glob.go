package cache

import (
	"regexp"
	"strings"
)

// compileGlob converts a glob pattern into an anchored regular expression.
// Supported metacharacters: '*' matches any run of characters, '?' matches a
// single character. Everything else is matched literally.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

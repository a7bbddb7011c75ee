package cache

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCompileGlob_Property_PrefixStarMatchesExtensions(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("prefix glob matches every extension of the prefix", prop.ForAll(
		func(prefix, suffix string) bool {
			re, err := compileGlob(prefix + "*")
			if err != nil {
				return false
			}
			return re.MatchString(prefix + suffix)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("prefix glob rejects keys with a different prefix", prop.ForAll(
		func(prefix, other string) bool {
			if prefix == "" || strings.HasPrefix(other+prefix, prefix) {
				return true // skip degenerate inputs
			}
			re, err := compileGlob(prefix + "*")
			if err != nil {
				return false
			}
			return !re.MatchString(other + prefix)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("literal glob matches exactly its own key", prop.ForAll(
		func(key string) bool {
			re, err := compileGlob(key)
			if err != nil {
				return false
			}
			return re.MatchString(key)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCompileGlob_QuestionMark(t *testing.T) {
	re, err := compileGlob("user:?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !re.MatchString("user:1") {
		t.Error("expected single character to match")
	}
	if re.MatchString("user:12") {
		t.Error("expected two characters to mismatch")
	}
	if re.MatchString("user:") {
		t.Error("expected empty position to mismatch")
	}
}

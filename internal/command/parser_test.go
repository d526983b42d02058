package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParse_Empty(t *testing.T) {
	result := Parse("   ")
	assert.Equal(t, "", result.Command)
	assert.Nil(t, result.Args)
}

func TestParse_SingleWord(t *testing.T) {
	result := Parse("home")
	assert.Equal(t, "home", result.Command)
	assert.Nil(t, result.Args)
}

func TestParse_LeadingSlash(t *testing.T) {
	result := Parse("/SetHome Base")
	assert.Equal(t, "sethome", result.Command)
	assert.Equal(t, []string{"Base"}, result.Args, "home names keep their case")
}

func TestParse_ExtraWhitespace(t *testing.T) {
	result := Parse("  delhome   farm   extra ")
	assert.Equal(t, "delhome", result.Command)
	assert.Equal(t, []string{"farm", "extra"}, result.Args)
}

func TestPropertyParseAlwaysLowercasesCommand(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`/?[A-Za-z]{1,20}`).Draw(t, "word")
		result := Parse(word)
		if result.Command != strings.ToLower(strings.TrimPrefix(word, "/")) {
			t.Fatalf("Parse(%q).Command = %q", word, result.Command)
		}
	})
}

func TestPropertyParseArgsHaveNoWhitespace(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.StringMatching(`[a-z]{1,8}( {1,3}[A-Za-z0-9_]{1,8}){0,4} *`).Draw(t, "line")
		for _, a := range Parse(line).Args {
			if a == "" || strings.ContainsAny(a, " \t") {
				t.Fatalf("Parse(%q) produced arg %q", line, a)
			}
		}
	})
}

package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompile_GlobMatching(t *testing.T) {
	s := Compile("*.go,src/*.ts")

	assert.True(t, s.Match("main.go"))
	assert.True(t, s.Match("internal/server.go"))
	assert.True(t, s.Match("src/app.ts"))
	assert.False(t, s.Match("src/nested/app.ts.bak"))
	assert.False(t, s.Match("main.rs"))
}

func TestCompile_CaseInsensitive(t *testing.T) {
	s := Compile("*.HTML")

	assert.True(t, s.Match("index.html"))
	assert.True(t, s.Match("INDEX.HTML"))
}

func TestCompile_Anchored(t *testing.T) {
	s := Compile("main.go")

	assert.True(t, s.Match("main.go"))
	assert.False(t, s.Match("main.go.old"))
	assert.False(t, s.Match("xmain.go"))
}

func TestCompile_QuestionMark(t *testing.T) {
	s := Compile("file?.txt")

	assert.True(t, s.Match("file1.txt"))
	assert.True(t, s.Match("fileA.txt"))
	assert.False(t, s.Match("file12.txt"))
}

func TestCompile_SpecialCharsQuoted(t *testing.T) {
	s := Compile("a+b.txt")

	assert.True(t, s.Match("a+b.txt"))
	assert.False(t, s.Match("aab.txt"))
	assert.False(t, s.Match("aXbYtxt"))
}

func TestCompile_EmptyAndWhitespace(t *testing.T) {
	assert.True(t, Compile("").Empty())
	assert.True(t, Compile(" , , ").Empty())
	assert.False(t, Compile("").Match("anything"))

	var nilSet *Set
	assert.True(t, nilSet.Empty())
	assert.False(t, nilSet.Match("anything"))
}

func TestCompile_InvalidPatternSkipped(t *testing.T) {
	// QuoteMeta makes most inputs safe; a lone pattern falling back to an
	// empty set must fail open rather than panic.
	s := Compile("good.go")
	assert.False(t, s.Empty())
	assert.True(t, s.Match("good.go"))
}

package tokay

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
)

var ansiRe = regexp.MustCompile("\x1b\\[[0-9;]*m")

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// assertDumpEqual compares two multi-line golden dumps, reporting a
// readable diff (rather than two giant opaque blobs) on mismatch.
func assertDumpEqual(t *testing.T, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(want, got, false)
	t.Errorf("dump mismatch:\n%s", dmp.DiffPrettyText(diffs))
}

func TestProgram_AddAssignsIDsAndNames(t *testing.T) {
	pr := NewProgram()
	a := pr.Add(&Parselet{Name: "a"})
	b := pr.Add(&Parselet{Name: "b"})
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)

	p, ok := pr.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, 1, p.ID)

	_, ok = pr.Lookup("nope")
	assert.False(t, ok)
}

func TestProgram_MainReturnsEntryParselet(t *testing.T) {
	pr := NewProgram()
	assert.Nil(t, pr.Main())

	id := pr.Add(&Parselet{Name: "main"})
	pr.MainIdx = id
	assert.Same(t, pr.Parselets[id], pr.Main())
}

func TestProgram_PrettyStringDump(t *testing.T) {
	pr := NewProgram()
	id := pr.Add(&Parselet{
		Name:      "answer",
		Consuming: true,
		Body: Instructions{
			Push{ConstIdx: 0},
			Accept{},
		},
	})
	pr.MainIdx = id

	var want strings.Builder
	fmt.Fprintf(&want, "%s%s:\n", "answer", " consuming main")
	fmt.Fprintf(&want, "  %4d  %s\n", 0, "Push 0")
	fmt.Fprintf(&want, "  %4d  %s\n", 1, "Accept")
	want.WriteString("\n")

	got := stripANSI(pr.PrettyString())
	assertDumpEqual(t, want.String(), got)
}

package diff

import (
	"strings"
	"testing"
)

func TestUnified_SingleLineChange(t *testing.T) {
	oldText := "def f(x):\n    return run(x)\n"
	newText := "def f(x):\n    return run(sanitize(x))\n"

	out := Unified("app.py", "app.py", oldText, newText)

	if !strings.HasPrefix(out, "--- app.py\n+++ app.py\n") {
		t.Errorf("missing file headers:\n%s", out)
	}
	if !strings.Contains(out, "-    return run(x)\n") {
		t.Errorf("missing removed line:\n%s", out)
	}
	if !strings.Contains(out, "+    return run(sanitize(x))\n") {
		t.Errorf("missing added line:\n%s", out)
	}
	if !strings.Contains(out, " def f(x):\n") {
		t.Errorf("missing context line:\n%s", out)
	}
}

func TestUnified_IdenticalTexts(t *testing.T) {
	if out := Unified("a", "a", "same\n", "same\n"); out != "" {
		t.Errorf("expected empty diff, got:\n%s", out)
	}
}

func TestUnified_HunkCounts(t *testing.T) {
	out := Unified("a", "b", "one\ntwo\n", "one\ntwo\nthree\n")
	if !strings.Contains(out, "@@ -1,2 +1,3 @@") {
		t.Errorf("expected hunk header with line counts:\n%s", out)
	}
}

func TestUnified_Deterministic(t *testing.T) {
	oldText := "a\nb\nc\n"
	newText := "a\nx\nc\n"
	if Unified("f", "f", oldText, newText) != Unified("f", "f", oldText, newText) {
		t.Error("diff output should be stable across calls")
	}
}

// Package diff renders unified diffs between an original slice and its
// patched replacement, built on the sergi/go-diff engine.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Unified computes a unified-format diff of two texts. Paths label the
// --- and +++ headers.
func Unified(oldPath, newPath, oldText, newText string) string {
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()
	// Line-level reduction avoids newline boundary artifacts when the
	// character diff is mapped back to lines.
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var body strings.Builder
	var oldCount, newCount int

	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				body.WriteString(" " + line + "\n")
				oldCount++
				newCount++
			case diffmatchpatch.DiffDelete:
				body.WriteString("-" + line + "\n")
				oldCount++
			case diffmatchpatch.DiffInsert:
				body.WriteString("+" + line + "\n")
				newCount++
			}
		}
	}

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\n", oldPath)
	fmt.Fprintf(&out, "+++ %s\n", newPath)
	fmt.Fprintf(&out, "@@ -1,%d +1,%d @@\n", oldCount, newCount)
	out.WriteString(body.String())
	return out.String()
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

package report

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff renders a line-oriented diff between the original source and the
// committed candidate. Deleted lines carry a "-" prefix, inserted lines
// a "+", and unchanged lines a single space.
func Diff(original, modified []byte) string {
	if string(original) == string(modified) {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(original), string(modified))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

package ui

import (
	"strings"

	diff "github.com/shogoki/gotextdiff"
)

// RenderDiff produces a colorized unified diff panel for a file operation's
// approval prompt. Returns "" when the contents are identical.
func RenderDiff(path, oldContent, newContent string) string {
	if oldContent == newContent {
		return ""
	}

	styles := DefaultStyles()
	diffText := string(diff.Diff(path, []byte(oldContent), path, []byte(newContent)))
	if diffText == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.DiffHeader.Render("Edit: "+path) + "\n")

	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "diff "),
			strings.HasPrefix(line, "--- "),
			strings.HasPrefix(line, "+++ "):
			continue
		case strings.HasPrefix(line, "@@"):
			b.WriteString(styles.DiffHunk.Render(line) + "\n")
		case line[0] == '+':
			b.WriteString(styles.DiffAdd.Render(line) + "\n")
		case line[0] == '-':
			b.WriteString(styles.DiffRemove.Render(line) + "\n")
		default:
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

package stacktrace

import (
	"fmt"
	"strings"
)

// CodeFrame renders the lines of src around line (1-based) with a marker on
// the failing line and a caret under col. context is the number of lines
// shown on each side.
func CodeFrame(src string, line, col, context int) string {
	lines := strings.Split(src, "\n")
	if line <= 0 || line > len(lines) {
		return ""
	}
	start := line - context
	if start < 1 {
		start = 1
	}
	end := line + context
	if end > len(lines) {
		end = len(lines)
	}
	width := len(fmt.Sprint(end))

	var b strings.Builder
	for n := start; n <= end; n++ {
		text := strings.TrimRight(lines[n-1], "\r")
		if n == line {
			fmt.Fprintf(&b, "> %*d | %s\n", width, n, text)
			if col > 0 && col <= len(text)+1 {
				fmt.Fprintf(&b, "  %s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", col-1))
			}
		} else {
			fmt.Fprintf(&b, "  %*d | %s\n", width, n, text)
		}
	}
	return b.String()
}

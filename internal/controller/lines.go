// internal/controller/lines.go
package controller

import "strings"

// DecodeLines splits a response into lines, accepting \n, \r, \r\n and \n\r
// as line breaks. With strip set, one trailing and then one leading empty
// line are removed.
func DecodeLines(text string, strip bool) []string {
	// Order matters: \n\r first, so \r\n\r collapses to a single break
	text = strings.ReplaceAll(text, "\n\r", "\n")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	if strip {
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		if len(lines) > 0 && lines[0] == "" {
			lines = lines[1:]
		}
	}

	return lines
}

package tools

import "fmt"

const truncationMarker = "\n\n... [%d characters omitted] ...\n\n"

// TruncateOutput keeps the first 75% and the last 25% of budget characters
// (runes) of s, joined by a marker naming how many were dropped. It returns
// the number of omitted characters, 0 when s fits.
func TruncateOutput(s string, budget int) (string, int) {
	if budget <= 0 {
		return s, 0
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s, 0
	}
	head := budget * 3 / 4
	tail := budget - head
	omitted := len(runes) - head - tail
	return string(runes[:head]) + fmt.Sprintf(truncationMarker, omitted) + string(runes[len(runes)-tail:]), omitted
}

package cmdutils

import "fmt"

const logo = "🛺"

// PrintResponse prints a final agent answer to the terminal.
func PrintResponse(text string) {
	if text == "" {
		return
	}

	fmt.Printf("\n%s bujji\n%s\n\n", logo, text)
}

// PrintToolHint prints a dim progress line for a running tool.
func PrintToolHint(hint string) {
	if hint == "" {
		return
	}
	fmt.Printf("  \033[2m↳ %s\033[0m\n", hint)
}

package telegram

import (
	"strings"
	"unicode/utf8"
)

// splitMessage breaks text into chunks of at most maxLen bytes, preferring
// line boundaries and keeping fenced code blocks (``` ... ```) intact when
// they have a chance to fit. A maxLen <= 0 disables splitting.
func splitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}

	lines := strings.Split(text, "\n")

	var chunks []string
	var current strings.Builder

	inCodeBlock := false

	for _, line := range lines {
		lineWithNewline := line + "\n"

		isFence := strings.HasPrefix(strings.TrimSpace(line), "```")

		// Track fenced code block boundaries. The flag is updated before the
		// overflow check so that the closing fence still counts as "inside".
		wasInCodeBlock := inCodeBlock
		if isFence {
			inCodeBlock = !inCodeBlock
		}

		if current.Len()+len(lineWithNewline) > maxLen {
			// Keep accumulating inside a code block (including the closing
			// fence line) while the block still has a chance to fit.
			stillInBlock := wasInCodeBlock || (isFence && !inCodeBlock)
			if stillInBlock && current.Len() < maxLen*2 {
				current.WriteString(lineWithNewline)
				continue
			}

			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
				current.Reset()
			}

			// A single line that exceeds maxLen gets force-split.
			if len(lineWithNewline) > maxLen {
				chunks = append(chunks, forceSplit(line, maxLen)...)
				continue
			}
		}

		current.WriteString(lineWithNewline)
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
	}

	return chunks
}

// forceSplit breaks a single long line into chunks of at most maxLen
// bytes, backing up to a rune boundary so multi-byte text never gets cut
// mid-rune.
func forceSplit(line string, maxLen int) []string {
	var parts []string
	for len(line) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxLen
		}
		parts = append(parts, line[:cut])
		line = line[cut:]
	}
	if len(line) > 0 {
		parts = append(parts, line)
	}
	return parts
}

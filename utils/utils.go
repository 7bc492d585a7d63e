package utils

import (
	"strings"
	"unicode/utf8"
)

// SplitSentences puts each sentence of text on its own line. A sentence ends
// at '.', '!' or '?' followed by whitespace or the end of the text, so
// decimals and abbreviations like "3.5" stay intact.
func SplitSentences(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var lines []string
	var builder strings.Builder
	for i, char := range text {
		builder.WriteRune(char)
		if char != '.' && char != '!' && char != '?' {
			continue
		}
		next, _ := utf8.DecodeRuneInString(text[i+utf8.RuneLen(char):])
		if next == utf8.RuneError || next == ' ' || next == '\n' || next == '\t' {
			if line := strings.TrimSpace(builder.String()); line != "" {
				lines = append(lines, line)
			}
			builder.Reset()
		}
	}
	if line := strings.TrimSpace(builder.String()); line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

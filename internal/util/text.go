package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)
	// Directional marks tesseract emits around Hebrew runs; they break substring matches.
	bidiMarks = strings.NewReplacer("\u200e", "", "\u200f", "", "\u202a", "", "\u202b", "", "\u202c", "", "\u202d", "", "\u202e", "", "\u00a0", " ")
)

// SplitLines turns recognized text into trimmed, non-empty lines in reading order.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(bidiMarks.Replace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitPages splits text on form feeds, the page separator pdftotext and tesseract use.
func SplitPages(text string) []string {
	pages := strings.Split(text, "\f")
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

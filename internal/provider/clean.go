// Package provider holds helpers shared by the provider adapters.
//
// Each adapter lives in its own subpackage and implements enhance.Provider.
package provider

import (
	"strings"
	"unicode/utf8"
)

// StripMarkdownFences removes ```lang ... ``` or ``` ... ``` wrapping from text.
// Returns the content between the fences, or the original text if no fences are found.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return strings.TrimSpace(strings.Trim(text, "`"))
	}

	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}

	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// quotePairs are the wrappers models tend to put around a single answer.
var quotePairs = [][2]string{
	{`"`, `"`},
	{"'", "'"},
	{"“", "”"},
	{"‘", "’"},
}

// StripWrappingQuotes removes one pair of matching quotes around text.
func StripWrappingQuotes(text string) string {
	for _, q := range quotePairs {
		if len(text) >= len(q[0])+len(q[1]) && strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) {
			inner := text[len(q[0]) : len(text)-len(q[1])]
			// Leave text alone when the quotes are not a single wrapper, e.g. `"a" and "b"`.
			if !strings.Contains(inner, q[0]) && !strings.Contains(inner, q[1]) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return text
}

// stripLabels are prefixes a model sometimes echoes back before the answer.
var stripLabels = []string{
	"Enhanced prompt:",
	"Enhanced Prompt:",
	"Enhanced video prompt:",
	"Enhanced Video Prompt:",
}

// CleanOutput normalizes raw model text into a bare enhanced prompt.
// It returns "" when nothing usable remains.
func CleanOutput(raw string) string {
	text := StripMarkdownFences(raw)
	for _, label := range stripLabels {
		if strings.HasPrefix(text, label) {
			text = strings.TrimSpace(strings.TrimPrefix(text, label))
			break
		}
	}
	return StripWrappingQuotes(text)
}

// Truncate shortens s to at most maxLen bytes for log fields, never
// splitting a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

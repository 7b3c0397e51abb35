package validation

import (
	"regexp"
	"strings"
)

var (
	fencedBlock  = regexp.MustCompile("(?s)```.*?```")
	roleTags     = regexp.MustCompile(`(?i)</?\s*(system|assistant|developer|user|instructions?)\s*>`)
	roleLine     = regexp.MustCompile(`(?im)^\s*(system|assistant|developer|sistema|assistente)\s*:.*$`)
	excessBlanks = regexp.MustCompile(`\n{3,}`)

	injectionPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\s+(all\s+)?(the\s+)?(previous|prior|above)\s+instructions[^\n]*`),
		regexp.MustCompile(`(?i)disregard\s+(all\s+)?(the\s+)?(previous|prior|above)[^\n]*`),
		regexp.MustCompile(`(?i)forget\s+(all\s+)?(your\s+|the\s+)?(previous\s+)?instructions[^\n]*`),
		regexp.MustCompile(`(?i)you\s+are\s+now\b[^\n]*`),
		regexp.MustCompile(`(?i)a\s+partir\s+de\s+agora,?\s+voc[êe]\s+[ée][^\n]*`),
		regexp.MustCompile(`(?i)ignore\s+(todas\s+)?as\s+instru[çc][õo]es\s+anteriores[^\n]*`),
		regexp.MustCompile(`(?i)esque[çc]a\s+(todas\s+)?(as\s+)?(suas\s+)?instru[çc][õo]es[^\n]*`),
		regexp.MustCompile(`(?i)\baja\s+como\b[^\n]*`),
		regexp.MustCompile(`(?i)\bfinja\s+(que|ser)\b[^\n]*`),
	}
)

// SanitizeForPrompt strips instruction-override content from free text before
// it is interpolated into a prompt. Callers pass a copy; persisted input is
// never rewritten.
func SanitizeForPrompt(text string) string {
	if text == "" {
		return ""
	}
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = fencedBlock.ReplaceAllString(s, "")
	s = roleTags.ReplaceAllString(s, "")
	s = roleLine.ReplaceAllString(s, "")
	for _, phrase := range injectionPhrases {
		s = phrase.ReplaceAllString(s, "")
	}
	s = excessBlanks.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

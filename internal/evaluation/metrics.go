package evaluation

import "strings"

// PositionalAccuracy is the fraction of expected values matched at the same
// index of actual, compared case-insensitively. Returns 1.0 if expected is empty.
func PositionalAccuracy(expected, actual []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}

	matched := 0
	for i, want := range expected {
		if i < len(actual) && strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(actual[i])) {
			matched++
		}
	}
	return float64(matched) / float64(len(expected))
}

// FragmentRecall is the fraction of expected fragments contained in at least
// one of the texts, compared case-insensitively. Returns 1.0 if expected is empty.
func FragmentRecall(expected, texts []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}

	lowered := make([]string, len(texts))
	for i, t := range texts {
		lowered[i] = strings.ToLower(t)
	}

	found := 0
	for _, fragment := range expected {
		needle := strings.ToLower(strings.TrimSpace(fragment))
		for _, text := range lowered {
			if strings.Contains(text, needle) {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(expected))
}

package validation

import (
	"regexp"
	"strings"
)

// VitaShades is the VITA classical guide plus the bleach shades.
var VitaShades = []string{
	"A1", "A2", "A3", "A3.5", "A4",
	"B1", "B2", "B3", "B4",
	"C1", "C2", "C3", "C4",
	"D2", "D3", "D4",
	"BL1", "BL2", "BL3", "BL4",
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	vitaPrefix        = regexp.MustCompile(`^VITA`)
	layerSuffixWords  = regexp.MustCompile(`(DENTINA|DENTIN|ESMALTE|ENAMEL|BODY|CORPO|INCISAL|OPACO|OPAQUE)$`)
	layerSuffixLetter = regexp.MustCompile(`([0-9])[DE]$`)
	bleachShade       = regexp.MustCompile(`^BL[1-4]$`)
)

// NormalizeVitaShade reduces a free-form shade ("vita A2", "a2 dentina", "A2E")
// to its base VITA code. The transformation is applied until stable, so
// NormalizeVitaShade(NormalizeVitaShade(s)) == NormalizeVitaShade(s).
func NormalizeVitaShade(shade string) string {
	current := shade
	for i := 0; i < 8; i++ {
		next := normalizeShadeOnce(current)
		if next == current {
			return next
		}
		current = next
	}
	return current
}

func normalizeShadeOnce(shade string) string {
	s := strings.ToUpper(shade)
	s = whitespacePattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", ".")
	s = vitaPrefix.ReplaceAllString(s, "")
	s = layerSuffixWords.ReplaceAllString(s, "")
	s = layerSuffixLetter.ReplaceAllString(s, "$1")
	return s
}

// IsValidVitaShade accepts a shade when either its raw (trimmed, uppercased)
// or its normalized form is in the catalog.
func IsValidVitaShade(shade string) bool {
	raw := strings.ToUpper(strings.TrimSpace(shade))
	if raw == "" {
		return false
	}
	return contains(VitaShades, raw) || contains(VitaShades, NormalizeVitaShade(shade))
}

// IsBleachShade reports whether the shade is one of the BL bleach shades.
func IsBleachShade(shade string) bool {
	return bleachShade.MatchString(NormalizeVitaShade(shade))
}

package validation

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical ceramic keys
const (
	CeramicLithiumDisilicate  = "dissilicato_de_litio"
	CeramicLeucite            = "leucita"
	CeramicFeldspathic        = "feldspatica"
	CeramicZirconia           = "zirconia"
	CeramicReinforcedZirconia = "zirconia_reforcada"
	CeramicCADCAMResin        = "resina_cad_cam"
)

// CeramicTypes lists every canonical ceramic key.
var CeramicTypes = []string{
	CeramicLithiumDisilicate,
	CeramicLeucite,
	CeramicFeldspathic,
	CeramicZirconia,
	CeramicReinforcedZirconia,
	CeramicCADCAMResin,
}

// ceramicAliases maps normalized commercial or English names to canonical keys.
var ceramicAliases = map[string]string{
	"dissilicato_de_litio":  CeramicLithiumDisilicate,
	"dissilicato":           CeramicLithiumDisilicate,
	"disilicato_de_litio":   CeramicLithiumDisilicate,
	"lithium_disilicate":    CeramicLithiumDisilicate,
	"e_max":                 CeramicLithiumDisilicate,
	"emax":                  CeramicLithiumDisilicate,
	"ips_e_max":             CeramicLithiumDisilicate,
	"ips_emax":              CeramicLithiumDisilicate,
	"leucita":               CeramicLeucite,
	"leucite":               CeramicLeucite,
	"empress":               CeramicLeucite,
	"ips_empress":           CeramicLeucite,
	"feldspatica":           CeramicFeldspathic,
	"feldspathic":           CeramicFeldspathic,
	"porcelana_feldspatica": CeramicFeldspathic,
	"zirconia":              CeramicZirconia,
	"zirconium":             CeramicZirconia,
	"zirconia_reforcada":    CeramicReinforcedZirconia,
	"reinforced_zirconia":   CeramicReinforcedZirconia,
	"vita_suprinity":        CeramicReinforcedZirconia,
	"suprinity":             CeramicReinforcedZirconia,
	"celtra":                CeramicReinforcedZirconia,
	"resina_cad_cam":        CeramicCADCAMResin,
	"resina_cadcam":         CeramicCADCAMResin,
	"cad_cam_resin":         CeramicCADCAMResin,
	"ceramica_hibrida":      CeramicCADCAMResin,
	"hybrid_ceramic":        CeramicCADCAMResin,
	"vita_enamic":           CeramicCADCAMResin,
	"enamic":                CeramicCADCAMResin,
}

var (
	ceramicSeparators = regexp.MustCompile(`[\s.\-/]+`)
	repeatedUnderline = regexp.MustCompile(`_+`)
)

// StripAccents removes combining marks after canonical decomposition.
func StripAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// NormalizeCeramicType maps a free-form ceramic name ("E.max", "Dissilicato de Lítio")
// to its canonical key. ok is false for names outside the catalog.
func NormalizeCeramicType(value string) (string, bool) {
	key := strings.ToLower(StripAccents(strings.TrimSpace(value)))
	key = ceramicSeparators.ReplaceAllString(key, "_")
	key = repeatedUnderline.ReplaceAllString(key, "_")
	key = strings.Trim(key, "_")
	if key == "" {
		return "", false
	}
	canonical, ok := ceramicAliases[key]
	return canonical, ok
}

package entities

import "strings"

// ShadeType classifies a composite shade by its optical role
type ShadeType string

const (
	ShadeTypeOpaque    ShadeType = "opaco"
	ShadeTypeUniversal ShadeType = "universal"
	ShadeTypeEnamel    ShadeType = "esmalte"
)

// ShadeEntry is one shade available in a composite product line
type ShadeEntry struct {
	Manufacturer string    `json:"manufacturer" db:"manufacturer"`
	ProductLine  string    `json:"product_line" db:"product_line"`
	Shade        string    `json:"shade" db:"shade"`
	Type         ShadeType `json:"type" db:"type"`
}

// SplitResinBrand splits a "Manufacturer - Product line" brand string.
// A brand without a separator is treated as a bare product line.
func SplitResinBrand(brand string) (manufacturer, productLine string) {
	parts := strings.SplitN(brand, " - ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "", strings.TrimSpace(brand)
}

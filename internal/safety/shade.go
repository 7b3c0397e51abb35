package safety

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	"github.com/zatekoja/dentalprotocols/backend/internal/validation"
)

var (
	opaqueLayer = regexp.MustCompile(`(?i)opaco|opaque|mascar`)
	enamelLayer = regexp.MustCompile(`(?i)esmalte|enamel|incisal`)
	baseCodeRe  = regexp.MustCompile(`BL[1-4]|[A-D][1-4](?:\.5)?`)
)

// enamelPreference orders the named enamel shades picked when no enamel
// variant shares the layer's base code.
var enamelPreference = []string{"WE", "CT", "GT", "NT", "TRANS", "BT", "YT"}

// InferLayerType derives the shade role from the layer name.
func InferLayerType(layerName string) entities.ShadeType {
	switch {
	case opaqueLayer.MatchString(layerName):
		return entities.ShadeTypeOpaque
	case enamelLayer.MatchString(layerName):
		return entities.ShadeTypeEnamel
	default:
		return entities.ShadeTypeUniversal
	}
}

// BaseCode extracts the VITA base code embedded in a commercial shade name
// ("DA2" -> "A2", "A3.5E" -> "A3.5"), or "" when there is none.
func BaseCode(shade string) string {
	return baseCodeRe.FindString(strings.ToUpper(strings.ReplaceAll(shade, ",", ".")))
}

// normalizeLayerShades checks every layer against its product line catalog.
func (p *Processor) normalizeLayerShades(ctx context.Context, protocol *entities.ResinProtocol, report *Report) {
	logger := observability.LoggerFromContext(ctx)
	catalogs := make(map[string][]entities.ShadeEntry)

	for i := range protocol.Layers {
		layer := &protocol.Layers[i]
		_, productLine := entities.SplitResinBrand(layer.ResinBrand)
		if productLine == "" {
			continue
		}

		entries, cached := catalogs[productLine]
		if !cached {
			var err error
			entries, err = p.catalog.ListByProductLine(ctx, productLine)
			if err != nil {
				logger.Warn().Err(err).
					Str("product_line", productLine).
					Str("layer", layer.Name).
					Msg("Shade catalog lookup failed, leaving layer untouched")
				continue
			}
			catalogs[productLine] = entries
		}
		if len(entries) == 0 {
			continue
		}

		layerType := InferLayerType(layer.Name)
		substituted := -1
		current, found := findShade(entries, layer.Shade)
		if !found {
			replacement := closestShade(filterByType(entries, layerType), layer.Shade)
			report.Substitutions = append(report.Substitutions, Substitution{
				Layer:  layer.Name,
				From:   layer.Shade,
				To:     replacement.Shade,
				Reason: fmt.Sprintf("shade not in %s catalog", productLine),
			})
			layer.Shade = replacement.Shade
			current = replacement
			substituted = len(report.Substitutions) - 1
		}

		if layerType == entities.ShadeTypeEnamel && current.Type == entities.ShadeTypeUniversal {
			enamel := filterStrict(entries, entities.ShadeTypeEnamel)
			if len(enamel) == 0 {
				continue
			}
			preferred := preferredEnamel(enamel, layer.Shade)
			alert := fmt.Sprintf("Camada %q: tom universal %s trocado pelo tom de esmalte %s (%s) para maior translucidez.",
				layer.Name, layer.Shade, preferred.Shade, productLine)
			if substituted >= 0 {
				report.Substitutions[substituted].To = preferred.Shade
			} else {
				report.Substitutions = append(report.Substitutions, Substitution{
					Layer:  layer.Name,
					From:   layer.Shade,
					To:     preferred.Shade,
					Reason: "enamel variant preferred",
				})
			}
			protocol.Alerts = append(protocol.Alerts, alert)
			report.AlertsAdded = append(report.AlertsAdded, alert)
			layer.Shade = preferred.Shade
		}
	}
}

func findShade(entries []entities.ShadeEntry, shade string) (entities.ShadeEntry, bool) {
	wanted := strings.ToUpper(strings.TrimSpace(shade))
	for _, e := range entries {
		if strings.ToUpper(e.Shade) == wanted {
			return e, true
		}
	}
	return entities.ShadeEntry{}, false
}

// filterByType keeps the entries of one type, or all entries when none match.
func filterByType(entries []entities.ShadeEntry, t entities.ShadeType) []entities.ShadeEntry {
	if filtered := filterStrict(entries, t); len(filtered) > 0 {
		return filtered
	}
	return entries
}

func filterStrict(entries []entities.ShadeEntry, t entities.ShadeType) []entities.ShadeEntry {
	var filtered []entities.ShadeEntry
	for _, e := range entries {
		if e.Type == t {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// closestShade picks the candidate whose base code is lexically nearest to the
// original's: same code first, then same hue letter with the nearest value,
// then the first candidate.
func closestShade(candidates []entities.ShadeEntry, original string) entities.ShadeEntry {
	target := BaseCode(original)
	if target == "" {
		return candidates[0]
	}

	best := -1
	bestScore := -1
	for i, c := range candidates {
		score := baseCodeScore(target, BaseCode(c.Shade))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore == 0 {
		return candidates[0]
	}
	return candidates[best]
}

// baseCodeScore ranks how close candidate is to target; 0 means unrelated.
func baseCodeScore(target, candidate string) int {
	if candidate == "" {
		return 0
	}
	if candidate == target {
		return 100
	}
	tHue, tValue := splitBaseCode(target)
	cHue, cValue := splitBaseCode(candidate)
	if tHue != cHue {
		return 0
	}
	distance := int((tValue - cValue) * 2)
	if distance < 0 {
		distance = -distance
	}
	if distance >= 50 {
		return 1
	}
	return 50 - distance
}

func splitBaseCode(code string) (hue string, value float64) {
	idx := strings.IndexAny(code, "0123456789")
	if idx < 0 {
		return code, 0
	}
	v, err := strconv.ParseFloat(code[idx:], 64)
	if err != nil {
		return code[:idx], 0
	}
	return code[:idx], v
}

func preferredEnamel(enamel []entities.ShadeEntry, shade string) entities.ShadeEntry {
	if base := BaseCode(shade); base != "" {
		for _, e := range enamel {
			if BaseCode(e.Shade) == base {
				return e
			}
		}
	}
	for _, name := range enamelPreference {
		if e, ok := findShade(enamel, name); ok {
			return e
		}
	}
	return enamel[0]
}

// bleachAlertPattern spots alerts that already cover bleached tooth colors.
var bleachAlertPattern = regexp.MustCompile(`(?i)\bBL[1-4]?\b|bleach|clarea`)

// BleachShadeAlert is raised for BL tooth colors.
const BleachShadeAlert = "Cor BL (dente clareado): prefira resinas de esmalte de alto valor e evite " +
	"dentinas cromáticas; confirme a cor após 2 semanas do clareamento."

func (p *Processor) applyBleachAlert(protocol *entities.ResinProtocol, c ResinContext, report *Report) {
	if !validation.IsBleachShade(c.ToothColor) {
		return
	}
	for _, alert := range protocol.Alerts {
		if bleachAlertPattern.MatchString(alert) {
			return
		}
	}
	protocol.Alerts = append(protocol.Alerts, BleachShadeAlert)
	report.AlertsAdded = append(report.AlertsAdded, BleachShadeAlert)
}

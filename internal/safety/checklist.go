package safety

import (
	"context"
	"regexp"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

// ApplyResinRules normalizes layer shades against the catalog, prefers enamel
// variants on enamel layers, keeps the checklist consistent with the final
// shades and adds the bleach-shade alert. The protocol is modified in place.
func (p *Processor) ApplyResinRules(ctx context.Context, protocol *entities.ResinProtocol, c ResinContext) Report {
	var report Report
	if protocol == nil {
		return report
	}
	if p.catalog != nil {
		p.normalizeLayerShades(ctx, protocol, &report)
	}
	PropagateSubstitutions(protocol.Checklist, retiredShades(protocol.Layers, report.Substitutions))
	p.applyBleachAlert(protocol, c, &report)
	return report
}

// PropagateSubstitutions rewrites standalone occurrences of every replaced shade
// in the checklist. Occurrences inside a longer token are left alone.
func PropagateSubstitutions(checklist []string, subs []Substitution) {
	for _, sub := range subs {
		if sub.From == "" || sub.From == sub.To {
			continue
		}
		token := regexp.MustCompile(`\b` + regexp.QuoteMeta(sub.From) + `\b`)
		for i := range checklist {
			checklist[i] = token.ReplaceAllLiteralString(checklist[i], sub.To)
		}
	}
}

// retiredShades drops substitutions whose original shade is still used by
// another layer, so checklist steps for that layer keep their shade.
func retiredShades(layers []entities.StratificationLayer, subs []Substitution) []Substitution {
	inUse := make(map[string]bool, len(layers))
	for _, l := range layers {
		inUse[l.Shade] = true
	}
	var retired []Substitution
	for _, sub := range subs {
		if !inUse[sub.From] {
			retired = append(retired, sub)
		}
	}
	return retired
}

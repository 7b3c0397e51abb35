package safety

import (
	"regexp"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/validation"
)

// HFDisilicateWarning is appended to lithium disilicate protocols that etch with HF.
const HFDisilicateWarning = "Dissilicato de lítio: condicionar com ácido fluorídrico a 5% por 20s. " +
	"Concentração de 10% ou tempos maiores degradam a fase vítrea e comprometem a adesão."

// HFEtchDuration is the etching time enforced on lithium disilicate.
const HFEtchDuration = "20s"

var (
	hfMention     = regexp.MustCompile(`(?i)\bHF\b|fluor[ií]drico|hydrofluoric`)
	tenPercent    = regexp.MustCompile(`10\s*%`)
	stepDurations = regexp.MustCompile(`(?i)\b\d+\s*(?:segundos|seconds|seg|s)\b`)
)

// ApplyCementationRules enforces the HF concentration and time limits for lithium
// disilicate. The protocol is modified in place.
func (p *Processor) ApplyCementationRules(protocol *entities.CementationProtocol, c CementationContext) Report {
	var report Report
	if protocol == nil {
		return report
	}
	ceramic, ok := validation.NormalizeCeramicType(c.CeramicType)
	if !ok || ceramic != validation.CeramicLithiumDisilicate {
		return report
	}

	hfSteps := 0
	for i := range protocol.CeramicTreatment {
		step := &protocol.CeramicTreatment[i]
		if !hfMention.MatchString(step.Step) && !hfMention.MatchString(step.Material) {
			continue
		}
		hfSteps++

		before := *step
		step.Step = tenPercent.ReplaceAllString(step.Step, "5%")
		step.Material = tenPercent.ReplaceAllString(step.Material, "5%")
		step.Step = stepDurations.ReplaceAllString(step.Step, HFEtchDuration)
		step.Duration = HFEtchDuration
		if *step != before {
			report.StepsRewritten++
		}
	}

	if hfSteps > 0 {
		var added bool
		protocol.Warnings, added = appendOnce(protocol.Warnings, HFDisilicateWarning)
		if added {
			report.WarningsAdded = append(report.WarningsAdded, HFDisilicateWarning)
		}
	}
	return report
}

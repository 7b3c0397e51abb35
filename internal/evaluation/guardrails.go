package evaluation

import (
	"fmt"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

type GuardrailConfig struct {
	// RejectLowConfidence flags protocols the model itself rated low
	RejectLowConfidence bool
	MaxLayers           int
	MaxChecklistSteps   int
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxLayers <= 0 {
		config.MaxLayers = 6
	}
	if config.MaxChecklistSteps <= 0 {
		config.MaxChecklistSteps = 30
	}
	return &Guardrails{config: config}
}

func (g *Guardrails) CheckResin(p *entities.ResinProtocol) []string {
	var violations []string
	if g.config.RejectLowConfidence && p.Confidence == entities.ConfidenceLow {
		violations = append(violations, "low confidence")
	}
	if len(p.Layers) > g.config.MaxLayers {
		violations = append(violations, fmt.Sprintf("%d layers exceeds %d", len(p.Layers), g.config.MaxLayers))
	}
	if len(p.Checklist) > g.config.MaxChecklistSteps {
		violations = append(violations, fmt.Sprintf("%d checklist steps exceeds %d", len(p.Checklist), g.config.MaxChecklistSteps))
	}
	return violations
}

func (g *Guardrails) CheckCementation(p *entities.CementationProtocol) []string {
	var violations []string
	if g.config.RejectLowConfidence && p.Confidence == entities.ConfidenceLow {
		violations = append(violations, "low confidence")
	}
	if len(p.Checklist) > g.config.MaxChecklistSteps {
		violations = append(violations, fmt.Sprintf("%d checklist steps exceeds %d", len(p.Checklist), g.config.MaxChecklistSteps))
	}
	return violations
}

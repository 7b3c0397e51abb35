package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

func TestGuardrails_RejectLowConfidence(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{RejectLowConfidence: true})

	assert.Equal(t, []string{"low confidence"}, g.CheckResin(&entities.ResinProtocol{Confidence: entities.ConfidenceLow}))
	assert.Empty(t, g.CheckResin(&entities.ResinProtocol{Confidence: entities.ConfidenceMedium}))
	assert.Equal(t, []string{"low confidence"}, g.CheckCementation(&entities.CementationProtocol{Confidence: entities.ConfidenceLow}))

	lenient := NewGuardrails(GuardrailConfig{})
	assert.Empty(t, lenient.CheckResin(&entities.ResinProtocol{Confidence: entities.ConfidenceLow}))
}

func TestGuardrails_LimitLayers(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MaxLayers: 2})

	protocol := &entities.ResinProtocol{Layers: make([]entities.StratificationLayer, 3)}
	violations := g.CheckResin(protocol)

	assert.Len(t, violations, 1)
	assert.Contains(t, violations[0], "3 layers exceeds 2")
}

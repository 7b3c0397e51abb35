package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/zatekoja/dentalprotocols/backend/internal/safety"
	"github.com/zatekoja/dentalprotocols/backend/internal/validation"
)

// Runner replays golden completions through output validation and the
// safety rules, without calling the AI provider.
type Runner struct {
	processor  *safety.Processor
	guardrails *Guardrails
}

func NewRunner(processor *safety.Processor, guardrails *Guardrails) *Runner {
	if processor == nil {
		processor = safety.NewProcessor(nil)
	}
	if guardrails == nil {
		guardrails = NewGuardrails(GuardrailConfig{})
	}
	return &Runner{processor: processor, guardrails: guardrails}
}

func (r *Runner) Run(ctx context.Context, cases []GoldenCase) (*Summary, error) {
	summary := &Summary{
		TotalCases: len(cases),
		ByKind:     make(map[Kind]*KindStat),
		Results:    make([]CaseResult, 0, len(cases)),
	}

	for _, gc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		var result CaseResult
		switch gc.Kind {
		case KindCementation:
			result = r.runCementation(gc)
		default:
			result = r.runResin(ctx, gc)
		}
		result.Latency = time.Since(start)

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) runResin(ctx context.Context, gc GoldenCase) CaseResult {
	result := CaseResult{CaseID: gc.ID, Kind: KindResin}

	protocol, err := validation.ParseResinProtocol(completionText(gc.Completion))
	if err != nil {
		result.ParseError = err.Error()
		return result
	}
	result.Parsed = true

	report := r.processor.ApplyResinRules(ctx, protocol, safety.ResinContext{ToothColor: gc.ToothColor})
	result.Substitutions = len(report.Substitutions)

	shades := make([]string, len(protocol.Layers))
	for i, layer := range protocol.Layers {
		shades[i] = layer.Shade
	}
	result.ShadeAccuracy = PositionalAccuracy(gc.ExpectedShades, shades)
	result.AlertRecall = FragmentRecall(gc.ExpectedAlerts, append(append([]string{}, protocol.Alerts...), protocol.Warnings...))
	result.Violations = r.guardrails.CheckResin(protocol)
	return result
}

func (r *Runner) runCementation(gc GoldenCase) CaseResult {
	result := CaseResult{CaseID: gc.ID, Kind: KindCementation}

	protocol, err := validation.ParseCementationProtocol(completionText(gc.Completion))
	if err != nil {
		result.ParseError = err.Error()
		return result
	}
	result.Parsed = true

	r.processor.ApplyCementationRules(protocol, safety.CementationContext{CeramicType: gc.CeramicType})

	result.ShadeAccuracy = 1.0
	result.AlertRecall = FragmentRecall(gc.ExpectedAlerts, append(append([]string{}, protocol.Alerts...), protocol.Warnings...))
	result.Violations = r.guardrails.CheckCementation(protocol)
	return result
}

// completionText accepts a completion stored either as a JSON object or as the
// raw model text encoded in a JSON string.
func completionText(raw json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return trimmed
	}
	return []byte(text)
}

func (r *Runner) updateSummary(s *Summary, res CaseResult) {
	s.Results = append(s.Results, res)
	s.AvgLatency += res.Latency
	if !res.Parsed {
		s.FlaggedCases++
		return
	}

	s.ParsedCases++
	s.AvgShadeAccuracy += res.ShadeAccuracy
	s.AvgAlertRecall += res.AlertRecall
	if len(res.Violations) > 0 {
		s.FlaggedCases++
	}

	if _, ok := s.ByKind[res.Kind]; !ok {
		s.ByKind[res.Kind] = &KindStat{}
	}
	ks := s.ByKind[res.Kind]
	ks.Count++
	ks.AvgShadeAccuracy += res.ShadeAccuracy
	ks.AvgAlertRecall += res.AlertRecall
}

// finalizeSummary averages accuracy over parsed cases and latency over all cases
func (r *Runner) finalizeSummary(s *Summary) {
	if s.ParsedCases > 0 {
		n := float64(s.ParsedCases)
		s.AvgShadeAccuracy /= n
		s.AvgAlertRecall /= n
	}
	if s.TotalCases > 0 {
		s.AvgLatency /= time.Duration(s.TotalCases)
	}

	for _, ks := range s.ByKind {
		if ks.Count > 0 {
			n := float64(ks.Count)
			ks.AvgShadeAccuracy /= n
			ks.AvgAlertRecall /= n
		}
	}
}

package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ModelRate is the USD price per 1K tokens of a model
type ModelRate struct {
	Input  float64
	Output float64
}

// DefaultModelRate applies to models missing from the rate table.
var DefaultModelRate = ModelRate{Input: 0.003, Output: 0.015}

var modelRates = map[string]ModelRate{
	"gpt-4o":       {Input: 0.0025, Output: 0.01},
	"gpt-4o-mini":  {Input: 0.00015, Output: 0.0006},
	"gpt-4.1":      {Input: 0.002, Output: 0.008},
	"gpt-4.1-mini": {Input: 0.0004, Output: 0.0016},
}

// RateFor returns the rate of a model. Dated snapshots ("gpt-4o-2024-08-06")
// resolve to the longest matching family name.
func RateFor(model string) ModelRate {
	if rate, ok := modelRates[model]; ok {
		return rate
	}
	best := ""
	for name := range modelRates {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return modelRates[best]
	}
	return DefaultModelRate
}

// EstimateCost returns the estimated USD cost of one completion.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	rate := RateFor(model)
	return float64(tokensIn)/1000*rate.Input + float64(tokensOut)/1000*rate.Output
}

// PromptCall identifies the prompt behind one AI call
type PromptCall struct {
	PromptID      string
	PromptVersion string
	Model         string
}

// AIExecution is what an instrumented AI call reports back
type AIExecution[T any] struct {
	Result    T
	TokensIn  int
	TokensOut int
}

// WithAIMetrics runs exactly one AI call and logs its usage and estimated cost.
// The error from execute is returned unchanged.
func WithAIMetrics[T any](ctx context.Context, call PromptCall, execute func(ctx context.Context) (AIExecution[T], error)) (T, error) {
	start := time.Now()
	exec, err := execute(ctx)
	latency := time.Since(start)
	logger := LoggerFromContext(ctx)

	if err != nil {
		logger.Error().
			Str("prompt_id", call.PromptID).
			Str("prompt_version", call.PromptVersion).
			Str("model", call.Model).
			Int("tokens_in", 0).
			Int("tokens_out", 0).
			Float64("estimated_cost", 0).
			Int64("latency_ms", latency.Milliseconds()).
			Bool("success", false).
			Time("timestamp", start).
			Str("error", err.Error()).
			Msg("AI call failed")
		recordAICall(ctx, call, latency, 0, 0, 0, false)
		var zero T
		return zero, err
	}

	cost := EstimateCost(call.Model, exec.TokensIn, exec.TokensOut)
	logger.Info().
		Str("prompt_id", call.PromptID).
		Str("prompt_version", call.PromptVersion).
		Str("model", call.Model).
		Int("tokens_in", exec.TokensIn).
		Int("tokens_out", exec.TokensOut).
		Float64("estimated_cost", cost).
		Int64("latency_ms", latency.Milliseconds()).
		Bool("success", true).
		Time("timestamp", start).
		Msg("AI call completed")
	recordAICall(ctx, call, latency, exec.TokensIn, exec.TokensOut, cost, true)
	return exec.Result, nil
}

type aiMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	tokens          metric.Int64Counter
	cost            metric.Float64Counter
}

var (
	aiMetricsOnce sync.Once
	aiMetricsInst *aiMetrics
)

func ensureAIMetrics() *aiMetrics {
	aiMetricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName + "/ai")

		requestCount, err := meter.Int64Counter(
			"ai.request.count",
			metric.WithDescription("Number of AI provider calls"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.request.duration",
			metric.WithDescription("AI provider call duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		tokens, err := meter.Int64Counter(
			"ai.tokens",
			metric.WithDescription("Tokens consumed by AI provider calls"),
		)
		if err != nil {
			return
		}
		cost, err := meter.Float64Counter(
			"ai.cost",
			metric.WithDescription("Estimated AI provider cost in USD"),
			metric.WithUnit("USD"),
		)
		if err != nil {
			return
		}
		aiMetricsInst = &aiMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			tokens:          tokens,
			cost:            cost,
		}
	})
	return aiMetricsInst
}

func recordAICall(ctx context.Context, call PromptCall, latency time.Duration, tokensIn, tokensOut int, cost float64, success bool) {
	m := ensureAIMetrics()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("ai.prompt_id", call.PromptID),
		attribute.String("ai.prompt_version", call.PromptVersion),
		attribute.String("ai.model", call.Model),
		attribute.Bool("ai.success", success),
	)
	m.requestCount.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, float64(latency.Milliseconds()), attrs)
	if tokensIn > 0 {
		m.tokens.Add(ctx, int64(tokensIn), attrs, metric.WithAttributes(attribute.String("ai.token_kind", "input")))
	}
	if tokensOut > 0 {
		m.tokens.Add(ctx, int64(tokensOut), attrs, metric.WithAttributes(attribute.String("ai.token_kind", "output")))
	}
	if cost > 0 {
		m.cost.Add(ctx, cost, attrs)
	}
}

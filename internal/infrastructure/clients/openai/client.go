package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	"github.com/zatekoja/dentalprotocols/backend/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const (
	defaultModel       = "gpt-4o"
	defaultTemperature = 0.2
	defaultMaxTokens   = 4096
)

// Client implements providers.ProtocolGenerator on the OpenAI chat completions API.
type Client struct {
	api     *goopenai.Client
	model   string
	limiter *rate.Limiter
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:     goopenai.NewClientWithConfig(apiCfg),
		model:   model,
		limiter: newLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

// newLimiter paces outgoing requests. A negative rpm disables pacing.
func newLimiter(rpm int, burst int) *rate.Limiter {
	if rpm < 0 {
		return nil
	}
	if rpm == 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = 5
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenerateJSON requests a JSON object answer.
func (c *Client) GenerateJSON(ctx context.Context, prompt providers.Prompt) (*providers.Completion, error) {
	req := c.baseRequest(prompt)
	req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
		Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty message content", providers.ErrMalformedCompletion)
	}
	return completionFrom(resp, []byte(content)), nil
}

// GenerateFunctionCall forces a call to prompt.FunctionName and returns its arguments.
func (c *Client) GenerateFunctionCall(ctx context.Context, prompt providers.Prompt, schema json.RawMessage) (*providers.Completion, error) {
	if prompt.FunctionName == "" {
		return nil, errors.New("function name is required")
	}

	req := c.baseRequest(prompt)
	req.Tools = []goopenai.Tool{{
		Type: goopenai.ToolTypeFunction,
		Function: &goopenai.FunctionDefinition{
			Name:       prompt.FunctionName,
			Parameters: schema,
		},
	}}
	req.ToolChoice = goopenai.ToolChoice{
		Type:     goopenai.ToolTypeFunction,
		Function: goopenai.ToolFunction{Name: prompt.FunctionName},
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name == prompt.FunctionName && strings.TrimSpace(call.Function.Arguments) != "" {
			return completionFrom(resp, []byte(call.Function.Arguments)), nil
		}
	}
	return nil, fmt.Errorf("%w: no %s function call", providers.ErrMalformedCompletion, prompt.FunctionName)
}

func (c *Client) baseRequest(prompt providers.Prompt) goopenai.ChatCompletionRequest {
	return goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt.User},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
}

func (c *Client) complete(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordOpenAIMetric(ctx, c.model, 0, 0, err)
			return goopenai.ChatCompletionResponse{}, err
		}
		recordOpenAIRateLimitWait(ctx, c.model, time.Since(waitStart))
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		status := statusOf(err)
		recordOpenAIMetric(ctx, c.model, status, time.Since(start), err)
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return resp, fmt.Errorf("%w: openai request failed with status %d", providers.ErrGeneratorUnauthorized, status)
		}
		return resp, fmt.Errorf("openai request failed: %w", err)
	}
	recordOpenAIMetric(ctx, c.model, http.StatusOK, time.Since(start), nil)

	if len(resp.Choices) == 0 {
		return resp, fmt.Errorf("%w: no choices", providers.ErrMalformedCompletion)
	}
	return resp, nil
}

func completionFrom(resp goopenai.ChatCompletionResponse, content []byte) *providers.Completion {
	model := resp.Model
	if model == "" {
		model = "unknown"
	}
	return &providers.Completion{
		Content:   content,
		Model:     model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}
}

func statusOf(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

type openAIMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var (
	openaiMetricsOnce sync.Once
	openaiMetrics     *openAIMetrics
)

func ensureOpenAIMetrics() *openAIMetrics {
	openaiMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/zatekoja/dentalprotocols/backend/openai")

		requestCount, err := meter.Int64Counter(
			"ai.openai.request.count",
			metric.WithDescription("Number of OpenAI requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.openai.request.duration",
			metric.WithDescription("OpenAI request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.openai.request.errors",
			metric.WithDescription("Number of OpenAI request errors"),
		)
		if err != nil {
			return
		}
		rateLimitWait, err := meter.Float64Histogram(
			"ai.openai.rate_limit.wait",
			metric.WithDescription("Time spent waiting for OpenAI rate limiter in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}

		openaiMetrics = &openAIMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			rateLimitWait:   rateLimitWait,
		}
	})
	return openaiMetrics
}

func recordOpenAIMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	m := ensureOpenAIMetrics()
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	m.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordOpenAIRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	m := ensureOpenAIMetrics()
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}

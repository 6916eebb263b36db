// Package models adapts LangChainGo models to ctxwindow.Model, the
// summarization collaborator of the compaction package.
package models

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickchristie/ctxwindow"
	"github.com/tmc/langchaingo/llms"
)

// LCGWrapper wraps an llms.Model and implements ctxwindow.Model.
// It normalizes token usage across providers and logs every call
// at debug level.
//
// Example usage:
//
//	llm, _ := openai.New(openai.WithToken(apiKey))
//	model := models.NewLCGWrapper(llm).WithModelName("gpt-4o-mini")
//
//	strategy := compaction.Summary{
//	    KeepRecentTokens:     4000,
//	    CompressionThreshold: 24000,
//	    Model:                model,
//	}
type LCGWrapper struct {
	model     llms.Model
	modelName string
	logger    *slog.Logger
}

var _ ctxwindow.Model = (*LCGWrapper)(nil)

// NewLCGWrapper creates a new LCGWrapper wrapping the given
// llms.Model.
func NewLCGWrapper(model llms.Model) *LCGWrapper {
	return &LCGWrapper{
		model:  model,
		logger: slog.Default(),
	}
}

// WithModelName sets the model name used in log records.
// Returns the model for chaining.
func (m *LCGWrapper) WithModelName(name string) *LCGWrapper {
	m.modelName = name
	return m
}

// WithLogger sets the logger. Returns the model for chaining.
func (m *LCGWrapper) WithLogger(logger *slog.Logger) *LCGWrapper {
	m.logger = logger
	return m
}

// ModelName returns the configured model name.
func (m *LCGWrapper) ModelName() string {
	return m.modelName
}

// Unwrap returns the underlying llms.Model.
func (m *LCGWrapper) Unwrap() llms.Model {
	return m.model
}

// GenerateContent implements ctxwindow.Model.
func (m *LCGWrapper) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*ctxwindow.ContentResponse, error) {
	start := time.Now()
	lcgResponse, err := m.model.GenerateContent(ctx, messages, options...)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}

	var response *ctxwindow.ContentResponse
	if lcgResponse != nil {
		response = convertLCGResponse(lcgResponse, duration)
		m.logger.Debug(
			"model call",
			"model", m.modelName,
			"duration", duration,
			"input_tokens", response.Info.InputTokens,
			"output_tokens", response.Info.OutputTokens,
		)
	}
	return response, nil
}

// Provider keys for normalized token counts, in lookup order.
var (
	inputTokenKeys = []string{
		"PromptTokens", // OpenAI, Ollama, Google (compat)
		"InputTokens",  // Anthropic
		"input_tokens", // Google, Bedrock
	}
	outputTokenKeys = []string{
		"CompletionTokens", // OpenAI, Ollama, Google (compat)
		"OutputTokens",     // Anthropic
		"output_tokens",    // Google, Bedrock
	}
	totalTokenKeys = []string{
		"TotalTokens",
		"total_tokens",
	}
	cachedTokenKeys = []string{
		"PromptCachedTokens",   // OpenAI
		"CacheReadInputTokens", // Anthropic
		"CachedTokens",         // Google, Ollama
	}
	reasoningTokenKeys = []string{
		"ReasoningTokens",
		"CompletionReasoningTokens",
		"ThinkingTokens",
	}
)

// convertLCGResponse converts an llms.ContentResponse, normalizing
// the token counts reported in the first choice's GenerationInfo.
func convertLCGResponse(
	lcgResponse *llms.ContentResponse,
	duration time.Duration,
) *ctxwindow.ContentResponse {
	response := &ctxwindow.ContentResponse{
		Choices: make([]*ctxwindow.ContentChoice, len(lcgResponse.Choices)),
		Info:    &ctxwindow.GenerationInfo{Duration: duration},
	}
	for i, choice := range lcgResponse.Choices {
		response.Choices[i] = &ctxwindow.ContentChoice{
			Content:          choice.Content,
			StopReason:       choice.StopReason,
			ToolCalls:        choice.ToolCalls,
			ReasoningContent: choice.ReasoningContent,
		}
	}

	if len(lcgResponse.Choices) == 0 ||
		lcgResponse.Choices[0].GenerationInfo == nil {
		return response
	}
	raw := lcgResponse.Choices[0].GenerationInfo
	info := response.Info
	info.RawGenerationInfo = raw
	info.InputTokens = firstCount(raw, inputTokenKeys)
	info.OutputTokens = firstCount(raw, outputTokenKeys)
	info.TotalTokens = firstCount(raw, totalTokenKeys)
	if info.TotalTokens == 0 {
		info.TotalTokens = info.InputTokens + info.OutputTokens
	}
	info.CachedInputTokens = firstCount(raw, cachedTokenKeys)
	info.ReasoningTokens = firstCount(raw, reasoningTokenKeys)
	return response
}

// firstCount returns the first positive count found under keys.
func firstCount(info map[string]any, keys []string) int {
	for _, key := range keys {
		if n := toInt(info[key]); n > 0 {
			return n
		}
	}
	return 0
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}

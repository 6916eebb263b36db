package ctxwindow

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Model is the LLM collaborator used for summarization. It wraps
// LangChainGo's llms.Model with normalized token usage
// information; see models.LCGWrapper.
//
// GenerateContent blocks until the model answers or ctx is done.
// The suspending entry points of this module run it on a separate
// goroutine, so implementations do not need to be async-aware.
type Model interface {
	GenerateContent(
		ctx context.Context,
		messages []llms.MessageContent,
		options ...llms.CallOption,
	) (*ContentResponse, error)
}

// ContentResponse is the response from a GenerateContent call.
type ContentResponse struct {
	// Choices contains the generated content choices.
	Choices []*ContentChoice

	// Info contains generation metadata including normalized
	// token counts.
	Info *GenerationInfo
}

// ContentChoice is a single content choice from the model.
type ContentChoice struct {
	// Content is the textual content of the response.
	Content string

	// StopReason is the reason the model stopped generating.
	StopReason string

	// ToolCalls is a list of tool calls the model asks to invoke.
	ToolCalls []llms.ToolCall

	// ReasoningContent contains reasoning/thinking content if
	// supported.
	ReasoningContent string
}

// GenerationInfo contains metadata about the generation including
// normalized token counts.
type GenerationInfo struct {
	// InputTokens is the number of input/prompt tokens used.
	// This is normalized across providers:
	//   - OpenAI: PromptTokens
	//   - Anthropic: InputTokens
	//   - Google / Bedrock: input_tokens
	InputTokens int

	// OutputTokens is the number of output/completion tokens
	// generated, normalized like InputTokens.
	OutputTokens int

	// TotalTokens is InputTokens + OutputTokens unless the
	// provider reports it directly.
	TotalTokens int

	// CachedInputTokens is the part of InputTokens served from the
	// provider's prompt cache, when reported.
	CachedInputTokens int

	// ReasoningTokens is the part of OutputTokens spent on
	// reasoning, when reported.
	ReasoningTokens int

	// RawGenerationInfo is the provider's original map.
	RawGenerationInfo map[string]any

	// Duration is the wall-clock time of the call.
	Duration time.Duration
}

// FirstContent returns the content of the first choice, or ""
// when the response has no choices.
func (r *ContentResponse) FirstContent() string {
	if r == nil || len(r.Choices) == 0 || r.Choices[0] == nil {
		return ""
	}
	return r.Choices[0].Content
}

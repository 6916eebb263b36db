package ctxwindow

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
)

// MessageOrigin records who produced a message. Messages that
// come from the agent loop are [OriginConversation]; messages
// the engine synthesizes carry one of the other values so later
// passes can recognize them.
type MessageOrigin int

const (
	// OriginConversation is a message produced by the agent
	// loop (user input, model output, tool output).
	OriginConversation MessageOrigin = iota

	// OriginSummary is the synthetic context message that
	// stands in for summarized history.
	OriginSummary

	// OriginExecutionStatus is an injected execution-status
	// message rendered by a hooks.ExecutionPlan.
	OriginExecutionStatus
)

// String returns the origin name used in logs.
func (o MessageOrigin) String() string {
	switch o {
	case OriginSummary:
		return "summary"
	case OriginExecutionStatus:
		return "execution_status"
	default:
		return "conversation"
	}
}

// Message is one ordered conversation unit.
//
// The role selects the variant:
//   - llms.ChatMessageTypeSystem: system instructions
//   - llms.ChatMessageTypeHuman: user input
//   - llms.ChatMessageTypeAI: assistant output, text parts plus
//     zero or more llms.ToolCall parts
//   - llms.ChatMessageTypeTool: tool output, one or more
//     llms.ToolCallResponse parts
//
// ID is the stable identifier used by [RemovalMarker] and
// [Merge]. Messages are treated as immutable once built: every
// transform in this module returns a new *Message instead of
// editing one in place.
type Message struct {
	ID     string
	Role   llms.ChatMessageType
	Parts  []llms.ContentPart
	Origin MessageOrigin
}

func (*Message) isEntry() {}

// NewMessage creates a message with a fresh ID.
func NewMessage(
	role llms.ChatMessageType,
	parts ...llms.ContentPart,
) *Message {
	return &Message{
		ID:    uuid.NewString(),
		Role:  role,
		Parts: parts,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(text string) *Message {
	return NewMessage(
		llms.ChatMessageTypeSystem,
		llms.TextContent{Text: text},
	)
}

// NewHumanMessage creates a user message.
func NewHumanMessage(text string) *Message {
	return NewMessage(
		llms.ChatMessageTypeHuman,
		llms.TextContent{Text: text},
	)
}

// NewAIMessage creates an assistant message. Empty text is
// omitted so tool-call-only messages carry no text part.
func NewAIMessage(text string, calls ...llms.ToolCall) *Message {
	parts := make([]llms.ContentPart, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, llms.TextContent{Text: text})
	}
	for _, call := range calls {
		parts = append(parts, call)
	}
	return NewMessage(llms.ChatMessageTypeAI, parts...)
}

// NewToolMessage creates a tool-result message answering the
// tool call with the given ID.
func NewToolMessage(callID, name, content string) *Message {
	return NewMessage(
		llms.ChatMessageTypeTool,
		llms.ToolCallResponse{
			ToolCallID: callID,
			Name:       name,
			Content:    content,
		},
	)
}

// NewToolCall creates a function tool call. args must be a
// JSON document, normally an object.
func NewToolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

// AssignIDs returns msgs with every ID-less message replaced by a
// clone carrying a fresh ID. Removal markers address messages by
// ID, so the engine needs one on every message it may drop. msgs
// is returned as is when all messages already have IDs; the input
// messages are never modified.
func AssignIDs(msgs []*Message) []*Message {
	var out []*Message
	for i, m := range msgs {
		if m == nil || m.ID != "" {
			if out != nil {
				out = append(out, m)
			}
			continue
		}
		if out == nil {
			out = make([]*Message, i, len(msgs))
			copy(out, msgs[:i])
		}
		c := m.Clone()
		c.ID = uuid.NewString()
		out = append(out, c)
	}
	if out == nil {
		return msgs
	}
	return out
}

// WithID sets the message ID. Returns the message for chaining.
func (m *Message) WithID(id string) *Message {
	m.ID = id
	return m
}

// ToolCalls returns the tool calls carried by an assistant
// message, in order.
func (m *Message) ToolCalls() []llms.ToolCall {
	if m == nil || m.Role != llms.ChatMessageTypeAI {
		return nil
	}
	var calls []llms.ToolCall
	for _, part := range m.Parts {
		if call, ok := part.(llms.ToolCall); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// HasToolCalls reports whether m is an assistant message with
// at least one tool call.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls()) > 0
}

// ToolResponses returns the tool results carried by a tool
// message, in order.
func (m *Message) ToolResponses() []llms.ToolCallResponse {
	if m == nil || m.Role != llms.ChatMessageTypeTool {
		return nil
	}
	var responses []llms.ToolCallResponse
	for _, part := range m.Parts {
		if resp, ok := part.(llms.ToolCallResponse); ok {
			responses = append(responses, resp)
		}
	}
	return responses
}

// IsToolResult reports whether m is a tool-result message.
func (m *Message) IsToolResult() bool {
	return m != nil && m.Role == llms.ChatMessageTypeTool
}

// Text returns the text parts of m joined by newlines.
// Non-text parts are skipped.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	var texts []string
	for _, part := range m.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Clone returns a copy of m with its own Parts slice. Content
// parts are values, so the copy shares no mutable state with m
// except FunctionCall pointers, which are copied as well.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	parts := make([]llms.ContentPart, len(m.Parts))
	for i, part := range m.Parts {
		if call, ok := part.(llms.ToolCall); ok &&
			call.FunctionCall != nil {
			fc := *call.FunctionCall
			call.FunctionCall = &fc
			part = call
		}
		parts[i] = part
	}
	return &Message{
		ID:     m.ID,
		Role:   m.Role,
		Parts:  parts,
		Origin: m.Origin,
	}
}

// LLM converts m to the langchaingo message representation.
func (m *Message) LLM() llms.MessageContent {
	return llms.MessageContent{
		Role:  m.Role,
		Parts: m.Parts,
	}
}

// ToLLM converts a message slice for a model call.
func ToLLM(msgs []*Message) []llms.MessageContent {
	out := make([]llms.MessageContent, len(msgs))
	for i, m := range msgs {
		out[i] = m.LLM()
	}
	return out
}

// Render returns a plain-text rendering of m covering every part
// kind. It is what token accounting counts and what
// summarization transcripts show.
func (m *Message) Render() string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(string(m.Role))
	for _, part := range m.Parts {
		sb.WriteString("\n")
		switch p := part.(type) {
		case llms.TextContent:
			sb.WriteString(p.Text)
		case llms.ToolCall:
			if p.FunctionCall != nil {
				sb.WriteString("[Tool call ")
				sb.WriteString(p.ID)
				sb.WriteString(": ")
				sb.WriteString(p.FunctionCall.Name)
				sb.WriteString(" ")
				sb.WriteString(p.FunctionCall.Arguments)
				sb.WriteString("]")
			}
		case llms.ToolCallResponse:
			sb.WriteString("[Tool result ")
			sb.WriteString(p.ToolCallID)
			sb.WriteString(": ")
			sb.WriteString(p.Name)
			sb.WriteString("]\n")
			sb.WriteString(p.Content)
		case llms.ImageURLContent:
			sb.WriteString("[image]")
		case llms.BinaryContent:
			sb.WriteString("[binary ")
			sb.WriteString(p.MIMEType)
			sb.WriteString("]")
		}
	}
	return sb.String()
}

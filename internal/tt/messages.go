package tt

import (
	"strings"

	"github.com/rickchristie/ctxwindow"
	"github.com/tmc/langchaingo/llms"
)

// System builds a system message with a fixed ID.
func System(id, text string) *ctxwindow.Message {
	return ctxwindow.NewSystemMessage(text).WithID(id)
}

// Human builds a user message with a fixed ID.
func Human(id, text string) *ctxwindow.Message {
	return ctxwindow.NewHumanMessage(text).WithID(id)
}

// AI builds an assistant message with a fixed ID.
func AI(
	id, text string,
	calls ...llms.ToolCall,
) *ctxwindow.Message {
	return ctxwindow.NewAIMessage(text, calls...).WithID(id)
}

// Call builds a tool call.
func Call(id, name, args string) llms.ToolCall {
	return ctxwindow.NewToolCall(id, name, args)
}

// Tool builds a tool-result message with a fixed ID.
func Tool(id, callID, name, content string) *ctxwindow.Message {
	return ctxwindow.NewToolMessage(callID, name, content).WithID(id)
}

// Words returns n space-separated words, n tokens for
// FakeTokenizer.
func Words(n int) string {
	return strings.TrimSpace(strings.Repeat("w ", n))
}

// Describe renders entries as "id" for kept messages and "-id"
// for removal markers, for compact assertions.
func Describe(entries []ctxwindow.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		switch v := e.(type) {
		case *ctxwindow.Message:
			out = append(out, v.ID)
		case ctxwindow.RemovalMarker:
			out = append(out, "-"+v.DeleteID)
		}
	}
	return out
}

// IDs returns the IDs of msgs in order.
func IDs(msgs []*ctxwindow.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

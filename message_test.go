package ctxwindow_test

import (
	"testing"

	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/internal/tt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestMessage_Render(t *testing.T) {
	tests := []struct {
		name     string
		msg      *ctxwindow.Message
		expected string
	}{
		{
			name:     "human text",
			msg:      tt.Human("h1", "hello there"),
			expected: "human\nhello there",
		},
		{
			name: "assistant with text and call",
			msg: tt.AI(
				"a1", "let me look",
				tt.Call("c1", "read", `{"path":"a.go"}`),
			),
			expected: "ai\nlet me look\n[Tool call c1: read {\"path\":\"a.go\"}]",
		},
		{
			name:     "tool result",
			msg:      tt.Tool("t1", "c1", "read", "package a"),
			expected: "tool\n[Tool result c1: read]\npackage a",
		},
		{
			name: "binary and image parts",
			msg: ctxwindow.NewMessage(
				llms.ChatMessageTypeHuman,
				llms.ImageURLContent{URL: "https://example.com/a.png"},
				llms.BinaryContent{MIMEType: "application/pdf"},
			),
			expected: "human\n[image]\n[binary application/pdf]",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.msg.Render())
		})
	}
}

func TestMessage_ToolAccessors(t *testing.T) {
	call := tt.Call("c1", "read", "{}")
	ai := tt.AI("a1", "", call)
	tool := tt.Tool("t1", "c1", "read", "ok")
	human := tt.Human("h1", "hi")

	assert.Equal(t, []llms.ToolCall{call}, ai.ToolCalls())
	assert.True(t, ai.HasToolCalls())
	assert.Empty(t, ai.Text())
	assert.False(t, tool.HasToolCalls())
	assert.True(t, tool.IsToolResult())
	assert.Equal(t, "c1", tool.ToolResponses()[0].ToolCallID)
	assert.False(t, human.IsToolResult())
	assert.Nil(t, human.ToolResponses())
}

func TestMessage_Clone(t *testing.T) {
	orig := tt.AI("a1", "text", tt.Call("c1", "read", `{"a":1}`))
	orig.Origin = ctxwindow.OriginSummary

	clone := orig.Clone()
	call := clone.Parts[1].(llms.ToolCall)
	call.FunctionCall.Arguments = "{}"

	assert.Equal(t, `{"a":1}`, orig.ToolCalls()[0].FunctionCall.Arguments)
	assert.Equal(t, orig.ID, clone.ID)
	assert.Equal(t, ctxwindow.OriginSummary, clone.Origin)
}

func TestNewMessage_AssignsUniqueIDs(t *testing.T) {
	a := ctxwindow.NewHumanMessage("x")
	b := ctxwindow.NewHumanMessage("x")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAssignIDs(t *testing.T) {
	h1 := tt.Human("h1", "one")
	bare := tt.Human("", "two")
	h3 := tt.Human("h3", "three")

	t.Run("all messages with ids are returned as is", func(t *testing.T) {
		msgs := []*ctxwindow.Message{h1, h3}

		got := ctxwindow.AssignIDs(msgs)

		assert.Same(t, &msgs[0], &got[0])
	})

	t.Run("id-less messages are cloned with fresh ids", func(t *testing.T) {
		msgs := []*ctxwindow.Message{h1, bare, h3, tt.Human("", "four")}

		got := ctxwindow.AssignIDs(msgs)

		require.Len(t, got, 4)
		assert.Same(t, h1, got[0])
		assert.Same(t, h3, got[2])
		assert.NotSame(t, bare, got[1])
		assert.NotEmpty(t, got[1].ID)
		assert.NotEmpty(t, got[3].ID)
		assert.NotEqual(t, got[1].ID, got[3].ID)
		assert.Equal(t, "two", got[1].Text())
		assert.Empty(t, bare.ID)
		assert.Same(t, bare, msgs[1])
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ctxwindow.AssignIDs(nil))
	})
}

func TestToLLM(t *testing.T) {
	msgs := []*ctxwindow.Message{
		tt.System("s", "be brief"),
		tt.Human("h", "hi"),
	}

	got := ctxwindow.ToLLM(msgs)

	assert.Equal(t, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "be brief"),
		llms.TextParts(llms.ChatMessageTypeHuman, "hi"),
	}, got)
}

func TestMessageOrigin_String(t *testing.T) {
	assert.Equal(t, "conversation", ctxwindow.OriginConversation.String())
	assert.Equal(t, "summary", ctxwindow.OriginSummary.String())
	assert.Equal(t, "execution_status", ctxwindow.OriginExecutionStatus.String())
}

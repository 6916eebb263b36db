package compaction

import (
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rickchristie/ctxwindow"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/tmc/langchaingo/llms"
)

// MarkerReserve is the length budget reserved for the omission
// marker. Below it [TruncateSafely] falls back to plain head
// truncation.
const MarkerReserve = 50

// Default truncation limits of [ToolCallCompressor], in
// characters (codepoints).
const (
	DefaultMaxArgLength    = 200
	DefaultMaxResultLength = 500
)

const (
	markerPrefix = "[..."
	markerSuffix = " chars omitted...]"
)

// ToolCallCompressor shrinks individual messages by truncating
// tool-call arguments and tool-result content.
//
// Rules by message kind:
//   - Assistant with tool calls: rewritten only when every called
//     tool is in the allow-list. String argument values longer
//     than the argument limit are truncated; other values whose
//     JSON text is longer are replaced by their truncated text.
//   - Tool result: always truncated to the result limit, whatever
//     the tool.
//   - Anything else: unchanged.
//
// Compress never mutates its input. When nothing changes it
// returns the very same pointer, so callers can detect no-ops
// with ==. IDs are always preserved.
//
// Example:
//
//	c := compaction.NewToolCallCompressor("read_file", "search").
//	    WithMaxArgLength(100).
//	    WithMaxResultLength(300)
type ToolCallCompressor struct {
	tools           map[string]bool
	maxArgLength    int
	maxResultLength int
}

// NewToolCallCompressor creates a compressor allowed to rewrite
// calls to the named tools. With no tools, assistant messages are
// never rewritten.
func NewToolCallCompressor(tools ...string) *ToolCallCompressor {
	allowed := make(map[string]bool, len(tools))
	for _, name := range tools {
		allowed[name] = true
	}
	return &ToolCallCompressor{
		tools:           allowed,
		maxArgLength:    DefaultMaxArgLength,
		maxResultLength: DefaultMaxResultLength,
	}
}

// WithMaxArgLength sets the per-argument length limit.
// Panics if n < 1.
func (c *ToolCallCompressor) WithMaxArgLength(
	n int,
) *ToolCallCompressor {
	if n < 1 {
		panic("ctxwindow: ToolCallCompressor max arg length must be >= 1")
	}
	c.maxArgLength = n
	return c
}

// WithMaxResultLength sets the tool-result length limit.
// Panics if n < 1.
func (c *ToolCallCompressor) WithMaxResultLength(
	n int,
) *ToolCallCompressor {
	if n < 1 {
		panic("ctxwindow: ToolCallCompressor max result length must be >= 1")
	}
	c.maxResultLength = n
	return c
}

// Tools returns the allow-list, sorted.
func (c *ToolCallCompressor) Tools() []string {
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Compress returns msg with oversized tool content truncated, or
// msg itself when it is not eligible or already small enough.
func (c *ToolCallCompressor) Compress(
	msg *ctxwindow.Message,
) *ctxwindow.Message {
	switch {
	case msg.HasToolCalls():
		return c.compressCalls(msg)
	case msg.IsToolResult():
		return c.compressResults(msg)
	default:
		return msg
	}
}

func (c *ToolCallCompressor) compressCalls(
	msg *ctxwindow.Message,
) *ctxwindow.Message {
	for _, call := range msg.ToolCalls() {
		if call.FunctionCall == nil ||
			!c.tools[call.FunctionCall.Name] {
			return msg
		}
	}

	var out *ctxwindow.Message
	for i, part := range msg.Parts {
		call, ok := part.(llms.ToolCall)
		if !ok {
			continue
		}
		args, changed := c.truncateArgs(call.FunctionCall.Arguments)
		if !changed {
			continue
		}
		if out == nil {
			out = msg.Clone()
		}
		call = out.Parts[i].(llms.ToolCall)
		call.FunctionCall.Arguments = args
		out.Parts[i] = call
	}
	if out == nil {
		return msg
	}
	return out
}

// truncateArgs truncates each top-level value of a JSON object.
// Arguments that are not a JSON object are truncated as text.
func (c *ToolCallCompressor) truncateArgs(args string) (string, bool) {
	parsed := gjson.Parse(args)
	if !gjson.Valid(args) || !parsed.IsObject() {
		t := TruncateSafely(args, c.maxArgLength)
		return t, t != args
	}

	out := args
	changed := false
	parsed.ForEach(func(key, value gjson.Result) bool {
		text := value.Raw
		if value.Type == gjson.String {
			text = value.Str
		}
		if utf8.RuneCountInString(text) <= c.maxArgLength {
			return true
		}
		next, err := sjson.Set(
			out,
			escapePath(key.Str),
			TruncateSafely(text, c.maxArgLength),
		)
		if err != nil {
			return true
		}
		out = next
		changed = true
		return true
	})
	return out, changed
}

func (c *ToolCallCompressor) compressResults(
	msg *ctxwindow.Message,
) *ctxwindow.Message {
	var out *ctxwindow.Message
	for i, part := range msg.Parts {
		switch p := part.(type) {
		case llms.ToolCallResponse:
			t := TruncateSafely(p.Content, c.maxResultLength)
			if t == p.Content {
				continue
			}
			p.Content = t
			part = p
		case llms.TextContent:
			t := TruncateSafely(p.Text, c.maxResultLength)
			if t == p.Text {
				continue
			}
			p.Text = t
			part = p
		default:
			continue
		}
		if out == nil {
			out = msg.Clone()
		}
		out.Parts[i] = part
	}
	if out == nil {
		return msg
	}
	return out
}

// escapePath escapes characters that gjson/sjson treat as path
// syntax so a top-level key is addressed literally.
func escapePath(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', ':', '!', '=', '<', '>', '%':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// TruncateSafely shortens content to at most maxLength
// characters, counted in Unicode codepoints, never splitting a
// codepoint.
//
// Content that already fits is returned unchanged. Otherwise the
// head and tail are kept around an inline marker
// "[...K chars omitted...]", where K is the exact number of
// omitted characters, and the result is exactly maxLength long.
// When maxLength is below [MarkerReserve] there is no room for a
// marker and the first maxLength characters are returned.
//
// Truncating an already-truncated string with the same limit
// returns it unchanged.
func TruncateSafely(content string, maxLength int) string {
	total := utf8.RuneCountInString(content)
	if total <= maxLength {
		return content
	}
	if maxLength <= 0 {
		return ""
	}

	runes := []rune(content)
	if maxLength < MarkerReserve {
		return string(runes[:maxLength])
	}

	marker := omissionMarker(total, maxLength)
	keep := maxLength - len(marker)
	head := keep - keep/2
	tail := keep / 2
	return string(runes[:head]) + marker + string(runes[total-tail:])
}

// omissionMarker builds the marker for truncating total
// characters down to maxLength. The omitted count depends on the
// marker's length, which depends on the digit count of the
// omitted count; the loop finds the digit count that agrees.
func omissionMarker(total, maxLength int) string {
	for digits := 1; ; digits++ {
		markerLen := len(markerPrefix) + digits + len(markerSuffix)
		omitted := strconv.Itoa(total - (maxLength - markerLen))
		if len(omitted) == digits {
			return markerPrefix + omitted + markerSuffix
		}
	}
}

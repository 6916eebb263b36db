// Package testutil provides shared test infrastructure for
// integration scenarios: an in-memory chat session that runs a
// context hook before every model call and stores the result the
// way a checkpointing runtime would.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/schema"
	"github.com/tmc/langchaingo/llms"
)

// DefaultMaxToolRounds bounds the model calls of one Send.
const DefaultMaxToolRounds = 8

// ErrTooManyToolRounds is returned by Send when the model keeps
// calling tools past the configured bound.
var ErrTooManyToolRounds = errors.New("testutil: too many tool rounds")

// ToolFunc runs a tool with its JSON arguments.
type ToolFunc func(ctx context.Context, args string) (string, error)

// Tool is a function the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Run         ToolFunc
}

// Session is a conversation store. Before every model call it
// threads the stored history through the hook and merges the
// returned entries back with ctxwindow.Merge, so the model always
// sees the compacted history.
//
// A Session is safe for concurrent use; turns are serialized. The
// hook runs under the session lock and must not call back into the
// session.
type Session struct {
	mu            sync.Mutex
	history       []*ctxwindow.Message
	summary       string
	invocations   int
	hook          ctxwindow.Hook
	model         ctxwindow.Model
	tools         map[string]Tool
	toolOrder     []string
	maxToolRounds int
	out           io.Writer
}

// NewSession creates a session. system may be empty.
func NewSession(
	hook ctxwindow.Hook,
	model ctxwindow.Model,
	system string,
) *Session {
	s := &Session{
		hook:          hook,
		model:         model,
		tools:         make(map[string]Tool),
		maxToolRounds: DefaultMaxToolRounds,
		out:           io.Discard,
	}
	if system != "" {
		s.history = append(s.history, ctxwindow.NewSystemMessage(system))
	}
	return s
}

// WithTool registers a tool. Returns the session for chaining.
func (s *Session) WithTool(tool Tool) *Session {
	if _, ok := s.tools[tool.Name]; !ok {
		s.toolOrder = append(s.toolOrder, tool.Name)
	}
	s.tools[tool.Name] = tool
	return s
}

// WithWriter sets where the transcript is printed.
func (s *Session) WithWriter(w io.Writer) *Session {
	s.out = w
	return s
}

// WithMaxToolRounds sets the model-call bound of one Send.
func (s *Session) WithMaxToolRounds(n int) *Session {
	s.maxToolRounds = n
	return s
}

// History returns a copy of the stored history.
func (s *Session) History() []*ctxwindow.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ctxwindow.Message(nil), s.history...)
}

// RunningSummary returns the stored running summary.
func (s *Session) RunningSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Invocations returns the number of hook invocations so far.
func (s *Session) Invocations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invocations
}

// Send stores the user message and runs model calls, executing
// requested tools, until the model answers without tool calls.
// It returns the final answer.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.out, "--- Your Input ---\n%s\n", text)
	s.history = append(s.history, ctxwindow.NewHumanMessage(text))

	for round := 0; round < s.maxToolRounds; round++ {
		if err := s.compact(ctx); err != nil {
			return "", err
		}

		resp, err := s.model.GenerateContent(
			ctx, ctxwindow.ToLLM(s.history), s.callOptions()...,
		)
		if err != nil {
			return "", fmt.Errorf("model call: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return "", fmt.Errorf("model call: empty response")
		}
		choice := resp.Choices[0]
		s.history = append(
			s.history,
			ctxwindow.NewAIMessage(choice.Content, choice.ToolCalls...),
		)

		if len(choice.ToolCalls) == 0 {
			fmt.Fprintf(s.out, "--- Agent Response ---\n%s\n", choice.Content)
			return choice.Content, nil
		}
		for _, call := range choice.ToolCalls {
			s.history = append(s.history, s.runTool(ctx, call))
		}
	}
	return "", fmt.Errorf("%w: %d", ErrTooManyToolRounds, s.maxToolRounds)
}

// compact runs the hook over the stored history and merges the
// result back.
func (s *Session) compact(ctx context.Context) error {
	s.history = ctxwindow.AssignIDs(s.history)
	state := &ctxwindow.State{
		Messages:       ctxwindow.KeepAll(s.history),
		RunningSummary: s.summary,
		Invocations:    s.invocations,
	}
	out, err := s.hook.Invoke(ctx, state)
	if err != nil {
		return fmt.Errorf("context hook: %w", err)
	}

	before := len(s.history)
	s.history = ctxwindow.Merge(s.history, out.Messages)
	s.summary = out.RunningSummary
	s.invocations = out.Invocations
	if len(s.history) < before {
		fmt.Fprintf(s.out, "  [Compaction: %d -> %d messages]\n",
			before, len(s.history))
	}
	return nil
}

func (s *Session) runTool(
	ctx context.Context,
	call llms.ToolCall,
) *ctxwindow.Message {
	var name, args string
	if call.FunctionCall != nil {
		name = call.FunctionCall.Name
		args = call.FunctionCall.Arguments
	}
	fmt.Fprintf(s.out, "[Tool: %s]\n    Args: %s\n", name, args)

	tool, ok := s.tools[name]
	if !ok {
		fmt.Fprintf(s.out, "    Error: unknown tool\n")
		return ctxwindow.NewToolMessage(
			call.ID, name, fmt.Sprintf("error: unknown tool %q", name),
		)
	}
	output, err := tool.Run(ctx, args)
	if err != nil {
		fmt.Fprintf(s.out, "    Error: %v\n", err)
		output = "error: " + err.Error()
	} else {
		fmt.Fprintf(s.out, "    Output: %s\n", firstLine(output))
	}
	return ctxwindow.NewToolMessage(call.ID, name, output)
}

func (s *Session) callOptions() []llms.CallOption {
	if len(s.toolOrder) == 0 {
		return nil
	}
	defs := make([]llms.Tool, 0, len(s.toolOrder))
	for _, name := range s.toolOrder {
		tool := s.tools[name]
		params := tool.Parameters
		if params == nil {
			params = schema.Object(map[string]*schema.Property{})
		}
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return []llms.CallOption{llms.WithTools(defs)}
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(s, "\n")
	if cut {
		return line + " ..."
	}
	return line
}

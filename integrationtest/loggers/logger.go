// Package loggers provides a hook that dumps the context state for
// integration testing.
package loggers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rickchristie/ctxwindow"
	"github.com/tmc/langchaingo/llms"
	"gopkg.in/yaml.v3"
)

// LoggerHook logs the state it receives as YAML and passes it on
// unchanged. Place it after a context hook in a chain to see what
// the model will be sent. Nothing is truncated.
type LoggerHook struct {
	out   io.Writer
	stats *ctxwindow.Stats
}

var _ ctxwindow.Hook = (*LoggerHook)(nil)

// NewLoggerHook creates a new LoggerHook that writes to stdout.
func NewLoggerHook() *LoggerHook {
	return &LoggerHook{
		out: os.Stdout,
	}
}

// NewLoggerHookWithWriter creates a new LoggerHook that writes to the given writer.
func NewLoggerHookWithWriter(w io.Writer) *LoggerHook {
	return &LoggerHook{
		out: w,
	}
}

// WithStats makes the hook dump stats counters and gauges after
// the state.
func (h *LoggerHook) WithStats(stats *ctxwindow.Stats) *LoggerHook {
	h.stats = stats
	return h
}

// logEvent logs an event header with timestamp.
func (h *LoggerHook) logEvent(name string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(h.out, "\n>>> [%s]: %s\n", name, timestamp)
}

// log writes a line without any prefix.
func (h *LoggerHook) log(format string, args ...any) {
	fmt.Fprintf(h.out, format+"\n", args...)
}

func (h *LoggerHook) logYAML(v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		h.log("(failed to marshal: %v)", err)
		return
	}
	fmt.Fprint(h.out, string(data))
}

// entryDump is the YAML shape of one entry.
type entryDump struct {
	Remove    string       `yaml:"remove,omitempty"`
	ID        string       `yaml:"id,omitempty"`
	Role      string       `yaml:"role,omitempty"`
	Origin    string       `yaml:"origin,omitempty"`
	Text      string       `yaml:"text,omitempty"`
	ToolCalls []callDump   `yaml:"tool_calls,omitempty"`
	Results   []resultDump `yaml:"tool_results,omitempty"`
}

type callDump struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Args string `yaml:"args"`
}

type resultDump struct {
	CallID  string `yaml:"call_id"`
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

// stateDump is the YAML shape of a state.
type stateDump struct {
	Invocations    int         `yaml:"invocations"`
	RunningSummary string      `yaml:"running_summary,omitempty"`
	Entries        []entryDump `yaml:"entries"`
}

// Invoke implements ctxwindow.Hook.
func (h *LoggerHook) Invoke(
	ctx context.Context,
	state *ctxwindow.State,
) (*ctxwindow.State, error) {
	if state == nil {
		return nil, fmt.Errorf(
			"%w: state is nil", ctxwindow.ErrContractViolation,
		)
	}

	h.logEvent("State")
	h.log("================================================================================")
	h.log("CONTEXT: %d entries, %d pending removals",
		len(state.Messages), len(state.Pending()))
	h.log("================================================================================")
	h.logYAML(DumpState(state))

	if h.stats != nil {
		h.log("")
		h.log("Stats:")
		h.logYAML(map[string]any{
			"counters": h.stats.Counters(),
			"gauges":   h.stats.Gauges(),
		})
	}
	return state, nil
}

// DumpState converts state into its YAML-friendly shape.
func DumpState(state *ctxwindow.State) any {
	dump := stateDump{
		Invocations:    state.Invocations,
		RunningSummary: state.RunningSummary,
		Entries:        make([]entryDump, 0, len(state.Messages)),
	}
	for _, e := range state.Messages {
		dump.Entries = append(dump.Entries, dumpEntry(e))
	}
	return dump
}

func dumpEntry(e ctxwindow.Entry) entryDump {
	switch v := e.(type) {
	case ctxwindow.RemovalMarker:
		return entryDump{Remove: v.DeleteID}
	case *ctxwindow.Message:
		d := entryDump{
			ID:     v.ID,
			Role:   string(v.Role),
			Origin: v.Origin.String(),
			Text:   v.Text(),
		}
		for _, part := range v.Parts {
			switch p := part.(type) {
			case llms.ToolCall:
				var name, args string
				if p.FunctionCall != nil {
					name = p.FunctionCall.Name
					args = p.FunctionCall.Arguments
				}
				d.ToolCalls = append(d.ToolCalls, callDump{
					ID: p.ID, Name: name, Args: args,
				})
			case llms.ToolCallResponse:
				d.Results = append(d.Results, resultDump{
					CallID: p.ToolCallID, Name: p.Name, Content: p.Content,
				})
			}
		}
		return d
	default:
		return entryDump{}
	}
}

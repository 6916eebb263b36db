package loggers

import (
	"bytes"
	"context"
	"testing"

	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/internal/tt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoggerHook_Invoke(t *testing.T) {
	var buf bytes.Buffer
	stats := ctxwindow.NewStats()
	stats.IncrCounter(ctxwindow.KeyInvocations, 2)
	hook := NewLoggerHookWithWriter(&buf).WithStats(stats)

	state := &ctxwindow.State{
		Messages: []ctxwindow.Entry{
			ctxwindow.RemovalMarker{DeleteID: "old"},
			tt.Human("h1", "find the bug"),
			tt.AI("a1", "", tt.Call("c1", "read", `{"path":"a.go"}`)),
			tt.Tool("t1", "c1", "read", "package a"),
		},
		RunningSummary: "user is debugging",
		Invocations:    2,
	}

	out, err := hook.Invoke(context.Background(), state)

	require.NoError(t, err)
	assert.Same(t, state, out)
	logged := buf.String()
	assert.Contains(t, logged, "CONTEXT: 4 entries, 1 pending removals")
	assert.Contains(t, logged, "remove: old")
	assert.Contains(t, logged, "running_summary: user is debugging")
	assert.Contains(t, logged, "counters:")
	assert.Contains(t, logged, string(ctxwindow.KeyInvocations))
}

func TestLoggerHook_NilState(t *testing.T) {
	hook := NewLoggerHookWithWriter(&bytes.Buffer{})

	_, err := hook.Invoke(context.Background(), nil)

	assert.ErrorIs(t, err, ctxwindow.ErrContractViolation)
}

func TestDumpState(t *testing.T) {
	status := tt.Human("s1", "step 2 of 3")
	status.Origin = ctxwindow.OriginExecutionStatus
	state := &ctxwindow.State{
		Messages: []ctxwindow.Entry{
			ctxwindow.RemovalMarker{DeleteID: "x"},
			tt.AI("a1", "checking", tt.Call("c1", "read", "{}")),
			tt.Tool("t1", "c1", "read", "ok"),
			status,
		},
		Invocations: 3,
	}

	data, err := yaml.Marshal(DumpState(state))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{
		"invocations": 3,
		"entries": []any{
			map[string]any{"remove": "x"},
			map[string]any{
				"id":     "a1",
				"role":   "ai",
				"origin": "conversation",
				"text":   "checking",
				"tool_calls": []any{
					map[string]any{"id": "c1", "name": "read", "args": "{}"},
				},
			},
			map[string]any{
				"id":     "t1",
				"role":   "tool",
				"origin": "conversation",
				"tool_results": []any{
					map[string]any{
						"call_id": "c1", "name": "read", "content": "ok",
					},
				},
			},
			map[string]any{
				"id":     "s1",
				"role":   "human",
				"origin": "execution_status",
				"text":   "step 2 of 3",
			},
		},
	}, decoded)
}

package tt

import (
	"context"
	"strings"
	"sync"

	"github.com/rickchristie/ctxwindow"
	"github.com/tmc/langchaingo/llms"
)

// -----------------------------------------------------------------------------
// MockModel - implements ctxwindow.Model
// -----------------------------------------------------------------------------

// MockModel is a configurable mock that implements
// ctxwindow.Model. Responses and errors are returned in the order
// they were queued. It is safe for concurrent use.
type MockModel struct {
	mu        sync.Mutex
	responses []*ctxwindow.ContentResponse
	errors    []error
	callCount int
	gate      <-chan struct{}
	ignoreCtx bool

	// CapturedMessages stores the messages passed to each
	// GenerateContent call.
	CapturedMessages [][]llms.MessageContent
}

// NewMockModel creates a new MockModel.
func NewMockModel() *MockModel {
	return &MockModel{}
}

// AddResponse queues a response with the specified content.
func (m *MockModel) AddResponse(content string) *MockModel {
	m.responses = append(m.responses, &ctxwindow.ContentResponse{
		Choices: []*ctxwindow.ContentChoice{{Content: content}},
		Info: &ctxwindow.GenerationInfo{
			InputTokens:  100,
			OutputTokens: 20,
		},
	})
	return m
}

// AddToolCallResponse queues a response whose only content is
// the given tool calls.
func (m *MockModel) AddToolCallResponse(calls ...llms.ToolCall) *MockModel {
	m.responses = append(m.responses, &ctxwindow.ContentResponse{
		Choices: []*ctxwindow.ContentChoice{{ToolCalls: calls}},
		Info: &ctxwindow.GenerationInfo{
			InputTokens:  100,
			OutputTokens: 10,
		},
	})
	return m
}

// AddRawResponse queues a raw ContentResponse. Use this when you
// need full control over the response structure (e.g., empty
// Choices slice).
func (m *MockModel) AddRawResponse(
	resp *ctxwindow.ContentResponse,
) *MockModel {
	m.responses = append(m.responses, resp)
	return m
}

// AddError queues an error for the next call.
func (m *MockModel) AddError(err error) *MockModel {
	for len(m.responses) <= len(m.errors) {
		m.responses = append(m.responses, nil)
	}
	m.errors = append(m.errors, err)
	return m
}

// BlockUntil makes every call wait until gate is closed. The wait
// ends early with ctx.Err() unless IgnoreContext is set.
func (m *MockModel) BlockUntil(gate <-chan struct{}) *MockModel {
	m.gate = gate
	return m
}

// IgnoreContext makes blocked calls ignore cancellation, like a
// client that does not honor ctx.
func (m *MockModel) IgnoreContext() *MockModel {
	m.ignoreCtx = true
	return m
}

// CallCount returns the number of GenerateContent calls.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the text of every message of the most recent
// call, joined by newlines.
func (m *MockModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.CapturedMessages) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, msg := range m.CapturedMessages[len(m.CapturedMessages)-1] {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				sb.WriteString(tc.Text)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// GenerateContent implements ctxwindow.Model.
func (m *MockModel) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	opts ...llms.CallOption,
) (*ctxwindow.ContentResponse, error) {
	m.mu.Lock()
	idx := m.callCount
	m.callCount++
	m.CapturedMessages = append(m.CapturedMessages, messages)
	gate := m.gate
	ignoreCtx := m.ignoreCtx
	m.mu.Unlock()

	if gate != nil {
		if ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if idx < len(m.errors) && m.errors[idx] != nil {
		return nil, m.errors[idx]
	}
	if idx < len(m.responses) && m.responses[idx] != nil {
		return m.responses[idx], nil
	}
	return &ctxwindow.ContentResponse{
		Choices: []*ctxwindow.ContentChoice{{Content: "summary"}},
	}, nil
}

// -----------------------------------------------------------------------------
// FakeTokenizer - implements tokens.Tokenizer
// -----------------------------------------------------------------------------

// FakeTokenizer counts one token per whitespace-separated word.
// It fails for models registered with FailFor.
type FakeTokenizer struct {
	mu      sync.Mutex
	failing map[string]error
	calls   int
}

// NewFakeTokenizer creates a FakeTokenizer.
func NewFakeTokenizer() *FakeTokenizer {
	return &FakeTokenizer{failing: make(map[string]error)}
}

// FailFor makes CountText return err for model.
func (f *FakeTokenizer) FailFor(model string, err error) *FakeTokenizer {
	f.failing[model] = err
	return f
}

// Calls returns the number of CountText calls.
func (f *FakeTokenizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// CountText implements tokens.Tokenizer.
func (f *FakeTokenizer) CountText(model, text string) (int, error) {
	f.mu.Lock()
	f.calls++
	err := f.failing[model]
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return len(strings.Fields(text)), nil
}

// -----------------------------------------------------------------------------
// MockPlan - implements hooks.ExecutionPlan
// -----------------------------------------------------------------------------

// MockPlan renders a fixed status string, or fails with Err.
type MockPlan struct {
	mu     sync.Mutex
	Status string
	Err    error
	calls  int
}

// BuildContextPrompt implements hooks.ExecutionPlan.
func (p *MockPlan) BuildContextPrompt(
	ctx context.Context,
) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return "", p.Err
	}
	return p.Status, nil
}

// Calls returns the number of BuildContextPrompt calls.
func (p *MockPlan) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

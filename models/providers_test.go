package models

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const chatCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "openai/gpt-4.1-mini",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "### Objectives\nship it"},
    "finish_reason": "stop"
  }],
  "usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
}`

func TestNewGitHub(t *testing.T) {
	var (
		gotHeader string
		gotAuth   string
		gotModel  string
	)
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Get("X-GitHub-Api-Version")
			gotAuth = r.Header.Get("Authorization")
			body, _ := io.ReadAll(r.Body)
			gotModel = gjson.GetBytes(body, "model").String()
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, chatCompletion)
		},
	))
	defer srv.Close()

	model, err := NewGitHub(
		"openai/gpt-4.1-mini", "ghp_test",
		openai.WithBaseURL(srv.URL),
	)
	require.NoError(t, err)

	resp, err := model.GenerateContent(
		context.Background(),
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, "summarize"),
		},
	)

	require.NoError(t, err)
	assert.Equal(t, "### Objectives\nship it", resp.FirstContent())
	assert.Equal(t, 42, resp.Info.InputTokens)
	assert.Equal(t, 7, resp.Info.OutputTokens)
	assert.Equal(t, "2022-11-28", gotHeader)
	assert.Equal(t, "Bearer ghp_test", gotAuth)
	assert.Equal(t, "openai/gpt-4.1-mini", gotModel)
	assert.Equal(t, "openai/gpt-4.1-mini", model.ModelName())
}

func TestProviders_MissingToken(t *testing.T) {
	_, err := NewGitHub("openai/gpt-4.1", "")
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Contains(t, err.Error(), "models:read")

	_, err = NewOpenAI("gpt-4o-mini", "", "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms/openai"
)

// GitHubModelsBaseURL is the base URL of the GitHub Models API.
// The OpenAI-compatible chat completions endpoint is at
// {baseURL}/chat/completions.
const GitHubModelsBaseURL = "https://models.github.ai/inference"

// ErrMissingToken is returned by the provider constructors when no
// API token is given.
var ErrMissingToken = errors.New("models: api token is required")

// headerTransport injects fixed headers into every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// Do implements the openai client's Doer.
func (t *headerTransport) Do(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// NewOpenAI creates a wrapper around an OpenAI-compatible chat
// completions API. baseURL may be empty for api.openai.com. Extra
// options are applied last and override the defaults.
func NewOpenAI(
	model, token, baseURL string,
	opts ...openai.Option,
) (*LCGWrapper, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	base := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if baseURL != "" {
		base = append(base, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return NewLCGWrapper(llm).WithModelName(model), nil
}

// NewGitHub creates a wrapper around the GitHub Models API. token
// is a fine-grained personal access token with the models:read
// permission. Model names use the publisher/model form, for
// example "openai/gpt-4.1-mini".
func NewGitHub(
	model, token string,
	opts ...openai.Option,
) (*LCGWrapper, error) {
	if token == "" {
		return nil, fmt.Errorf(
			"%w: create a fine-grained PAT with models:read "+
				"at https://github.com/settings/personal-access-tokens/new",
			ErrMissingToken,
		)
	}
	client := &headerTransport{
		base: http.DefaultTransport,
		headers: map[string]string{
			"X-GitHub-Api-Version": "2022-11-28",
		},
	}
	return NewOpenAI(
		model, token, GitHubModelsBaseURL,
		append([]openai.Option{openai.WithHTTPClient(client)}, opts...)...,
	)
}
